package orchestrator

import "sync"

// #region bounded-run

// runBounded runs every task in tasks concurrently, never more than limit
// at once, and waits for all of them to finish. It is the concurrency
// primitive used by epoch execution, per-actor mutation calls, and
// shadow trials. Each call has its own semaphore: calls are not bounded
// jointly, so shadow trials run from inside per-actor mutation tasks can
// put up to limit*limit Environments in flight at once.
func runBounded(limit int, tasks []func()) {
	if limit <= 0 {
		limit = 1
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for _, task := range tasks {
		task := task
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			task()
		}()
	}
	wg.Wait()
}

// #endregion bounded-run
