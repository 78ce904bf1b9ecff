// Command replay deterministically re-runs a recorded episode through
// the Environment from a scripted fixture and checks the outcome still
// matches, independent of any live model call.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/kibbyd/negotiation-engine/internal/replay"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to fixture JSON")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	os.Exit(run(*fixturePath))
}

func run(fixturePath string) int {
	f, err := replay.LoadFixture(fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}

	result, err := replay.Replay(context.Background(), f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}
	if result.MountErr != nil {
		fmt.Fprintf(os.Stderr, "mount created agent: %v\n", result.MountErr)
	}

	printComparison(f, result)

	if !replay.Matches(f, result) {
		return 1
	}
	return 0
}

// #endregion main

// #region output

func printComparison(f replay.Fixture, r replay.Result) {
	fmt.Printf("%-24s| %-12s| %-12s\n", "Field", "Expected", "Replayed")
	fmt.Printf("%-24s+%-12s+%-12s\n", "------------------------", "------------", "------------")
	fmt.Printf("%-24s| %-12s| %-12s\n", "termination_reason", f.Expected.TerminationReason, r.TerminationReason)
	fmt.Printf("%-24s| %-12d| %-12d\n", "turn_number", f.Expected.TurnNumber, r.FinalState.TurnNumber)
	fmt.Printf("%-24s| %-12d| %-12d\n", "log_length", f.Expected.LogLength, len(r.Log))

	if replay.Matches(f, r) {
		fmt.Println("\nResult: MATCH")
	} else {
		fmt.Println("\nResult: DIVERGE")
	}
}

// #endregion output
