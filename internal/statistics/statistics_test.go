package statistics

import "testing"

func TestMeanEmpty(t *testing.T) {
	if got := Mean(nil); got != 0 {
		t.Fatalf("expected 0, got %f", got)
	}
}

func TestMeanBasic(t *testing.T) {
	got := Mean([]float64{1, 2, 3, 4})
	if got != 2.5 {
		t.Fatalf("expected 2.5, got %f", got)
	}
}

func TestPopulationStddevZeroForConstant(t *testing.T) {
	got := PopulationStddev([]float64{5, 5, 5})
	if got != 0 {
		t.Fatalf("expected 0, got %f", got)
	}
}

func TestLowerConfidenceBoundPenalizesVariance(t *testing.T) {
	tight := LowerConfidenceBound([]float64{3, 3, 3}, 1.0)
	wide := LowerConfidenceBound([]float64{0, 3, 6}, 1.0)
	if tight <= wide {
		t.Fatalf("expected tight distribution's LCB (%f) to exceed wide distribution's LCB (%f)", tight, wide)
	}
}

func TestMannWhitneySmallSampleIsInconclusive(t *testing.T) {
	r := MannWhitneyUTest([]float64{1}, []float64{2, 3})
	if r.PValue != 1 {
		t.Fatalf("expected p=1 for n<=1 sample, got %f", r.PValue)
	}
}

func TestMannWhitneyIdenticalDistributionsHighPValue(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	b := []float64{1, 2, 3, 4, 5}
	r := MannWhitneyUTest(a, b)
	if r.PValue < 0.5 {
		t.Fatalf("expected high p-value for identical distributions, got %f", r.PValue)
	}
}

func TestMannWhitneyClearlySeparatedLowPValue(t *testing.T) {
	a := []float64{-5, -4, -5, -4, -5, -4, -5, -4, -5, -4}
	b := []float64{5, 4, 5, 4, 5, 4, 5, 4, 5, 4}
	r := MannWhitneyUTest(a, b)
	if r.PValue > 0.05 {
		t.Fatalf("expected low p-value for clearly separated samples, got %f", r.PValue)
	}
}
