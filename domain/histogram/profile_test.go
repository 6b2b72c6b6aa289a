package histogram

import (
	"math"
	"testing"

	"pepdensity/domain/core"
)

func TestProfileSummary(t *testing.T) {
	nan := math.NaN()
	row := []float64{1, 2, nan, 3, 4, nan}
	groups := []core.GroupLabel{"a", "a", "a", "b", "b", "b"}

	p := Profile("PEP_X", row, groups)
	if p.Observed != 4 || p.Missing != 2 {
		t.Fatalf("observed/missing = %d/%d, want 4/2", p.Observed, p.Missing)
	}
	if p.Min != 1 || p.Max != 4 || p.Mean != 2.5 {
		t.Fatalf("min/max/mean = %g/%g/%g", p.Min, p.Max, p.Mean)
	}
	if p.DistinctCount != 4 {
		t.Fatalf("distinct = %d, want 4", p.DistinctCount)
	}
	if p.GroupSizes["a"] != 2 || p.GroupSizes["b"] != 2 {
		t.Fatalf("group sizes = %v", p.GroupSizes)
	}
	// Sample variance of {1,2,3,4}.
	if math.Abs(p.Variance-5.0/3.0) > 1e-12 {
		t.Fatalf("variance = %g, want 5/3", p.Variance)
	}
	if deg, reason := p.Degenerate(); deg {
		t.Fatalf("unexpected degenerate: %s", reason)
	}
}

func TestProfileDegenerateReasons(t *testing.T) {
	nan := math.NaN()
	groups := []core.GroupLabel{"a", "a", "b", "b"}

	cases := []struct {
		name   string
		row    []float64
		reason string
	}{
		{"all missing", []float64{nan, nan, nan, nan}, "all values missing"},
		{"constant", []float64{2, 2, 2, 2}, "fewer than 2 distinct values"},
		{"one group left", []float64{1, 2, nan, nan}, "fewer than 2 groups present"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Profile("PEP_X", tc.row, groups)
			deg, reason := p.Degenerate()
			if !deg || reason != tc.reason {
				t.Fatalf("Degenerate() = %v, %q; want true, %q", deg, reason, tc.reason)
			}
		})
	}
}
