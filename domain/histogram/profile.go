package histogram

import (
	"math"

	montstats "github.com/montanaflynn/stats"

	"pepdensity/domain/core"
)

// FeatureProfile summarizes one feature's raw measurements before
// discretization. The sweep uses it for skip decisions and reports it next to
// the test results.
type FeatureProfile struct {
	Feature       core.FeatureKey         `json:"feature"`
	Observed      int                     `json:"observed"`
	Missing       int                     `json:"missing"`
	GroupSizes    map[core.GroupLabel]int `json:"group_sizes"`
	Min           float64                 `json:"min"`
	Max           float64                 `json:"max"`
	Mean          float64                 `json:"mean"`
	Variance      float64                 `json:"variance"`
	DistinctCount int                     `json:"distinct_count"`
}

// Profile computes the summary for one feature row and its group assignment.
func Profile(feature core.FeatureKey, row []float64, groups []core.GroupLabel) FeatureProfile {
	p := FeatureProfile{
		Feature:    feature,
		GroupSizes: make(map[core.GroupLabel]int),
	}

	distinct := make(map[float64]struct{})
	var observed []float64
	for j, v := range row {
		if math.IsNaN(v) {
			p.Missing++
			continue
		}
		observed = append(observed, v)
		distinct[v] = struct{}{}
		p.GroupSizes[groups[j]]++
	}
	p.Observed = len(observed)
	p.DistinctCount = len(distinct)

	if len(observed) > 0 {
		p.Min, _ = montstats.Min(observed)
		p.Max, _ = montstats.Max(observed)
		p.Mean, _ = montstats.Mean(observed)
	}
	if len(observed) > 1 {
		p.Variance, _ = montstats.SampleVariance(observed)
	}
	return p
}

// Degenerate reports whether the feature cannot be tested, with a short
// reason. These are data errors: the feature is skipped and recorded, never
// given a fabricated p-value.
func (p FeatureProfile) Degenerate() (bool, string) {
	if p.Observed == 0 {
		return true, "all values missing"
	}
	if p.DistinctCount < 2 {
		return true, "fewer than 2 distinct values"
	}
	if len(p.GroupSizes) < 2 {
		return true, "fewer than 2 groups present"
	}
	return false, ""
}
