// Package fdr implements Benjamini-Hochberg multiple-testing correction.
//
// Correction runs per family: one family is the set of raw p-values produced
// by a single (model variant, test kind) pair across all tested features.
// Features whose test was not applicable or whose fit failed never enter the
// family and never consume a rank.
package fdr

import (
	"math"
	"sort"
)

// Adjust returns the Benjamini-Hochberg adjusted p-values for one family, in
// the same order as the input. NaN inputs stay NaN and do not count toward
// the family size m.
//
// The step-up pass enforces monotonicity: q_(i) = min(q_(i+1), p_(i)*m/i),
// clamped to 1. Adjusted values are therefore never below their raw p-value.
func Adjust(pvalues []float64) []float64 {
	type entry struct {
		p   float64
		idx int
	}

	var valid []entry
	for i, p := range pvalues {
		if math.IsNaN(p) {
			continue
		}
		valid = append(valid, entry{p: p, idx: i})
	}

	out := make([]float64, len(pvalues))
	for i := range out {
		out[i] = math.NaN()
	}
	m := len(valid)
	if m == 0 {
		return out
	}

	sort.Slice(valid, func(a, b int) bool { return valid[a].p < valid[b].p })

	adjusted := make([]float64, m)
	running := 1.0
	for i := m - 1; i >= 0; i-- {
		q := valid[i].p * float64(m) / float64(i+1)
		// The multiply/divide round trip can land one ulp below p, e.g.
		// 0.7*3/3. The adjusted value must never undercut the raw one.
		if q < valid[i].p {
			q = valid[i].p
		}
		if q < running {
			running = q
		}
		adjusted[i] = running
	}

	for i, e := range valid {
		out[e.idx] = adjusted[i]
	}
	return out
}

// Significant reports which entries fall at or below the threshold after
// adjustment. The boundary is deliberately inclusive (adjusted == threshold
// counts), following the usual BH convention. NaN entries are never
// significant.
func Significant(adjusted []float64, threshold float64) []bool {
	out := make([]bool, len(adjusted))
	for i, q := range adjusted {
		out[i] = !math.IsNaN(q) && q <= threshold
	}
	return out
}
