package glm

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"pepdensity/domain/histogram"
	"pepdensity/domain/model"
)

// Design holds the expanded design matrix for a polynomial Poisson fit plus
// the bookkeeping the tests need: which columns are interaction terms.
type Design struct {
	X      *mat.Dense
	Y      []float64
	Offset []float64
	// InteractionCols indexes the group-by-measurement interaction columns.
	InteractionCols []int
	// Names holds one label per column, for diagnostics.
	Names []string
}

// NewDesign expands the long-format observations into the design matrix for
// the given variant: intercept, group indicators (first level is the
// reference), measurement powers 1..MainDegree, and per-group interaction
// powers 1..InteractionDegree. Midpoints are rescaled to [-1, 1] for
// conditioning; the deviance, Wald and likelihood-ratio statistics are
// invariant under per-column scaling.
func NewDesign(obs []histogram.Observation, levels int, v model.Variant) *Design {
	n := len(obs)

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, o := range obs {
		if o.Midpoint < lo {
			lo = o.Midpoint
		}
		if o.Midpoint > hi {
			hi = o.Midpoint
		}
	}
	scale := func(x float64) float64 {
		if hi == lo {
			return 0
		}
		return 2*(x-lo)/(hi-lo) - 1
	}

	p := 1 + (levels - 1) + v.MainDegree + v.InteractionDegree*(levels-1)
	x := mat.NewDense(n, p, nil)
	names := make([]string, p)
	var interactionCols []int

	col := 0
	names[col] = "(intercept)"
	for i := range obs {
		x.Set(i, col, 1)
	}
	col++

	for g := 1; g < levels; g++ {
		names[col] = "group" + string(rune('A'+g))
		for i, o := range obs {
			if o.GroupIndex == g {
				x.Set(i, col, 1)
			}
		}
		col++
	}

	for d := 1; d <= v.MainDegree; d++ {
		names[col] = powName("x", d)
		for i, o := range obs {
			x.Set(i, col, math.Pow(scale(o.Midpoint), float64(d)))
		}
		col++
	}

	for d := 1; d <= v.InteractionDegree; d++ {
		for g := 1; g < levels; g++ {
			names[col] = "group" + string(rune('A'+g)) + ":" + powName("x", d)
			interactionCols = append(interactionCols, col)
			for i, o := range obs {
				if o.GroupIndex == g {
					x.Set(i, col, math.Pow(scale(o.Midpoint), float64(d)))
				}
			}
			col++
		}
	}

	y := make([]float64, n)
	offset := make([]float64, n)
	for i, o := range obs {
		y[i] = o.Count
		offset[i] = math.Log(o.Exposure)
	}

	return &Design{
		X:               x,
		Y:               y,
		Offset:          offset,
		InteractionCols: interactionCols,
		Names:           names,
	}
}

func powName(base string, d int) string {
	if d == 1 {
		return base
	}
	return base + "^" + string(rune('0'+d))
}
