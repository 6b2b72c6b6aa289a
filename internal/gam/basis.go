package gam

import (
	"gonum.org/v1/gonum/mat"
)

const splineOrder = 4 // cubic

// splineBasis evaluates a clamped cubic B-spline basis of the given dimension
// at each point in xs. The knot vector repeats the endpoints order times with
// equally spaced interior knots, so the basis partitions unity on [lo, hi].
func splineBasis(xs []float64, lo, hi float64, dim int) *mat.Dense {
	knots := clampedKnots(lo, hi, dim)
	b := mat.NewDense(len(xs), dim, nil)
	for i, x := range xs {
		row := coxDeBoor(x, knots, dim)
		b.SetRow(i, row)
	}
	return b
}

func clampedKnots(lo, hi float64, dim int) []float64 {
	interior := dim - splineOrder
	knots := make([]float64, dim+splineOrder)
	for i := 0; i < splineOrder; i++ {
		knots[i] = lo
		knots[len(knots)-1-i] = hi
	}
	step := (hi - lo) / float64(interior+1)
	for i := 1; i <= interior; i++ {
		knots[splineOrder-1+i] = lo + float64(i)*step
	}
	return knots
}

// coxDeBoor evaluates all dim basis functions at x by the triangular
// recurrence. The right endpoint is folded into the last span so the basis
// still sums to one at x == hi.
func coxDeBoor(x float64, knots []float64, dim int) []float64 {
	// Locate the knot span containing x.
	span := dim - 1
	for j := splineOrder - 1; j < dim; j++ {
		if x >= knots[j] && x < knots[j+1] {
			span = j
			break
		}
	}

	vals := make([]float64, dim)
	n := make([]float64, splineOrder)
	n[0] = 1
	for k := 1; k < splineOrder; k++ {
		saved := 0.0
		for j := 0; j < k; j++ {
			left := knots[span+1+j-k]
			right := knots[span+1+j]
			var term float64
			if right != left {
				term = n[j] / (right - left)
			}
			n[j] = saved + (right-x)*term
			saved = (x - left) * term
		}
		n[k] = saved
	}
	for j := 0; j < splineOrder; j++ {
		vals[span-splineOrder+1+j] = n[j]
	}
	return vals
}

// differencePenalty builds D'D for the second-order difference matrix over
// cols coefficients. Penalizing squared second differences shrinks the fitted
// curve toward a straight line as lambda grows.
func differencePenalty(cols int) *mat.SymDense {
	s := mat.NewSymDense(cols, nil)
	if cols < 3 {
		return s
	}
	rows := cols - 2
	d := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		d.Set(i, i, 1)
		d.Set(i, i+1, -2)
		d.Set(i, i+2, 1)
	}
	for a := 0; a < cols; a++ {
		for b := a; b < cols; b++ {
			var v float64
			for i := 0; i < rows; i++ {
				v += d.At(i, a) * d.At(i, b)
			}
			s.SetSym(a, b, v)
		}
	}
	return s
}
