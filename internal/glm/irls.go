package glm

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"pepdensity/domain/histogram"
	"pepdensity/domain/model"
	"pepdensity/internal/errors"
)

const etaClamp = 30 // keeps exp(eta) finite through early IRLS steps

// Fitter fits one polynomial Poisson variant by iteratively reweighted least
// squares with a log link and a log-exposure offset.
type Fitter struct {
	variant model.Variant
	maxIter int
	tol     float64
}

// NewFitter builds a fitter for the given variant.
func NewFitter(v model.Variant, maxIter int, tol float64) *Fitter {
	return &Fitter{variant: v, maxIter: maxIter, tol: tol}
}

// Variant returns the variant this fitter estimates.
func (f *Fitter) Variant() model.Variant { return f.variant }

// Fit estimates the variant on one binned feature. A singular information
// matrix or a non-converged IRLS loop is reported as a fit error, never as a
// result with fabricated statistics.
func (f *Fitter) Fit(binned *histogram.BinnedFeature) (model.FitResult, error) {
	obs := binned.Rows()
	levels := len(binned.Groups)
	design := NewDesign(obs, levels, f.variant)

	n, p := design.X.Dims()
	if n <= p {
		return nil, errors.FitNotConverged("more parameters than observations")
	}

	beta := mat.NewVecDense(p, nil)
	eta := make([]float64, n)
	mu := make([]float64, n)
	for i := range mu {
		mu[i] = design.Y[i] + 0.5
		eta[i] = math.Log(mu[i])
	}

	var (
		chol      mat.Cholesky
		dev       = math.Inf(1)
		converged bool
	)
	w := make([]float64, n)
	z := make([]float64, n)

	for iter := 0; iter < f.maxIter; iter++ {
		for i := range w {
			w[i] = mu[i]
			z[i] = eta[i] - design.Offset[i] + (design.Y[i]-mu[i])/mu[i]
		}

		xtwx, xtwz := weightedNormal(design.X, w, z)
		if !chol.Factorize(xtwx) {
			return nil, errors.FitNotConverged("singular information matrix")
		}
		if err := chol.SolveVecTo(beta, xtwz); err != nil {
			return nil, errors.FitNotConverged("weighted least squares solve failed")
		}

		for i := range eta {
			e := design.Offset[i] + dot(design.X, i, beta)
			if e > etaClamp {
				e = etaClamp
			} else if e < -etaClamp {
				e = -etaClamp
			}
			eta[i] = e
			mu[i] = math.Exp(e)
		}

		next := poissonDeviance(design.Y, mu)
		if math.Abs(next-dev) < f.tol*(math.Abs(next)+0.1) {
			dev = next
			converged = true
			break
		}
		dev = next
	}
	if !converged {
		return nil, errors.FitNotConverged("IRLS did not converge")
	}

	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		return nil, errors.FitNotConverged("information matrix not invertible")
	}

	coef := make([]float64, p)
	for j := range coef {
		coef[j] = beta.AtVec(j)
	}

	return &polyFit{
		variant:         f.variant,
		coef:            coef,
		cov:             &cov,
		interactionCols: design.InteractionCols,
		deviance:        dev,
		loglik:          poissonLogLikelihood(design.Y, mu),
		n:               n,
	}, nil
}

// weightedNormal forms X'WX and X'Wz for diagonal W.
func weightedNormal(x *mat.Dense, w, z []float64) (*mat.SymDense, *mat.VecDense) {
	n, p := x.Dims()
	xtwx := mat.NewSymDense(p, nil)
	xtwz := mat.NewVecDense(p, nil)
	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		wi := w[i]
		for j := 0; j < p; j++ {
			xij := row[j]
			if xij == 0 {
				continue
			}
			for k := j; k < p; k++ {
				xtwx.SetSym(j, k, xtwx.At(j, k)+wi*xij*row[k])
			}
			xtwz.SetVec(j, xtwz.AtVec(j)+wi*xij*z[i])
		}
	}
	return xtwx, xtwz
}

func dot(x *mat.Dense, i int, beta *mat.VecDense) float64 {
	row := x.RawRowView(i)
	var s float64
	for j, v := range row {
		s += v * beta.AtVec(j)
	}
	return s
}

// poissonDeviance is 2*sum(y*log(y/mu) - (y - mu)), with the y=0 term taken
// in the limit.
func poissonDeviance(y, mu []float64) float64 {
	var dev float64
	for i := range y {
		var t float64
		if y[i] > 0 {
			t = y[i] * math.Log(y[i]/mu[i])
		}
		dev += 2 * (t - (y[i] - mu[i]))
	}
	return dev
}

func poissonLogLikelihood(y, mu []float64) float64 {
	var ll float64
	for i := range y {
		lg, _ := math.Lgamma(y[i] + 1)
		ll += y[i]*math.Log(mu[i]) - mu[i] - lg
	}
	return ll
}

// polyFit is the FitResult of a converged polynomial Poisson fit.
type polyFit struct {
	variant         model.Variant
	coef            []float64
	cov             *mat.SymDense
	interactionCols []int
	deviance        float64
	loglik          float64
	n               int
}

func (r *polyFit) Variant() model.Variant  { return r.variant }
func (r *polyFit) Converged() bool         { return true }
func (r *polyFit) LogLikelihood() float64  { return r.loglik }
func (r *polyFit) Deviance() float64       { return r.deviance }
func (r *polyFit) ParameterCount() float64 { return float64(len(r.coef)) }
func (r *polyFit) ResidualDF() float64     { return float64(r.n - len(r.coef)) }

// Coefficients returns the full coefficient vector in design order.
func (r *polyFit) Coefficients() []float64 { return r.coef }

// InteractionCoefficients selects the interaction coefficient block and its
// covariance submatrix. The block is identified by the design's column
// bookkeeping, not by parsing coefficient names.
func (r *polyFit) InteractionCoefficients() ([]float64, [][]float64, bool) {
	if !r.variant.HasInteraction() || len(r.interactionCols) == 0 {
		return nil, nil, false
	}
	k := len(r.interactionCols)
	est := make([]float64, k)
	cov := make([][]float64, k)
	for a, ca := range r.interactionCols {
		est[a] = r.coef[ca]
		cov[a] = make([]float64, k)
		for b, cb := range r.interactionCols {
			cov[a][b] = r.cov.At(ca, cb)
		}
	}
	return est, cov, true
}
