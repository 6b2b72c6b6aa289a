package stats

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"pepdensity/domain/core"
	"pepdensity/domain/model"
)

// chiSquaredP is the upper-tail probability of a chi-squared with df degrees
// of freedom at the observed statistic.
func chiSquaredP(statistic, df float64) float64 {
	if df <= 0 || math.IsNaN(statistic) {
		return math.NaN()
	}
	if statistic < 0 {
		statistic = 0
	}
	return distuv.ChiSquared{K: df}.Survival(statistic)
}

// DevianceTest is the goodness-of-fit test for one fitted model: residual
// deviance against a chi-squared with the residual degrees of freedom. A
// small p-value means the model does not describe the binned counts.
func DevianceTest(feature core.FeatureKey, fit model.FitResult) TestResult {
	r := TestResult{
		Feature:    feature,
		Model:      fit.Variant().ID(),
		Kind:       TestDeviance,
		Applicable: true,
		Statistic:  fit.Deviance(),
		DF:         fit.ResidualDF(),
		Adjusted:   math.NaN(),
	}
	r.PValue = chiSquaredP(r.Statistic, r.DF)
	return r
}

// WaldTest tests the interaction coefficient block jointly against zero:
// statistic b' V^-1 b, chi-squared with one degree of freedom per interaction
// coefficient. Not applicable when the fitted variant carries no interaction
// block; the variant's own tagging decides that, never its display name.
func WaldTest(feature core.FeatureKey, fit model.FitResult) TestResult {
	est, cov, ok := fit.InteractionCoefficients()
	if !ok {
		return NotApplicable(feature, fit.Variant().ID(), TestWald)
	}

	k := len(est)
	v := mat.NewSymDense(k, nil)
	for a := 0; a < k; a++ {
		for b := a; b < k; b++ {
			v.SetSym(a, b, cov[a][b])
		}
	}
	var chol mat.Cholesky
	if !chol.Factorize(v) {
		// Degenerate covariance block: report NA rather than a made-up value.
		return NotApplicable(feature, fit.Variant().ID(), TestWald)
	}
	b := mat.NewVecDense(k, est)
	sol := mat.NewVecDense(k, nil)
	if err := chol.SolveVecTo(sol, b); err != nil {
		return NotApplicable(feature, fit.Variant().ID(), TestWald)
	}
	statistic := mat.Dot(b, sol)

	r := TestResult{
		Feature:    feature,
		Model:      fit.Variant().ID(),
		Kind:       TestWald,
		Applicable: true,
		Statistic:  statistic,
		DF:         float64(k),
		Adjusted:   math.NaN(),
	}
	r.PValue = chiSquaredP(r.Statistic, r.DF)
	return r
}

// LikelihoodRatioTest compares a fitted model against its fitted nested null.
// The statistic is twice the log-likelihood gap (clamped at zero against
// numerical jitter) and the degrees of freedom are the difference in
// parameter counts, fractional for smooth fits. Not applicable when the
// variant defines no nested null or the parameter-count gap is not positive.
func LikelihoodRatioTest(feature core.FeatureKey, alt, null model.FitResult) TestResult {
	if _, hasNull := alt.Variant().Null(); !hasNull {
		return NotApplicable(feature, alt.Variant().ID(), TestLR)
	}
	df := alt.ParameterCount() - null.ParameterCount()
	if df <= 0 {
		return NotApplicable(feature, alt.Variant().ID(), TestLR)
	}

	statistic := 2 * (alt.LogLikelihood() - null.LogLikelihood())
	if statistic < 0 {
		statistic = 0
	}

	r := TestResult{
		Feature:    feature,
		Model:      alt.Variant().ID(),
		Kind:       TestLR,
		Applicable: true,
		Statistic:  statistic,
		DF:         df,
		Adjusted:   math.NaN(),
	}
	r.PValue = chiSquaredP(r.Statistic, r.DF)
	return r
}
