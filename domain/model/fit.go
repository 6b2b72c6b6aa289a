package model

import (
	"pepdensity/domain/histogram"
)

// Fittable fits one model variant to a binned feature. Implementations:
// the polynomial Poisson model (internal/glm) and the penalized-spline
// Poisson model (internal/gam).
type Fittable interface {
	Variant() Variant
	Fit(binned *histogram.BinnedFeature) (FitResult, error)
}

// FitResult exposes what the significance tests need from a completed fit.
// ParameterCount is fractional for smooth fits (effective degrees of freedom
// under the chosen penalty); integral for polynomial fits.
type FitResult interface {
	Variant() Variant
	Converged() bool
	LogLikelihood() float64
	Deviance() float64
	ParameterCount() float64
	ResidualDF() float64
	// InteractionCoefficients returns the interaction coefficient estimates
	// and their covariance block. ok is false when the variant has no fixed
	// interaction coefficients (smooth fits, interaction degree 0); the Wald
	// test is then not applicable and must be recorded as NA.
	InteractionCoefficients() (est []float64, cov [][]float64, ok bool)
}
