package glm

import (
	"math"
	"math/rand"
	"testing"

	"pepdensity/domain/core"
	"pepdensity/domain/histogram"
	"pepdensity/domain/model"
	"pepdensity/internal/errors"
)

func binnedFixture(t *testing.T, shift float64, nBins int) *histogram.BinnedFeature {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	grouped := map[core.GroupLabel][]float64{}
	for i := 0; i < 200; i++ {
		grouped["control"] = append(grouped["control"], rng.NormFloat64())
		grouped["treated"] = append(grouped["treated"], rng.NormFloat64()+shift)
	}
	binned, err := histogram.Discretize("PEP_1", grouped, nBins)
	if err != nil {
		t.Fatalf("discretize fixture: %v", err)
	}
	return binned
}

func TestFitBaselineConverges(t *testing.T) {
	binned := binnedFixture(t, 0, 20)

	fitter := NewFitter(model.Variant{}, 50, 1e-8)
	res, err := fitter.Fit(binned)
	if err != nil {
		t.Fatalf("fit baseline: %v", err)
	}
	if !res.Converged() {
		t.Fatal("expected converged fit")
	}
	if got := res.ParameterCount(); got != 2 {
		t.Fatalf("baseline parameter count = %v, want 2 (intercept + 1 group indicator)", got)
	}
	if got := res.ResidualDF(); got != float64(2*20-2) {
		t.Fatalf("residual df = %v, want %v", got, 2*20-2)
	}
	if _, _, ok := res.InteractionCoefficients(); ok {
		t.Fatal("baseline must not expose interaction coefficients")
	}
	if math.IsNaN(res.Deviance()) || res.Deviance() < 0 {
		t.Fatalf("deviance = %v, want finite and non-negative", res.Deviance())
	}
	if math.IsNaN(res.LogLikelihood()) {
		t.Fatal("log-likelihood is NaN")
	}
}

func TestFitInteractionBlock(t *testing.T) {
	binned := binnedFixture(t, 0.8, 20)

	fitter := NewFitter(model.Variant{MainDegree: 2, InteractionDegree: 2}, 50, 1e-8)
	res, err := fitter.Fit(binned)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}

	est, cov, ok := res.InteractionCoefficients()
	if !ok {
		t.Fatal("expected interaction coefficients for interaction degree 2")
	}
	// Two group levels, interaction powers 1..2: one coefficient per power.
	if len(est) != 2 {
		t.Fatalf("interaction block size = %d, want 2", len(est))
	}
	if len(cov) != 2 || len(cov[0]) != 2 {
		t.Fatalf("covariance block shape = %dx%d, want 2x2", len(cov), len(cov[0]))
	}
	for i := range cov {
		if cov[i][i] <= 0 {
			t.Fatalf("covariance diagonal [%d] = %v, want positive", i, cov[i][i])
		}
	}
	if cov[0][1] != cov[1][0] {
		t.Fatalf("covariance block not symmetric: %v vs %v", cov[0][1], cov[1][0])
	}
}

func TestFitNestedDevianceOrdering(t *testing.T) {
	binned := binnedFixture(t, 0.8, 20)

	null, err := NewFitter(model.Variant{MainDegree: 4}, 50, 1e-8).Fit(binned)
	if err != nil {
		t.Fatalf("fit null: %v", err)
	}
	alt, err := NewFitter(model.Variant{MainDegree: 4, InteractionDegree: 4}, 50, 1e-8).Fit(binned)
	if err != nil {
		t.Fatalf("fit alternative: %v", err)
	}

	// The alternative nests the null, so its deviance can only be lower.
	if alt.Deviance() > null.Deviance()+1e-6 {
		t.Fatalf("alternative deviance %v exceeds null deviance %v", alt.Deviance(), null.Deviance())
	}
	if alt.ParameterCount() <= null.ParameterCount() {
		t.Fatalf("alternative parameter count %v not larger than null %v",
			alt.ParameterCount(), null.ParameterCount())
	}
}

func TestFitShiftDetectedInGroupTerm(t *testing.T) {
	binned := binnedFixture(t, 1.5, 20)

	res, err := NewFitter(model.Variant{MainDegree: 2, InteractionDegree: 1}, 50, 1e-8).Fit(binned)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	est, cov, ok := res.InteractionCoefficients()
	if !ok {
		t.Fatal("expected interaction coefficients")
	}
	// A location shift of 1.5 sd must surface as a clearly non-zero linear
	// interaction coefficient.
	z := math.Abs(est[0]) / math.Sqrt(cov[0][0])
	if z < 3 {
		t.Fatalf("interaction z-score = %v, want > 3 for a 1.5 sd shift", z)
	}
}

func TestFitRejectsOverparameterized(t *testing.T) {
	// Two groups and 3 bins give n=6 observations; degree 4 with full
	// interaction needs 10 parameters.
	binned := binnedFixture(t, 0, 3)

	_, err := NewFitter(model.Variant{MainDegree: 4, InteractionDegree: 4}, 50, 1e-8).Fit(binned)
	if err == nil {
		t.Fatal("expected fit error for overparameterized design")
	}
	if errors.GetCode(err) != errors.CodeFitNotConverged {
		t.Fatalf("error code = %v, want %v", errors.GetCode(err), errors.CodeFitNotConverged)
	}
}
