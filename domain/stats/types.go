package stats

import (
	"math"

	"pepdensity/domain/core"
)

// TestKind names one of the three significance tests run per fitted model.
type TestKind string

const (
	// TestDeviance is the goodness-of-fit test: residual deviance against a
	// chi-squared with the residual degrees of freedom.
	TestDeviance TestKind = "deviance"
	// TestWald tests the interaction coefficient block jointly against zero.
	TestWald TestKind = "wald"
	// TestLR compares a model against its nested null by likelihood ratio.
	TestLR TestKind = "lr"
)

// Kinds lists the test kinds in reporting order.
func Kinds() []TestKind {
	return []TestKind{TestDeviance, TestWald, TestLR}
}

// TestResult is one test on one fitted model for one feature. When the test
// is not applicable to the model (Wald on a smooth fit, LR on a model with no
// nested null) Applicable is false and every numeric field is NaN: NA is a
// first-class value, never coerced to 0 or 1.
type TestResult struct {
	Feature    core.FeatureKey `json:"feature"`
	Model      core.ModelID    `json:"model"`
	Kind       TestKind        `json:"kind"`
	Applicable bool            `json:"applicable"`
	Statistic  float64         `json:"statistic"`
	DF         float64         `json:"df"`
	PValue     float64         `json:"p_value"`
	// Adjusted is filled by the sweep's FDR phase, per (model, kind) family.
	Adjusted float64 `json:"adjusted"`
	// Significant is Adjusted <= the configured threshold; the boundary is
	// deliberately inclusive, per the usual BH convention.
	Significant bool `json:"significant"`
}

// NotApplicable builds the NA result for a (feature, model, kind) slot.
func NotApplicable(feature core.FeatureKey, modelID core.ModelID, kind TestKind) TestResult {
	nan := math.NaN()
	return TestResult{
		Feature:   feature,
		Model:     modelID,
		Kind:      kind,
		Statistic: nan,
		DF:        nan,
		PValue:    nan,
		Adjusted:  nan,
	}
}

// FeatureResult collects everything the sweep produced for one tested
// feature.
type FeatureResult struct {
	Feature core.FeatureKey `json:"feature"`
	Tests   []TestResult    `json:"tests"`
}

// SkippedFeature records a feature excluded before fitting, with the data
// reason. Skipped features never receive p-values.
type SkippedFeature struct {
	Feature core.FeatureKey `json:"feature"`
	Reason  string          `json:"reason"`
}

// FailedFit records one (feature, model) fit that did not converge. The
// feature's other models still report normally.
type FailedFit struct {
	Feature core.FeatureKey `json:"feature"`
	Model   core.ModelID    `json:"model"`
	Reason  string          `json:"reason"`
}

// SweepManifest summarizes one full sweep: identity, input fingerprint,
// configuration echo, and outcome counts. It is the artifact a reader checks
// first when two sweeps disagree.
type SweepManifest struct {
	Sweep       core.SweepID   `json:"sweep"`
	Fingerprint core.Hash      `json:"fingerprint"`
	StartedAt   core.Timestamp `json:"started_at"`
	FinishedAt  core.Timestamp `json:"finished_at"`

	FeatureCount int `json:"feature_count"`
	Tested       int `json:"tested"`
	Skipped      int `json:"skipped"`
	FailedFits   int `json:"failed_fits"`

	BinCount           int     `json:"bin_count"`
	MainDegree         int     `json:"main_degree"`
	InteractionDegrees []int   `json:"interaction_degrees"`
	FDRThreshold       float64 `json:"fdr_threshold"`

	// SkipReasons counts skipped features per reason.
	SkipReasons map[string]int `json:"skip_reasons"`
	// SignificantByFamily counts significant calls per "model/kind" family.
	SignificantByFamily map[string]int `json:"significant_by_family"`
}
