package stats

import (
	"encoding/json"
	"math"

	"pepdensity/domain/core"
)

// JSON has no NaN, but NA test results carry NaN in every numeric field and
// the rank agreement is NaN below two shared features. On the wire those
// fields travel as null; decoding turns null back into NaN so readers see
// exactly what the sweep produced.

func naToNull(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func nullToNA(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

type testResultJSON struct {
	Feature     core.FeatureKey `json:"feature"`
	Model       core.ModelID    `json:"model"`
	Kind        TestKind        `json:"kind"`
	Applicable  bool            `json:"applicable"`
	Statistic   *float64        `json:"statistic"`
	DF          *float64        `json:"df"`
	PValue      *float64        `json:"p_value"`
	Adjusted    *float64        `json:"adjusted"`
	Significant bool            `json:"significant"`
}

// MarshalJSON encodes NaN fields as null.
func (t TestResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(testResultJSON{
		Feature:     t.Feature,
		Model:       t.Model,
		Kind:        t.Kind,
		Applicable:  t.Applicable,
		Statistic:   naToNull(t.Statistic),
		DF:          naToNull(t.DF),
		PValue:      naToNull(t.PValue),
		Adjusted:    naToNull(t.Adjusted),
		Significant: t.Significant,
	})
}

// UnmarshalJSON decodes null fields back to NaN.
func (t *TestResult) UnmarshalJSON(data []byte) error {
	var w testResultJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*t = TestResult{
		Feature:     w.Feature,
		Model:       w.Model,
		Kind:        w.Kind,
		Applicable:  w.Applicable,
		Statistic:   nullToNA(w.Statistic),
		DF:          nullToNA(w.DF),
		PValue:      nullToNA(w.PValue),
		Adjusted:    nullToNA(w.Adjusted),
		Significant: w.Significant,
	}
	return nil
}

type familyComparisonJSON struct {
	Model core.ModelID `json:"model"`
	Kind  TestKind     `json:"kind"`

	SharedTested  int `json:"shared_tested"`
	DensityOnlyN  int `json:"density_only_tested"`
	ReferenceOnly int `json:"reference_only_tested"`

	Both            []core.FeatureKey `json:"both"`
	DensityExtra    []core.FeatureKey `json:"density_extra"`
	ReferenceExtra  []core.FeatureKey `json:"reference_extra"`
	NeitherCount    int               `json:"neither_count"`
	Jaccard         float64           `json:"jaccard"`
	TopByDensity    []core.FeatureKey `json:"top_by_density"`
	TopByReference  []core.FeatureKey `json:"top_by_reference"`
	SpearmanOverlap *float64          `json:"spearman_overlap"`
}

// MarshalJSON encodes the NaN rank agreement as null.
func (c FamilyComparison) MarshalJSON() ([]byte, error) {
	return json.Marshal(familyComparisonJSON{
		Model:           c.Model,
		Kind:            c.Kind,
		SharedTested:    c.SharedTested,
		DensityOnlyN:    c.DensityOnlyN,
		ReferenceOnly:   c.ReferenceOnly,
		Both:            c.Both,
		DensityExtra:    c.DensityExtra,
		ReferenceExtra:  c.ReferenceExtra,
		NeitherCount:    c.NeitherCount,
		Jaccard:         c.Jaccard,
		TopByDensity:    c.TopByDensity,
		TopByReference:  c.TopByReference,
		SpearmanOverlap: naToNull(c.SpearmanOverlap),
	})
}

// UnmarshalJSON decodes a null rank agreement back to NaN.
func (c *FamilyComparison) UnmarshalJSON(data []byte) error {
	var w familyComparisonJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = FamilyComparison{
		Model:           w.Model,
		Kind:            w.Kind,
		SharedTested:    w.SharedTested,
		DensityOnlyN:    w.DensityOnlyN,
		ReferenceOnly:   w.ReferenceOnly,
		Both:            w.Both,
		DensityExtra:    w.DensityExtra,
		ReferenceExtra:  w.ReferenceExtra,
		NeitherCount:    w.NeitherCount,
		Jaccard:         w.Jaccard,
		TopByDensity:    w.TopByDensity,
		TopByReference:  w.TopByReference,
		SpearmanOverlap: nullToNA(w.SpearmanOverlap),
	}
	return nil
}
