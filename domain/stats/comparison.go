package stats

import (
	"math"
	"sort"

	"pepdensity/domain/core"
)

// ReferenceCall is one feature's verdict from the external reference
// workflow (mixed-effects model on the raw intensities).
type ReferenceCall struct {
	Feature     core.FeatureKey `json:"feature"`
	PValue      float64         `json:"p_value"`
	Adjusted    float64         `json:"adjusted"`
	Significant bool            `json:"significant"`
}

// FamilyComparison contrasts one (model, kind) family's significant set
// against the reference's significant set. Matching is by exact feature key;
// features tested by only one side are excluded from the overlap metrics and
// counted separately.
type FamilyComparison struct {
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
	SpearmanOverlap float64           `json:"spearman_overlap"`
}

const topListSize = 25

// Compare builds the comparison for one family. calls holds the family's
// per-feature test results (already FDR-adjusted); reference holds the
// external calls. Results with Applicable false are treated as untested.
func Compare(modelID core.ModelID, kind TestKind, calls []TestResult, reference []ReferenceCall) FamilyComparison {
	cmp := FamilyComparison{Model: modelID, Kind: kind}

	ref := make(map[core.FeatureKey]ReferenceCall, len(reference))
	for _, r := range reference {
		ref[r.Feature] = r
	}

	var rows []sharedRow
	seen := make(map[core.FeatureKey]bool)

	for _, c := range calls {
		if !c.Applicable || math.IsNaN(c.PValue) {
			continue
		}
		r, ok := ref[c.Feature]
		if !ok {
			cmp.DensityOnlyN++
			continue
		}
		seen[c.Feature] = true
		rows = append(rows, sharedRow{
			feature: c.Feature,
			density: c.PValue,
			refP:    r.PValue,
			denSig:  c.Significant,
			refSig:  r.Significant,
		})
	}
	for _, r := range reference {
		if !seen[r.Feature] {
			cmp.ReferenceOnly++
		}
	}

	sort.Slice(rows, func(a, b int) bool {
		if rows[a].density != rows[b].density {
			return rows[a].density < rows[b].density
		}
		return rows[a].feature < rows[b].feature
	})
	cmp.SharedTested = len(rows)

	for _, row := range rows {
		switch {
		case row.denSig && row.refSig:
			cmp.Both = append(cmp.Both, row.feature)
		case row.denSig:
			cmp.DensityExtra = append(cmp.DensityExtra, row.feature)
		case row.refSig:
			cmp.ReferenceExtra = append(cmp.ReferenceExtra, row.feature)
		default:
			cmp.NeitherCount++
		}
		if len(cmp.TopByDensity) < topListSize {
			cmp.TopByDensity = append(cmp.TopByDensity, row.feature)
		}
	}

	union := len(cmp.Both) + len(cmp.DensityExtra) + len(cmp.ReferenceExtra)
	if union > 0 {
		cmp.Jaccard = float64(len(cmp.Both)) / float64(union)
	}

	byRef := make([]sharedRow, len(rows))
	copy(byRef, rows)
	sort.Slice(byRef, func(a, b int) bool {
		if byRef[a].refP != byRef[b].refP {
			return byRef[a].refP < byRef[b].refP
		}
		return byRef[a].feature < byRef[b].feature
	})
	for _, row := range byRef {
		if len(cmp.TopByReference) < topListSize {
			cmp.TopByReference = append(cmp.TopByReference, row.feature)
		}
	}

	cmp.SpearmanOverlap = rankAgreement(rows, byRef)
	return cmp
}

// sharedRow is one feature tested by both workflows.
type sharedRow struct {
	feature core.FeatureKey
	density float64
	refP    float64
	denSig  bool
	refSig  bool
}

// rankAgreement is the Spearman correlation between the two workflows'
// p-value ranks over the shared features.
func rankAgreement(byDensity, byReference []sharedRow) float64 {
	n := len(byDensity)
	if n < 2 {
		return math.NaN()
	}
	refRank := make(map[core.FeatureKey]int, n)
	for i, row := range byReference {
		refRank[row.feature] = i
	}
	var sumD2 float64
	for i, row := range byDensity {
		d := float64(i - refRank[row.feature])
		sumD2 += d * d
	}
	fn := float64(n)
	return 1 - 6*sumD2/(fn*(fn*fn-1))
}
