package dataset

import (
	"fmt"
	"math"
	"sort"

	"pepdensity/domain/core"
)

// FeatureTable is a feature-by-sample intensity matrix with an aligned
// categorical covariate per sample. Produced by the external preprocessing
// stage; read-only inside the testing pipeline. Missing intensities are NaN.
type FeatureTable struct {
	Features    []core.FeatureKey `json:"features"`
	Samples     []core.SampleID   `json:"samples"`
	Groups      []core.GroupLabel `json:"groups"`
	Intensities [][]float64       `json:"intensities"` // rows = features, cols = samples

	CreatedAt   core.Timestamp `json:"created_at"`
	Fingerprint core.Hash      `json:"fingerprint"`
}

// NewFeatureTable validates alignment between the matrix and the covariate
// vector and computes the table fingerprint.
func NewFeatureTable(features []core.FeatureKey, samples []core.SampleID, groups []core.GroupLabel, intensities [][]float64) (*FeatureTable, error) {
	if len(samples) != len(groups) {
		return nil, fmt.Errorf("covariate length %d does not match sample count %d", len(groups), len(samples))
	}
	if len(intensities) != len(features) {
		return nil, fmt.Errorf("matrix has %d rows but %d feature keys", len(intensities), len(features))
	}
	seen := make(map[core.FeatureKey]struct{}, len(features))
	for i, f := range features {
		if _, dup := seen[f]; dup {
			return nil, fmt.Errorf("duplicate feature key %q", f)
		}
		seen[f] = struct{}{}
		if len(intensities[i]) != len(samples) {
			return nil, fmt.Errorf("feature %q has %d values but %d samples", f, len(intensities[i]), len(samples))
		}
	}

	groupBySample := make(map[string]string, len(samples))
	featureKeys := make([]string, len(features))
	for i, f := range features {
		featureKeys[i] = f.String()
	}
	for i, s := range samples {
		groupBySample[s.String()] = groups[i].String()
	}

	return &FeatureTable{
		Features:    features,
		Samples:     samples,
		Groups:      groups,
		Intensities: intensities,
		CreatedAt:   core.Now(),
		Fingerprint: core.ComputeTableHash(featureKeys, groupBySample),
	}, nil
}

// FeatureCount returns the number of features (matrix rows).
func (t *FeatureTable) FeatureCount() int {
	return len(t.Features)
}

// SampleCount returns the number of samples (matrix columns).
func (t *FeatureTable) SampleCount() int {
	return len(t.Samples)
}

// GroupLevels returns the distinct group labels in sorted order.
func (t *FeatureTable) GroupLevels() []core.GroupLabel {
	seen := make(map[core.GroupLabel]struct{})
	for _, g := range t.Groups {
		seen[g] = struct{}{}
	}
	levels := make([]core.GroupLabel, 0, len(seen))
	for g := range seen {
		levels = append(levels, g)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
	return levels
}

// Row returns the intensity vector for a feature by index.
func (t *FeatureTable) Row(i int) []float64 {
	return t.Intensities[i]
}

// GroupedRow splits one feature's observed intensities by group label,
// dropping missing (NaN) entries. Map keys are only the groups that have at
// least one observed value for this feature.
func (t *FeatureTable) GroupedRow(i int) map[core.GroupLabel][]float64 {
	out := make(map[core.GroupLabel][]float64)
	for j, v := range t.Intensities[i] {
		if math.IsNaN(v) {
			continue
		}
		g := t.Groups[j]
		out[g] = append(out[g], v)
	}
	return out
}
