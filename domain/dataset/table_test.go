package dataset

import (
	"math"
	"testing"

	"pepdensity/domain/core"
)

func newTestTable(t *testing.T) *FeatureTable {
	t.Helper()
	nan := math.NaN()
	table, err := NewFeatureTable(
		[]core.FeatureKey{"PEP_A", "PEP_B"},
		[]core.SampleID{"s1", "s2", "s3", "s4"},
		[]core.GroupLabel{"control", "control", "treated", "treated"},
		[][]float64{
			{1.0, 2.0, 3.0, nan},
			{nan, nan, 5.0, 6.0},
		},
	)
	if err != nil {
		t.Fatalf("NewFeatureTable: %v", err)
	}
	return table
}

func TestNewFeatureTable(t *testing.T) {
	table := newTestTable(t)
	if table.FeatureCount() != 2 || table.SampleCount() != 4 {
		t.Fatalf("dims = %dx%d, want 2x4", table.FeatureCount(), table.SampleCount())
	}
	if table.Fingerprint == "" {
		t.Fatal("fingerprint not computed")
	}
	levels := table.GroupLevels()
	if len(levels) != 2 || levels[0] != "control" || levels[1] != "treated" {
		t.Fatalf("group levels = %v", levels)
	}
}

func TestNewFeatureTableRejectsMisalignment(t *testing.T) {
	features := []core.FeatureKey{"PEP_A"}
	samples := []core.SampleID{"s1", "s2"}
	groups := []core.GroupLabel{"a", "b"}

	if _, err := NewFeatureTable(features, samples, groups[:1], [][]float64{{1, 2}}); err == nil {
		t.Error("covariate length mismatch accepted")
	}
	if _, err := NewFeatureTable(features, samples, groups, [][]float64{{1, 2}, {3, 4}}); err == nil {
		t.Error("extra matrix row accepted")
	}
	if _, err := NewFeatureTable(features, samples, groups, [][]float64{{1}}); err == nil {
		t.Error("short feature row accepted")
	}
	if _, err := NewFeatureTable([]core.FeatureKey{"PEP_A", "PEP_A"}, samples, groups, [][]float64{{1, 2}, {3, 4}}); err == nil {
		t.Error("duplicate feature key accepted")
	}
}

func TestGroupedRowDropsMissing(t *testing.T) {
	table := newTestTable(t)

	grouped := table.GroupedRow(0)
	if len(grouped["control"]) != 2 || len(grouped["treated"]) != 1 {
		t.Fatalf("row 0 grouped = %v", grouped)
	}

	// Row 1 has no observed control values, so control is absent entirely.
	grouped = table.GroupedRow(1)
	if _, present := grouped["control"]; present {
		t.Fatal("empty group present in grouped row")
	}
	if len(grouped["treated"]) != 2 {
		t.Fatalf("row 1 treated = %v", grouped["treated"])
	}
}

func TestFingerprintTracksContent(t *testing.T) {
	a := newTestTable(t)
	b := newTestTable(t)
	if a.Fingerprint != b.Fingerprint {
		t.Fatal("identical tables fingerprint differently")
	}

	c, err := NewFeatureTable(
		[]core.FeatureKey{"PEP_A", "PEP_C"},
		a.Samples, a.Groups, a.Intensities,
	)
	if err != nil {
		t.Fatalf("NewFeatureTable: %v", err)
	}
	if c.Fingerprint == a.Fingerprint {
		t.Fatal("renamed feature left fingerprint unchanged")
	}
}
