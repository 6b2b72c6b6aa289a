package app

import (
	"context"
	"math"
	"strings"
	"testing"

	"pepdensity/domain/stats"
	"pepdensity/internal/config"
	"pepdensity/internal/testkit"
)

func testDensityConfig() config.DensityConfig {
	cfg := config.DefaultDensityConfig()
	cfg.BinCount = 20 // smaller grid keeps the test fits fast
	return cfg
}

func runSweep(t *testing.T, spec testkit.TableSpec) (*SweepOutcome, *testkit.InMemoryLedger) {
	t.Helper()
	ledger := testkit.NewInMemoryLedger()
	svc := NewDensitySweepService(testDensityConfig(), 4, ledger, nil)
	out, err := svc.Run(context.Background(), SweepRequest{Table: testkit.NewTable(spec)})
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	return out, ledger
}

func TestSweepSkipsDegenerateFeatures(t *testing.T) {
	spec := testkit.DefaultTableSpec()
	spec.DegenerateRows = 3
	out, _ := runSweep(t, spec)

	if len(out.Skipped) != 3 {
		t.Fatalf("skipped = %d, want 3 degenerate features", len(out.Skipped))
	}
	for _, sk := range out.Skipped {
		if !strings.HasPrefix(sk.Feature.String(), "DEGEN_") {
			t.Fatalf("unexpected skipped feature %s (%s)", sk.Feature, sk.Reason)
		}
		if sk.Reason == "" {
			t.Fatalf("skip without a reason for %s", sk.Feature)
		}
	}
	for _, r := range out.Results {
		if strings.HasPrefix(r.Feature.String(), "DEGEN_") {
			t.Fatalf("degenerate feature %s received test results", r.Feature)
		}
	}
	if got := out.Manifest.Tested + out.Manifest.Skipped; got != out.Manifest.FeatureCount {
		t.Fatalf("tested+skipped = %d, want feature count %d", got, out.Manifest.FeatureCount)
	}
}

func TestSweepResultsSortedAndDeterministic(t *testing.T) {
	spec := testkit.DefaultTableSpec()
	first, _ := runSweep(t, spec)
	second, _ := runSweep(t, spec)

	for i := 1; i < len(first.Results); i++ {
		if first.Results[i-1].Feature >= first.Results[i].Feature {
			t.Fatalf("results not in sorted feature order at %d: %s >= %s",
				i, first.Results[i-1].Feature, first.Results[i].Feature)
		}
	}

	if len(first.Results) != len(second.Results) {
		t.Fatalf("result counts differ across runs: %d vs %d", len(first.Results), len(second.Results))
	}
	for i := range first.Results {
		a, b := first.Results[i], second.Results[i]
		if a.Feature != b.Feature || len(a.Tests) != len(b.Tests) {
			t.Fatalf("result %d differs structurally across runs", i)
		}
		for j := range a.Tests {
			ta, tb := a.Tests[j], b.Tests[j]
			if ta.Model != tb.Model || ta.Kind != tb.Kind || ta.Applicable != tb.Applicable {
				t.Fatalf("test (%d,%d) differs across runs", i, j)
			}
			if ta.Applicable && (ta.PValue != tb.PValue || ta.Adjusted != tb.Adjusted) {
				t.Fatalf("p-values differ across runs for %s %s/%s", ta.Feature, ta.Model, ta.Kind)
			}
		}
	}
}

func TestSweepNAPolicy(t *testing.T) {
	out, _ := runSweep(t, testkit.DefaultTableSpec())

	for _, r := range out.Results {
		for _, tr := range r.Tests {
			isSmooth := tr.Model == "smooth-null" || tr.Model == "smooth-by-group"
			noInteraction := tr.Model == "group-only" ||
				strings.HasSuffix(tr.Model.String(), "interaction-0")

			if tr.Kind == stats.TestWald && (isSmooth || noInteraction) && tr.Applicable {
				t.Fatalf("Wald must be NA for %s", tr.Model)
			}
			if !tr.Applicable {
				if !math.IsNaN(tr.PValue) || !math.IsNaN(tr.Adjusted) || tr.Significant {
					t.Fatalf("NA test %s %s/%s carries values", tr.Feature, tr.Model, tr.Kind)
				}
				continue
			}
			if math.IsNaN(tr.PValue) {
				t.Fatalf("applicable test %s %s/%s has NaN p-value", tr.Feature, tr.Model, tr.Kind)
			}
			if tr.Adjusted < tr.PValue {
				t.Fatalf("adjusted %v below raw %v for %s %s/%s",
					tr.Adjusted, tr.PValue, tr.Feature, tr.Model, tr.Kind)
			}
			if tr.Kind == stats.TestLR && tr.DF <= 0 {
				t.Fatalf("applicable LR with df %v for %s %s", tr.DF, tr.Feature, tr.Model)
			}
		}
	}
}

func TestSweepDetectsShiftedFeatures(t *testing.T) {
	spec := testkit.DefaultTableSpec()
	spec.Shift = 1.5
	out, _ := runSweep(t, spec)

	shiftSignificant := false
	for _, r := range out.Results {
		for _, tr := range r.Tests {
			if !tr.Significant {
				continue
			}
			if strings.HasPrefix(r.Feature.String(), "SHIFT_") && tr.Kind == stats.TestLR {
				shiftSignificant = true
			}
		}
	}
	if !shiftSignificant {
		t.Fatal("no shifted feature reached LR significance despite a 1.5 sd shift")
	}

	// Shifted features must rank ahead of null features in the per-group
	// smooth LR family.
	var shiftSum, nullSum float64
	var shiftN, nullN int
	for _, r := range out.Results {
		for _, tr := range r.Tests {
			if tr.Model != "smooth-by-group" || tr.Kind != stats.TestLR || !tr.Applicable {
				continue
			}
			if strings.HasPrefix(r.Feature.String(), "SHIFT_") {
				shiftSum += tr.PValue
				shiftN++
			} else {
				nullSum += tr.PValue
				nullN++
			}
		}
	}
	if shiftN == 0 || nullN == 0 {
		t.Fatal("smooth-by-group LR family missing results")
	}
	if shiftSum/float64(shiftN) >= nullSum/float64(nullN) {
		t.Fatalf("mean shifted p %v not below mean null p %v",
			shiftSum/float64(shiftN), nullSum/float64(nullN))
	}
}

func TestSweepManifestCounts(t *testing.T) {
	spec := testkit.DefaultTableSpec()
	spec.DegenerateRows = 2
	out, ledger := runSweep(t, spec)

	m := out.Manifest
	if m.FeatureCount != spec.NullFeatures+spec.ShiftFeatures+spec.DegenerateRows {
		t.Fatalf("manifest feature count = %d", m.FeatureCount)
	}
	if m.Skipped != 2 {
		t.Fatalf("manifest skipped = %d, want 2", m.Skipped)
	}
	if m.FDRThreshold != 0.05 || m.BinCount != 20 || m.MainDegree != 4 {
		t.Fatalf("manifest does not echo the configuration: %+v", m)
	}
	total := 0
	for _, n := range m.SkipReasons {
		total += n
	}
	if total != m.Skipped {
		t.Fatalf("skip reason histogram sums to %d, want %d: %v", total, m.Skipped, m.SkipReasons)
	}

	stored, err := ledger.GetSweepManifest(context.Background(), m.Sweep)
	if err != nil {
		t.Fatalf("manifest not persisted: %v", err)
	}
	if stored.Fingerprint != m.Fingerprint {
		t.Fatal("persisted manifest fingerprint differs")
	}

	artifacts, err := ledger.GetArtifactsBySweep(context.Background(), m.Sweep)
	if err != nil {
		t.Fatalf("load artifacts: %v", err)
	}
	// One profile per feature, one skip or result per feature, failed fits,
	// one manifest.
	wantMin := m.FeatureCount + m.Tested + m.Skipped + m.FailedFits + 1
	if len(artifacts) != wantMin {
		t.Fatalf("artifact count = %d, want %d", len(artifacts), wantMin)
	}
}

func TestSweepRejectsEmptyTable(t *testing.T) {
	svc := NewDensitySweepService(testDensityConfig(), 2, testkit.NewInMemoryLedger(), nil)
	if _, err := svc.Run(context.Background(), SweepRequest{}); err == nil {
		t.Fatal("expected error for missing table")
	}
}
