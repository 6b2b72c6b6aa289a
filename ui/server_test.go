package ui

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pepdensity/domain/core"
	"pepdensity/domain/stats"
	"pepdensity/internal/testkit"
)

func seedLedger(t *testing.T) (*testkit.InMemoryLedger, core.SweepID) {
	t.Helper()
	ledger := testkit.NewInMemoryLedger()
	sweepID := core.SweepID("sweep-test-1")
	ctx := context.Background()

	store := func(kind core.ArtifactKind, payload interface{}) {
		err := ledger.StoreArtifact(ctx, sweepID, core.Artifact{
			ID:        core.NewID(),
			Kind:      kind,
			Payload:   payload,
			CreatedAt: core.Now(),
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	store(core.ArtifactFeatureResult, stats.FeatureResult{
		Feature: "PEP_A",
		Tests: []stats.TestResult{
			{
				Feature: "PEP_A", Model: "degree-4-interaction-2", Kind: stats.TestLR,
				Applicable: true, Statistic: 12.5, DF: 2, PValue: 0.0019, Adjusted: 0.004, Significant: true,
			},
			stats.NotApplicable("PEP_A", "smooth-null", stats.TestWald),
		},
	})
	store(core.ArtifactSkippedFeature, stats.SkippedFeature{Feature: "PEP_B", Reason: "fewer than 2 distinct values"})
	store(core.ArtifactSweepManifest, stats.SweepManifest{
		Sweep:        sweepID,
		FeatureCount: 2,
		Tested:       1,
		Skipped:      1,
		BinCount:     40,
		MainDegree:   4,
		FDRThreshold: 0.05,
		SignificantByFamily: map[string]int{
			"degree-4-interaction-2/lr": 1,
		},
	})
	return ledger, sweepID
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestManifestEndpoint(t *testing.T) {
	ledger, sweepID := seedLedger(t)
	srv := NewServer(ledger, nil)

	rec := get(t, srv.Handler(), "/sweeps/"+sweepID.String()+"/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var m stats.SweepManifest
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if m.Sweep != sweepID || m.Tested != 1 {
		t.Fatalf("unexpected manifest: %+v", m)
	}
}

func TestResultsEndpoint(t *testing.T) {
	ledger, sweepID := seedLedger(t)
	srv := NewServer(ledger, nil)

	rec := get(t, srv.Handler(), "/sweeps/"+sweepID.String()+"/results")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var results []stats.FeatureResult
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(results) != 1 || results[0].Feature != "PEP_A" {
		t.Fatalf("results = %+v", results)
	}
	if !results[0].Tests[0].Significant {
		t.Fatal("significance call lost in transport")
	}
	// The NA test must survive the trip: null on the wire, NaN after decode.
	na := results[0].Tests[1]
	if na.Applicable || !math.IsNaN(na.PValue) || !math.IsNaN(na.Statistic) {
		t.Fatalf("NA test corrupted in transport: %+v", na)
	}
}

func TestReportPage(t *testing.T) {
	ledger, sweepID := seedLedger(t)
	srv := NewServer(ledger, nil)

	rec := get(t, srv.Handler(), "/sweeps/"+sweepID.String()+"/report")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content type = %s, want html", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, sweepID.String()) {
		t.Fatal("report page does not mention the sweep")
	}
	if !strings.Contains(body, "degree-4-interaction-2/lr") {
		t.Fatal("report page missing the significant-calls table")
	}
}

func TestIndexPage(t *testing.T) {
	ledger, _ := seedLedger(t)
	srv := NewServer(ledger, nil)

	rec := get(t, srv.Handler(), "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "sweep-test-1") {
		t.Fatal("index page does not list the sweep")
	}
}

func TestUnknownSweepIs404(t *testing.T) {
	ledger, _ := seedLedger(t)
	srv := NewServer(ledger, nil)

	rec := get(t, srv.Handler(), "/sweeps/nope/")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
