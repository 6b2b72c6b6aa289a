package histogram

import (
	"math"
	"testing"

	"pepdensity/domain/core"
	"pepdensity/internal/errors"
)

func TestNewGridEdges(t *testing.T) {
	g, err := NewGrid([]float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 10}, 5)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	if g.BinCount() != 5 {
		t.Fatalf("bin count = %d, want 5", g.BinCount())
	}
	if g.Min != 0 || g.Max != 10 {
		t.Fatalf("range = [%g, %g], want [0, 10]", g.Min, g.Max)
	}
	if g.Width != 2 {
		t.Fatalf("width = %g, want 2", g.Width)
	}
	if len(g.Edges) != len(g.Midpoints)+1 {
		t.Fatalf("%d edges for %d midpoints", len(g.Edges), len(g.Midpoints))
	}
	for i := 1; i < len(g.Edges); i++ {
		if g.Edges[i] <= g.Edges[i-1] {
			t.Fatalf("edges not strictly increasing at %d: %v", i, g.Edges)
		}
	}
	if g.Edges[len(g.Edges)-1] != g.Max {
		t.Fatalf("last edge %g != max %g", g.Edges[len(g.Edges)-1], g.Max)
	}
	if g.Midpoints[0] != 1 || g.Midpoints[4] != 9 {
		t.Fatalf("midpoints = %v", g.Midpoints)
	}
}

func TestNewGridIgnoresMissing(t *testing.T) {
	nan := math.NaN()
	g, err := NewGrid([]float64{nan, 2, nan, 6}, 4)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	if g.Min != 2 || g.Max != 6 {
		t.Fatalf("range = [%g, %g], want [2, 6]", g.Min, g.Max)
	}
}

func TestNewGridDegenerate(t *testing.T) {
	cases := []struct {
		name   string
		values []float64
	}{
		{"empty", nil},
		{"all missing", []float64{math.NaN(), math.NaN()}},
		{"constant", []float64{3, 3, 3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewGrid(tc.values, 10); errors.GetCode(err) != errors.CodeDegenerateFeature {
				t.Fatalf("err = %v, want degenerate-feature", err)
			}
		})
	}
	if _, err := NewGrid([]float64{1, 2}, 0); errors.GetCode(err) != errors.CodeInvalidInput {
		t.Fatalf("zero bins: err = %v, want invalid-input", err)
	}
}

func TestCountStrictDropsEdgeValues(t *testing.T) {
	g, err := NewGrid([]float64{0, 10}, 2)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	// 0, 5, and 10 sit exactly on edges and count nowhere.
	counts := g.CountStrict([]float64{0, 2.5, 5, 7.5, 10, math.NaN()})
	if counts[0] != 1 || counts[1] != 1 {
		t.Fatalf("counts = %v, want [1 1]", counts)
	}
}

func TestDiscretize(t *testing.T) {
	grouped := map[core.GroupLabel][]float64{
		"treated": {0.5, 1.5, 2.5, 3.5, 9.5},
		"control": {0, 1.5, 4.5, 10},
	}
	binned, err := Discretize("PEP_X", grouped, 5)
	if err != nil {
		t.Fatalf("Discretize: %v", err)
	}
	if len(binned.Groups) != 2 {
		t.Fatalf("group count = %d, want 2", len(binned.Groups))
	}
	// Groups come out sorted regardless of map order.
	if binned.Groups[0].Group != "control" || binned.Groups[1].Group != "treated" {
		t.Fatalf("group order = %v", binned.GroupLevels())
	}
	// Carrier is total observed count times bin width, independent of the
	// strict boundary drops.
	if got, want := binned.Groups[0].Carrier, 4*binned.Grid.Width; got != want {
		t.Fatalf("control carrier = %g, want %g", got, want)
	}
	if got, want := binned.Groups[1].Carrier, 5*binned.Grid.Width; got != want {
		t.Fatalf("treated carrier = %g, want %g", got, want)
	}
	if binned.Groups[0].Total != 4 || binned.Groups[1].Total != 5 {
		t.Fatalf("totals = %d, %d", binned.Groups[0].Total, binned.Groups[1].Total)
	}
}

func TestDiscretizeSingleGroup(t *testing.T) {
	grouped := map[core.GroupLabel][]float64{"only": {1, 2, 3}}
	if _, err := Discretize("PEP_X", grouped, 5); errors.GetCode(err) != errors.CodeDegenerateFeature {
		t.Fatalf("err = %v, want degenerate-feature", err)
	}
}

func TestRowsLongFormat(t *testing.T) {
	grouped := map[core.GroupLabel][]float64{
		"a": {0, 1, 2, 3, 4},
		"b": {0, 1, 2, 3, 4},
	}
	binned, err := Discretize("PEP_X", grouped, 4)
	if err != nil {
		t.Fatalf("Discretize: %v", err)
	}
	rows := binned.Rows()
	if len(rows) != 2*4 {
		t.Fatalf("row count = %d, want 8", len(rows))
	}
	for i, r := range rows {
		wantGroup := binned.Groups[r.GroupIndex].Group
		if r.Group != wantGroup {
			t.Fatalf("row %d group = %s, index points at %s", i, r.Group, wantGroup)
		}
		if r.Exposure != binned.Groups[r.GroupIndex].Carrier {
			t.Fatalf("row %d exposure = %g", i, r.Exposure)
		}
		if r.Midpoint != binned.Grid.Midpoints[i%4] {
			t.Fatalf("row %d midpoint = %g", i, r.Midpoint)
		}
	}
}
