package histogram

import (
	"math"

	"pepdensity/domain/core"
	"pepdensity/internal/errors"
)

// Grid is the shared discretization grid for one feature: equal-width bins
// spanning the feature's global min/max across all groups.
// Invariant: len(Edges) == len(Midpoints)+1 and Edges is strictly increasing.
type Grid struct {
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Width     float64   `json:"width"`
	Edges     []float64 `json:"edges"`
	Midpoints []float64 `json:"midpoints"`
}

// NewGrid builds the bin grid from one feature's full measurement vector.
// Missing (NaN) entries are ignored. Fails with a degenerate-feature error when
// fewer than two distinct finite values remain: the bin width would be zero and
// every downstream count undefined.
func NewGrid(values []float64, nBins int) (*Grid, error) {
	if nBins <= 0 {
		return nil, errors.InvalidInput("bin count must be positive")
	}

	min := math.Inf(1)
	max := math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if math.IsInf(min, 1) {
		return nil, errors.DegenerateFeature("no observed values")
	}
	if min == max {
		return nil, errors.DegenerateFeature("fewer than 2 distinct values, bin width would be zero")
	}

	width := (max - min) / float64(nBins)
	edges := make([]float64, nBins+1)
	for i := range edges {
		edges[i] = min + float64(i)*width
	}
	edges[nBins] = max // avoid accumulation drift on the last edge

	midpoints := make([]float64, nBins)
	for i := range midpoints {
		midpoints[i] = edges[i] + width/2
	}

	return &Grid{
		Min:       min,
		Max:       max,
		Width:     width,
		Edges:     edges,
		Midpoints: midpoints,
	}, nil
}

// BinCount returns the number of bins.
func (g *Grid) BinCount() int {
	return len(g.Midpoints)
}

// CountStrict counts values strictly inside each bin: edge values are dropped
// on both sides. This mirrors the reference workflow's boundary policy; the
// global min and max of a feature therefore never land in any bin. Flagged as
// an open question for the domain owners, not silently "fixed" here.
func (g *Grid) CountStrict(values []float64) []float64 {
	counts := make([]float64, g.BinCount())
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		for b := 0; b < g.BinCount(); b++ {
			if v > g.Edges[b] && v < g.Edges[b+1] {
				counts[b]++
				break
			}
		}
	}
	return counts
}

// BinnedFeature is the discretized form of one feature: shared grid plus
// per-group counts and carriers, in deterministic group order.
type BinnedFeature struct {
	Feature core.FeatureKey `json:"feature"`
	Grid    *Grid           `json:"grid"`
	Groups  []GroupBins     `json:"groups"`
}

// GroupBins holds one group's histogram over the shared grid together with
// its carrier (Poisson exposure).
type GroupBins struct {
	Group  core.GroupLabel `json:"group"`
	Counts []float64       `json:"counts"`
	// Carrier is the exposure for the uniform reference density:
	// total observed count in the group times the bin width. Constant across
	// the group's bins; entered into the fit as a log offset.
	Carrier float64 `json:"carrier"`
	// Total is the number of observed values in the group (before the strict
	// boundary policy drops edge-touching values).
	Total int `json:"total"`
}

// Discretize bins one feature's grouped measurements onto a shared grid.
// Returns a degenerate-feature error if the pooled vector cannot support a
// grid or if fewer than two groups have observations (no interaction test is
// meaningful with a single group level).
func Discretize(feature core.FeatureKey, grouped map[core.GroupLabel][]float64, nBins int) (*BinnedFeature, error) {
	if len(grouped) < 2 {
		return nil, errors.DegenerateFeature("fewer than 2 groups present")
	}

	var pooled []float64
	for _, vs := range grouped {
		pooled = append(pooled, vs...)
	}
	grid, err := NewGrid(pooled, nBins)
	if err != nil {
		return nil, err
	}

	groups := make([]GroupBins, 0, len(grouped))
	for g, vs := range grouped {
		groups = append(groups, GroupBins{
			Group:   g,
			Counts:  grid.CountStrict(vs),
			Carrier: float64(len(vs)) * grid.Width,
			Total:   len(vs),
		})
	}
	sortGroupBins(groups)

	return &BinnedFeature{Feature: feature, Grid: grid, Groups: groups}, nil
}

func sortGroupBins(groups []GroupBins) {
	for i := 1; i < len(groups); i++ {
		for j := i; j > 0 && groups[j].Group < groups[j-1].Group; j-- {
			groups[j], groups[j-1] = groups[j-1], groups[j]
		}
	}
}

// Rows flattens the binned feature into the long format the fitters consume:
// one observation per (group, bin).
func (b *BinnedFeature) Rows() []Observation {
	rows := make([]Observation, 0, len(b.Groups)*b.Grid.BinCount())
	for gi, g := range b.Groups {
		for bi, c := range g.Counts {
			rows = append(rows, Observation{
				GroupIndex: gi,
				Group:      g.Group,
				Midpoint:   b.Grid.Midpoints[bi],
				Count:      c,
				Exposure:   g.Carrier,
			})
		}
	}
	return rows
}

// Observation is one (group, bin) cell in long format.
type Observation struct {
	GroupIndex int
	Group      core.GroupLabel
	Midpoint   float64
	Count      float64
	Exposure   float64
}

// GroupLevels returns the group labels of the binned feature in order.
func (b *BinnedFeature) GroupLevels() []core.GroupLabel {
	levels := make([]core.GroupLabel, len(b.Groups))
	for i, g := range b.Groups {
		levels[i] = g.Group
	}
	return levels
}
