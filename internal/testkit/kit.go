// Package testkit provides deterministic fixtures for the sweep tests: an
// in-memory ledger and seeded synthetic feature tables with known effects.
package testkit

import (
	"math"
	"math/rand"

	"pepdensity/domain/core"
	"pepdensity/domain/dataset"
)

// TableSpec configures a synthetic feature table.
type TableSpec struct {
	Seed           int64
	SamplesPerArm  int
	NullFeatures   int     // features with no group difference
	ShiftFeatures  int     // features with a location shift in the treated arm
	Shift          float64 // shift size in standard deviations
	DegenerateRows int     // all-NaN features, for skip-path coverage
}

// DefaultTableSpec is large enough for the fits to be well conditioned and
// small enough for fast tests.
func DefaultTableSpec() TableSpec {
	return TableSpec{
		Seed:          1914,
		SamplesPerArm: 120,
		NullFeatures:  6,
		ShiftFeatures: 4,
		Shift:         1.2,
	}
}

// NewTable builds a two-arm synthetic table. Feature keys are stable:
// NULL_### for no-effect features, SHIFT_### for shifted features, DEGEN_###
// for degenerate rows. The generator is fully determined by the seed.
func NewTable(spec TableSpec) *dataset.FeatureTable {
	rng := rand.New(rand.NewSource(spec.Seed))

	n := 2 * spec.SamplesPerArm
	samples := make([]core.SampleID, n)
	groups := make([]core.GroupLabel, n)
	for i := 0; i < n; i++ {
		if i < spec.SamplesPerArm {
			samples[i] = core.SampleID(fmtKey("CTRL_S", i))
			groups[i] = "control"
		} else {
			samples[i] = core.SampleID(fmtKey("TRT_S", i-spec.SamplesPerArm))
			groups[i] = "treated"
		}
	}

	var features []core.FeatureKey
	var rows [][]float64

	for f := 0; f < spec.NullFeatures; f++ {
		features = append(features, core.FeatureKey(fmtKey("NULL_", f)))
		row := make([]float64, n)
		for i := range row {
			row[i] = rng.NormFloat64()
		}
		rows = append(rows, row)
	}
	for f := 0; f < spec.ShiftFeatures; f++ {
		features = append(features, core.FeatureKey(fmtKey("SHIFT_", f)))
		row := make([]float64, n)
		for i := range row {
			row[i] = rng.NormFloat64()
			if groups[i] == "treated" {
				row[i] += spec.Shift
			}
		}
		rows = append(rows, row)
	}
	for f := 0; f < spec.DegenerateRows; f++ {
		features = append(features, core.FeatureKey(fmtKey("DEGEN_", f)))
		row := make([]float64, n)
		for i := range row {
			row[i] = math.NaN()
		}
		rows = append(rows, row)
	}

	table, err := dataset.NewFeatureTable(features, samples, groups, rows)
	if err != nil {
		// The generator controls every dimension; a construction error here
		// is a bug in the kit itself.
		panic(err)
	}
	return table
}

func fmtKey(prefix string, i int) string {
	digits := [3]byte{'0' + byte(i/100%10), '0' + byte(i/10%10), '0' + byte(i%10)}
	return prefix + string(digits[:])
}
