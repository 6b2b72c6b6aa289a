package excel

import (
	"context"
	"math"
	"strconv"
	"strings"

	"pepdensity/domain/core"
	"pepdensity/domain/stats"
	"pepdensity/internal/errors"
	"pepdensity/ports"
)

// ReferenceSource implements ports.ReferenceCallsPort from the external
// workflow's export. Expected columns: "feature", "p_value", "adjusted";
// significance is re-derived from the adjusted column at the configured
// threshold so both workflows are compared at the same cutoff.
type ReferenceSource struct {
	path      string
	threshold float64
}

// NewReferenceSource builds the adapter.
func NewReferenceSource(path string, threshold float64) *ReferenceSource {
	return &ReferenceSource{path: path, threshold: threshold}
}

var _ ports.ReferenceCallsPort = (*ReferenceSource)(nil)

// LoadReferenceCalls reads the export. Rows with a non-numeric p-value (the
// reference workflow's own NA marker) are kept with NaN values and never
// counted as significant.
func (s *ReferenceSource) LoadReferenceCalls(_ context.Context) ([]stats.ReferenceCall, error) {
	table, err := ReadTable(s.path)
	if err != nil {
		return nil, err
	}
	featureCol, ok := columnIndex(table.Header, "feature")
	if !ok {
		return nil, errors.InvalidInput("reference file is missing a 'feature' column")
	}
	pCol, ok := columnIndex(table.Header, "p_value")
	if !ok {
		return nil, errors.InvalidInput("reference file is missing a 'p_value' column")
	}
	adjCol, hasAdj := columnIndex(table.Header, "adjusted")

	seen := make(map[core.FeatureKey]struct{}, len(table.Rows))
	calls := make([]stats.ReferenceCall, 0, len(table.Rows))
	for _, row := range table.Rows {
		feature, err := core.ParseFeatureKey(cellAt(row, featureCol))
		if err != nil {
			return nil, errors.Wrap(err, "reference feature column")
		}
		if _, dup := seen[feature]; dup {
			return nil, errors.InvalidInput("duplicate reference row for feature " + feature.String())
		}
		seen[feature] = struct{}{}

		call := stats.ReferenceCall{
			Feature:  feature,
			PValue:   parseReferenceValue(cellAt(row, pCol)),
			Adjusted: math.NaN(),
		}
		if hasAdj {
			call.Adjusted = parseReferenceValue(cellAt(row, adjCol))
		}
		call.Significant = !math.IsNaN(call.Adjusted) && call.Adjusted <= s.threshold
		calls = append(calls, call)
	}
	return calls, nil
}

func parseReferenceValue(cell string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
