package excel

import (
	"context"

	"pepdensity/domain/core"
	"pepdensity/domain/dataset"
	"pepdensity/internal/errors"
	"pepdensity/ports"
)

// TableSource implements ports.TableSourcePort from a matrix file and a
// covariate file.
//
// Matrix layout: first column holds feature keys, remaining header cells are
// sample IDs, cells are intensities (blank/NA for missing).
// Covariate layout: columns "sample" and "group".
type TableSource struct {
	matrixPath    string
	covariatePath string
}

// NewTableSource builds the adapter.
func NewTableSource(matrixPath, covariatePath string) *TableSource {
	return &TableSource{matrixPath: matrixPath, covariatePath: covariatePath}
}

var _ ports.TableSourcePort = (*TableSource)(nil)

// LoadFeatureTable reads and joins the two files. Every matrix sample must
// have a covariate row; covariate rows without a matrix column are an error
// too, since a silent drop would change the group totals.
func (s *TableSource) LoadFeatureTable(_ context.Context) (*dataset.FeatureTable, error) {
	matrix, err := ReadTable(s.matrixPath)
	if err != nil {
		return nil, err
	}
	groupsBySample, err := s.loadCovariates()
	if err != nil {
		return nil, err
	}

	if len(matrix.Header) < 2 {
		return nil, errors.InvalidInput("matrix file has no sample columns")
	}
	samples := make([]core.SampleID, 0, len(matrix.Header)-1)
	groups := make([]core.GroupLabel, 0, len(matrix.Header)-1)
	for _, h := range matrix.Header[1:] {
		sample := core.SampleID(h)
		group, ok := groupsBySample[sample]
		if !ok {
			return nil, errors.InvalidInput("sample " + h + " has no covariate row")
		}
		samples = append(samples, sample)
		groups = append(groups, group)
		delete(groupsBySample, sample)
	}
	for sample := range groupsBySample {
		return nil, errors.InvalidInput("covariate row for unknown sample " + sample.String())
	}

	features := make([]core.FeatureKey, 0, len(matrix.Rows))
	intensities := make([][]float64, 0, len(matrix.Rows))
	for _, row := range matrix.Rows {
		feature, err := core.ParseFeatureKey(cellAt(row, 0))
		if err != nil {
			return nil, errors.Wrap(err, "matrix feature column")
		}
		values := make([]float64, len(samples))
		for j := range samples {
			v, err := parseIntensity(cellAt(row, j+1))
			if err != nil {
				return nil, errors.Wrap(err, "feature "+feature.String())
			}
			values[j] = v
		}
		features = append(features, feature)
		intensities = append(intensities, values)
	}

	table, err := dataset.NewFeatureTable(features, samples, groups, intensities)
	if err != nil {
		return nil, errors.Wrap(err, "assemble feature table")
	}
	return table, nil
}

func (s *TableSource) loadCovariates() (map[core.SampleID]core.GroupLabel, error) {
	cov, err := ReadTable(s.covariatePath)
	if err != nil {
		return nil, err
	}
	sampleCol, ok := columnIndex(cov.Header, "sample")
	if !ok {
		return nil, errors.InvalidInput("covariate file is missing a 'sample' column")
	}
	groupCol, ok := columnIndex(cov.Header, "group")
	if !ok {
		return nil, errors.InvalidInput("covariate file is missing a 'group' column")
	}

	out := make(map[core.SampleID]core.GroupLabel, len(cov.Rows))
	for _, row := range cov.Rows {
		sample := core.SampleID(cellAt(row, sampleCol))
		if sample == "" {
			continue
		}
		group, err := core.ParseGroupLabel(cellAt(row, groupCol))
		if err != nil {
			return nil, errors.Wrap(err, "covariate group for sample "+sample.String())
		}
		if prev, dup := out[sample]; dup && prev != group {
			return nil, errors.InvalidInput("sample " + sample.String() + " assigned to two groups")
		}
		out[sample] = group
	}
	if len(out) == 0 {
		return nil, errors.InvalidInput("covariate file has no usable rows")
	}
	return out, nil
}
