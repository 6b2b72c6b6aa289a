package ports

import (
	"context"

	"pepdensity/domain/dataset"
)

// TableSourcePort loads the feature intensity table and its group assignment
// from wherever the deployment keeps them (workbook, CSV export).
type TableSourcePort interface {
	LoadFeatureTable(ctx context.Context) (*dataset.FeatureTable, error)
}
