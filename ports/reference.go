package ports

import (
	"context"

	"pepdensity/domain/stats"
)

// ReferenceCallsPort loads the external reference workflow's per-feature
// calls (the mixed-effects baseline) for the comparison report.
type ReferenceCallsPort interface {
	LoadReferenceCalls(ctx context.Context) ([]stats.ReferenceCall, error)
}
