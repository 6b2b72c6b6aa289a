package ports

import (
	"context"

	"pepdensity/domain/core"
	"pepdensity/domain/stats"
)

// LedgerWriterPort provides append-only write access to sweep artifacts.
// Services only write through this port; nothing downstream reads its own
// writes back mid-sweep.
type LedgerWriterPort interface {
	StoreArtifact(ctx context.Context, sweepID core.SweepID, artifact core.Artifact) error
}

// LedgerReaderPort provides read-only access to stored artifacts for the
// report server and the CLI.
type LedgerReaderPort interface {
	ListArtifacts(ctx context.Context, filters ArtifactFilters) ([]core.Artifact, error)
	GetArtifact(ctx context.Context, artifactID core.ArtifactID) (*core.Artifact, error)
	GetArtifactsBySweep(ctx context.Context, sweepID core.SweepID) ([]core.Artifact, error)
	GetArtifactsByKind(ctx context.Context, kind core.ArtifactKind, limit int) ([]core.Artifact, error)
	GetSweepManifest(ctx context.Context, sweepID core.SweepID) (*stats.SweepManifest, error)
	ListSweeps(ctx context.Context, limit int) ([]stats.SweepManifest, error)
}

// ArtifactFilters narrows artifact queries.
type ArtifactFilters struct {
	Sweep   *core.SweepID
	Kind    *core.ArtifactKind
	Feature *core.FeatureKey
	Limit   int
	Offset  int
}

// LedgerPort combines read and write access for wiring.
type LedgerPort interface {
	LedgerWriterPort
	LedgerReaderPort
}
