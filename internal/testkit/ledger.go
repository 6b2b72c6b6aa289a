package testkit

import (
	"context"
	"sync"

	"pepdensity/domain/core"
	"pepdensity/domain/stats"
	"pepdensity/internal/errors"
	"pepdensity/ports"
)

// InMemoryLedger implements ports.LedgerPort over process memory. The sweep
// tests and the dev command use it in place of the Postgres ledger.
type InMemoryLedger struct {
	mu             sync.RWMutex
	artifacts      map[core.ArtifactID]core.Artifact
	sweepArtifacts map[core.SweepID][]core.ArtifactID
	sweepOrder     []core.SweepID
}

// NewInMemoryLedger builds an empty ledger.
func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{
		artifacts:      make(map[core.ArtifactID]core.Artifact),
		sweepArtifacts: make(map[core.SweepID][]core.ArtifactID),
	}
}

// StoreArtifact appends one artifact under the sweep.
func (l *InMemoryLedger) StoreArtifact(_ context.Context, sweepID core.SweepID, artifact core.Artifact) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := core.ArtifactID(artifact.ID)
	l.artifacts[id] = artifact
	if _, known := l.sweepArtifacts[sweepID]; !known {
		l.sweepOrder = append(l.sweepOrder, sweepID)
	}
	l.sweepArtifacts[sweepID] = append(l.sweepArtifacts[sweepID], id)
	return nil
}

// ListArtifacts returns artifacts matching the filters, in insertion order
// within each sweep.
func (l *InMemoryLedger) ListArtifacts(_ context.Context, filters ports.ArtifactFilters) ([]core.Artifact, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []core.Artifact
	skipped := 0
	for _, sweepID := range l.sweepOrder {
		if filters.Sweep != nil && sweepID != *filters.Sweep {
			continue
		}
		for _, id := range l.sweepArtifacts[sweepID] {
			a := l.artifacts[id]
			if filters.Kind != nil && a.Kind != *filters.Kind {
				continue
			}
			if filters.Feature != nil && !artifactMatchesFeature(a, *filters.Feature) {
				continue
			}
			if skipped < filters.Offset {
				skipped++
				continue
			}
			out = append(out, a)
			if filters.Limit > 0 && len(out) >= filters.Limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func artifactMatchesFeature(a core.Artifact, feature core.FeatureKey) bool {
	switch p := a.Payload.(type) {
	case stats.FeatureResult:
		return p.Feature == feature
	case stats.SkippedFeature:
		return p.Feature == feature
	case stats.FailedFit:
		return p.Feature == feature
	default:
		return false
	}
}

// GetArtifact looks one artifact up by ID.
func (l *InMemoryLedger) GetArtifact(_ context.Context, artifactID core.ArtifactID) (*core.Artifact, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	a, ok := l.artifacts[artifactID]
	if !ok {
		return nil, errors.NotFound("artifact " + artifactID.String())
	}
	return &a, nil
}

// GetArtifactsBySweep returns the sweep's artifacts in insertion order.
func (l *InMemoryLedger) GetArtifactsBySweep(_ context.Context, sweepID core.SweepID) ([]core.Artifact, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := l.sweepArtifacts[sweepID]
	out := make([]core.Artifact, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.artifacts[id])
	}
	return out, nil
}

// GetArtifactsByKind returns up to limit artifacts of the given kind.
func (l *InMemoryLedger) GetArtifactsByKind(ctx context.Context, kind core.ArtifactKind, limit int) ([]core.Artifact, error) {
	return l.ListArtifacts(ctx, ports.ArtifactFilters{Kind: &kind, Limit: limit})
}

// GetSweepManifest returns the manifest artifact stored for a sweep.
func (l *InMemoryLedger) GetSweepManifest(_ context.Context, sweepID core.SweepID) (*stats.SweepManifest, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, id := range l.sweepArtifacts[sweepID] {
		a := l.artifacts[id]
		if a.Kind != core.ArtifactSweepManifest {
			continue
		}
		if m, ok := a.Payload.(stats.SweepManifest); ok {
			return &m, nil
		}
	}
	return nil, errors.NotFound("manifest for sweep " + sweepID.String())
}

// ListSweeps returns the most recent manifests, newest first.
func (l *InMemoryLedger) ListSweeps(ctx context.Context, limit int) ([]stats.SweepManifest, error) {
	l.mu.RLock()
	order := make([]core.SweepID, len(l.sweepOrder))
	copy(order, l.sweepOrder)
	l.mu.RUnlock()

	var out []stats.SweepManifest
	for i := len(order) - 1; i >= 0; i-- {
		m, err := l.GetSweepManifest(ctx, order[i])
		if err != nil {
			continue
		}
		out = append(out, *m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
