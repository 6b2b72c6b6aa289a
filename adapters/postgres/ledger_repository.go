// Package postgres persists sweep artifacts in PostgreSQL through sqlx.
package postgres

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"pepdensity/domain/core"
	"pepdensity/domain/histogram"
	"pepdensity/domain/stats"
	"pepdensity/internal/errors"
	"pepdensity/ports"
)

// LedgerRepository implements ports.LedgerPort on the artifacts table.
// Payloads are stored as JSONB and decoded back to their concrete domain
// types by artifact kind.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository opens the connection and verifies it.
func NewLedgerRepository(databaseURL string) (*LedgerRepository, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, errors.DatabaseWrap("connect", err)
	}
	return &LedgerRepository{db: db}, nil
}

// NewLedgerRepositoryFromDB wraps an existing connection (used by tests and
// the migration command).
func NewLedgerRepositoryFromDB(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

var _ ports.LedgerPort = (*LedgerRepository)(nil)

// Close releases the connection pool.
func (r *LedgerRepository) Close() error {
	return r.db.Close()
}

type artifactRow struct {
	ID        string          `db:"id"`
	SweepID   string          `db:"sweep_id"`
	Kind      string          `db:"kind"`
	Payload   json.RawMessage `db:"payload"`
	CreatedAt core.Timestamp  `db:"created_at"`
}

// StoreArtifact appends one artifact. The table is append-only; there is no
// update path.
func (r *LedgerRepository) StoreArtifact(ctx context.Context, sweepID core.SweepID, artifact core.Artifact) error {
	payload, err := json.Marshal(artifact.Payload)
	if err != nil {
		return errors.Wrap(err, "encode artifact payload")
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO artifacts (id, sweep_id, kind, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, artifact.ID.String(), sweepID.String(), string(artifact.Kind), payload, artifact.CreatedAt.Time())
	if err != nil {
		return errors.DatabaseWrap("insert artifact", err)
	}
	return nil
}

// ListArtifacts queries with the given filters, in insertion order.
func (r *LedgerRepository) ListArtifacts(ctx context.Context, filters ports.ArtifactFilters) ([]core.Artifact, error) {
	query := `SELECT id, sweep_id, kind, payload, created_at FROM artifacts WHERE 1=1`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filters.Sweep != nil {
		query += ` AND sweep_id = ` + arg(filters.Sweep.String())
	}
	if filters.Kind != nil {
		query += ` AND kind = ` + arg(string(*filters.Kind))
	}
	if filters.Feature != nil {
		query += ` AND payload->>'feature' = ` + arg(filters.Feature.String())
	}
	query += ` ORDER BY created_at, id`
	if filters.Limit > 0 {
		query += ` LIMIT ` + arg(filters.Limit)
	}
	if filters.Offset > 0 {
		query += ` OFFSET ` + arg(filters.Offset)
	}

	var rows []artifactRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.DatabaseWrap("list artifacts", err)
	}
	return decodeRows(rows)
}

// GetArtifact looks one artifact up by ID.
func (r *LedgerRepository) GetArtifact(ctx context.Context, artifactID core.ArtifactID) (*core.Artifact, error) {
	var row artifactRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, sweep_id, kind, payload, created_at FROM artifacts WHERE id = $1
	`, artifactID.String())
	if err != nil {
		return nil, errors.NotFound("artifact " + artifactID.String())
	}
	a, err := decodeRow(row)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetArtifactsBySweep returns a sweep's artifacts in insertion order.
func (r *LedgerRepository) GetArtifactsBySweep(ctx context.Context, sweepID core.SweepID) ([]core.Artifact, error) {
	return r.ListArtifacts(ctx, ports.ArtifactFilters{Sweep: &sweepID})
}

// GetArtifactsByKind returns up to limit artifacts of one kind.
func (r *LedgerRepository) GetArtifactsByKind(ctx context.Context, kind core.ArtifactKind, limit int) ([]core.Artifact, error) {
	return r.ListArtifacts(ctx, ports.ArtifactFilters{Kind: &kind, Limit: limit})
}

// GetSweepManifest returns the manifest stored for one sweep.
func (r *LedgerRepository) GetSweepManifest(ctx context.Context, sweepID core.SweepID) (*stats.SweepManifest, error) {
	var row artifactRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, sweep_id, kind, payload, created_at FROM artifacts
		WHERE sweep_id = $1 AND kind = $2
		ORDER BY created_at DESC LIMIT 1
	`, sweepID.String(), string(core.ArtifactSweepManifest))
	if err != nil {
		return nil, errors.NotFound("manifest for sweep " + sweepID.String())
	}
	var m stats.SweepManifest
	if err := json.Unmarshal(row.Payload, &m); err != nil {
		return nil, errors.Wrap(err, "decode sweep manifest")
	}
	return &m, nil
}

// ListSweeps returns the most recent manifests, newest first.
func (r *LedgerRepository) ListSweeps(ctx context.Context, limit int) ([]stats.SweepManifest, error) {
	query := `
		SELECT id, sweep_id, kind, payload, created_at FROM artifacts
		WHERE kind = $1 ORDER BY created_at DESC
	`
	args := []interface{}{string(core.ArtifactSweepManifest)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	var rows []artifactRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.DatabaseWrap("list sweeps", err)
	}
	out := make([]stats.SweepManifest, 0, len(rows))
	for _, row := range rows {
		var m stats.SweepManifest
		if err := json.Unmarshal(row.Payload, &m); err != nil {
			return nil, errors.Wrap(err, "decode sweep manifest")
		}
		out = append(out, m)
	}
	return out, nil
}

func decodeRows(rows []artifactRow) ([]core.Artifact, error) {
	out := make([]core.Artifact, 0, len(rows))
	for _, row := range rows {
		a, err := decodeRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// decodeRow revives the payload into the concrete domain type for its kind,
// so readers get the same values the sweep stored.
func decodeRow(row artifactRow) (core.Artifact, error) {
	a := core.Artifact{
		ID:        core.ID(row.ID),
		Kind:      core.ArtifactKind(row.Kind),
		CreatedAt: row.CreatedAt,
	}

	var payload interface{}
	switch a.Kind {
	case core.ArtifactFeatureResult:
		payload = &stats.FeatureResult{}
	case core.ArtifactFeatureProfile:
		payload = &histogram.FeatureProfile{}
	case core.ArtifactSkippedFeature:
		payload = &stats.SkippedFeature{}
	case core.ArtifactFailedFit:
		payload = &stats.FailedFit{}
	case core.ArtifactSweepManifest:
		payload = &stats.SweepManifest{}
	case core.ArtifactComparison:
		payload = &stats.FamilyComparison{}
	default:
		var generic map[string]interface{}
		if err := json.Unmarshal(row.Payload, &generic); err != nil {
			return core.Artifact{}, errors.Wrap(err, "decode artifact payload")
		}
		a.Payload = generic
		return a, nil
	}

	if err := json.Unmarshal(row.Payload, payload); err != nil {
		return core.Artifact{}, errors.Wrap(err, "decode "+row.Kind+" payload")
	}
	// Store the value, not the pointer, to match what the sweep wrote.
	switch p := payload.(type) {
	case *stats.FeatureResult:
		a.Payload = *p
	case *histogram.FeatureProfile:
		a.Payload = *p
	case *stats.SkippedFeature:
		a.Payload = *p
	case *stats.FailedFit:
		a.Payload = *p
	case *stats.SweepManifest:
		a.Payload = *p
	case *stats.FamilyComparison:
		a.Payload = *p
	}
	return a, nil
}
