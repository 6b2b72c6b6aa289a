// Package migration manages the ledger database schema.
package migration

import (
	"context"

	"github.com/jmoiron/sqlx"

	"pepdensity/internal/errors"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner creates and upgrades the artifacts schema.
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{version: "1.0.0"}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all migrations in order. Every statement is idempotent, so the
// runner is safe to call on every startup.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createArtifactsTable(ctx, db); err != nil {
		return errors.Wrap(err, "create artifacts table")
	}
	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "create artifact indexes")
	}
	return nil
}

func (r *MigrationRunner) createArtifactsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS artifacts (
			id VARCHAR(64) PRIMARY KEY,
			sweep_id VARCHAR(64) NOT NULL,
			kind VARCHAR(50) NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_artifacts_sweep_id ON artifacts(sweep_id)",
		"CREATE INDEX IF NOT EXISTS idx_artifacts_kind ON artifacts(kind)",
		"CREATE INDEX IF NOT EXISTS idx_artifacts_sweep_kind ON artifacts(sweep_id, kind)",
		"CREATE INDEX IF NOT EXISTS idx_artifacts_created_at ON artifacts(created_at DESC)",
		// The feature key lives inside the payload; the expression index keeps
		// per-feature queries from scanning whole sweeps.
		"CREATE INDEX IF NOT EXISTS idx_artifacts_feature ON artifacts((payload->>'feature'))",
	}
	for _, idx := range indexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}
