package device

import (
	"context"
	"database/sql"
	"fmt"
)

// SyncVersionStore persists the catalog generation counter. A new value on
// each start tells telemetry consumers to resynchronise everything.
type SyncVersionStore struct {
	db *sql.DB
}

// NewSyncVersionStore creates a store over the sync_version table.
func NewSyncVersionStore(db *sql.DB) *SyncVersionStore {
	return &SyncVersionStore{db: db}
}

// Current returns the stored version.
func (s *SyncVersionStore) Current(ctx context.Context) (int64, error) {
	var v int64
	if err := s.db.QueryRowContext(ctx, `SELECT version FROM sync_version WHERE id = 1`).Scan(&v); err != nil {
		return 0, fmt.Errorf("%w: reading sync version: %v", ErrStoreUnavailable, err)
	}
	return v, nil
}

// Bump increments the version and returns the new value.
func (s *SyncVersionStore) Bump(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: beginning transaction: %v", ErrStoreUnavailable, err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sync_version (id, version) VALUES (1, 1)
		 ON CONFLICT(id) DO UPDATE SET version = version + 1`); err != nil {
		return 0, fmt.Errorf("%w: bumping sync version: %v", ErrStoreUnavailable, err)
	}

	var v int64
	if err := tx.QueryRowContext(ctx, `SELECT version FROM sync_version WHERE id = 1`).Scan(&v); err != nil {
		return 0, fmt.Errorf("%w: reading sync version: %v", ErrStoreUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: committing sync version: %v", ErrStoreUnavailable, err)
	}
	return v, nil
}
