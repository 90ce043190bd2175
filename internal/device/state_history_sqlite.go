package device

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// SQLiteStatusHistoryRepository implements StatusHistoryRepository using
// the status_history table.
type SQLiteStatusHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteStatusHistoryRepository creates a new SQLite status history repository.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *SQLiteStatusHistoryRepository: Repository instance ready for use
func NewSQLiteStatusHistoryRepository(db *sql.DB) *SQLiteStatusHistoryRepository {
	return &SQLiteStatusHistoryRepository{db: db}
}

// RecordTransition inserts a status history row.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - t: Transition produced by a sweep
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteStatusHistoryRepository) RecordTransition(ctx context.Context, t Transition) error {
	if t.Address == "" {
		return fmt.Errorf("address is required")
	}
	if !t.From.Valid() || !t.To.Valid() {
		return fmt.Errorf("%w: %q -> %q", ErrInvalidStatus, t.From, t.To)
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO status_history (address, from_status, to_status, created_at) VALUES (?, ?, ?, ?)",
		t.Address,
		string(t.From),
		string(t.To),
		formatTime(t.At),
	)
	if err != nil {
		return fmt.Errorf("inserting status history: %w", err)
	}
	return nil
}

// GetHistory returns recent transitions for a device, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - address: Canonical device address
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []StatusHistoryEntry: Entries ordered by created_at DESC
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteStatusHistoryRepository) GetHistory(ctx context.Context, address string, limit int) ([]StatusHistoryEntry, error) {
	if address == "" {
		return nil, fmt.Errorf("address is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, address, from_status, to_status, created_at
		 FROM status_history
		 WHERE address = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		address,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying status history: %w", err)
	}
	defer rows.Close()

	entries := make([]StatusHistoryEntry, 0, limit)
	for rows.Next() {
		var entry StatusHistoryEntry
		var from, to, createdAt string

		if err := rows.Scan(&entry.ID, &entry.Address, &from, &to, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning status history: %w", err)
		}
		entry.From = Status(from)
		entry.To = Status(to)

		ts, err := parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		entry.CreatedAt = ts

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating status history: %w", err)
	}

	return entries, nil
}

// PruneHistory deletes transitions older than the given duration.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - olderThan: Duration to retain (entries older than now-olderThan are deleted)
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteStatusHistoryRepository) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := formatTime(time.Now().Add(-olderThan))
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM status_history WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting status history: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}
