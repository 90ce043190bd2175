package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

const (
	dirPermissions  = 0750
	filePermissions = 0600

	msPerSecond = 1000

	// connectionTimeout bounds the ping and the integrity check at open.
	connectionTimeout = 30 * time.Second

	connMaxIdleTime = 30 * time.Minute

	// CorruptSuffix is appended to a database file that failed its
	// integrity check.
	CorruptSuffix = ".corrupt"
)

// ErrCorrupt is returned by Open when the integrity check fails. The
// original file has been moved aside to <path>.corrupt.
var ErrCorrupt = errors.New("database: integrity check failed")

// DB wraps a sql.DB connection to the device catalog.
type DB struct {
	*sql.DB
	path string
}

// Config contains database configuration options.
type Config struct {
	// Path is the filesystem path to the SQLite database file.
	// The directory will be created if it doesn't exist.
	// ":memory:" opens a private in-memory database.
	Path string

	// BusyTimeout is the maximum time to wait for a database lock (seconds).
	BusyTimeout int

	// FastWrites disables fsync and keeps the rollback journal in memory.
	// A crash can lose the most recent writes.
	FastWrites bool
}

// Open creates a new database connection with the specified configuration.
//
// It performs the following setup:
//  1. Creates the database directory if it doesn't exist
//  2. Opens the database file (creates if not present)
//  3. Runs PRAGMA integrity_check on an existing file
//  4. Sets file permissions (0600)
//
// A file that fails the integrity check is renamed to Path+CorruptSuffix and
// ErrCorrupt is returned; the caller decides whether that is fatal.
//
// Parameters:
//   - cfg: Database configuration
//
// Returns:
//   - *DB: Connected database wrapper
//   - error: If connection, configuration or integrity check fails
func Open(cfg Config) (*DB, error) {
	inMemory := cfg.Path == ":memory:"
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", connString(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One writer; this also keeps a :memory: database alive on one connection.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	db := &DB{DB: sqlDB, path: cfg.Path}

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil && !isCorrupt(err) {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	if err := db.IntegrityCheck(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // File is moved aside next
		if inMemory {
			return nil, err
		}
		backup := cfg.Path + CorruptSuffix
		if renameErr := os.Rename(cfg.Path, backup); renameErr != nil {
			return nil, fmt.Errorf("%w (backup to %s failed: %v)", err, backup, renameErr)
		}
		return nil, fmt.Errorf("%w: moved to %s", err, backup)
	}

	if !inMemory {
		_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // File may not exist until first write
	}

	return db, nil
}

// connString builds the go-sqlite3 DSN.
// See: https://github.com/mattn/go-sqlite3#connection-string
func connString(cfg Config) string {
	params := []string{
		fmt.Sprintf("_busy_timeout=%d", cfg.BusyTimeout*msPerSecond),
		"_foreign_keys=on",
	}
	if cfg.FastWrites {
		params = append(params, "_synchronous=OFF", "_journal_mode=MEMORY")
	}
	if cfg.Path == ":memory:" {
		return "file::memory:?" + strings.Join(params, "&")
	}
	return "file:" + cfg.Path + "?" + strings.Join(params, "&")
}

// isCorrupt reports whether err is SQLite refusing the file itself.
func isCorrupt(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrNotADB || sqliteErr.Code == sqlite3.ErrCorrupt
	}
	return strings.Contains(err.Error(), "not a database")
}

// IntegrityCheck runs PRAGMA integrity_check and wraps ErrCorrupt when the
// result is anything other than "ok".
func (db *DB) IntegrityCheck(ctx context.Context) error {
	rows, err := db.DB.QueryContext(ctx, "PRAGMA integrity_check")
	if err != nil {
		// "file is not a database" surfaces here rather than at open.
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer rows.Close()

	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if line != "ok" {
			problems = append(problems, line)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrCorrupt, strings.Join(problems, "; "))
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the database file.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck verifies the database is accessible.
func (db *DB) HealthCheck(ctx context.Context) error {
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// BeginTx starts a new transaction with the given options.
//
// Example:
//
//	tx, err := db.BeginTx(ctx, nil)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback() // No-op if committed
//	// ... execute queries on tx ...
//	return tx.Commit()
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := db.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	return tx, nil
}
