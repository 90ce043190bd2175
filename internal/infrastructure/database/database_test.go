package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestOpen(t *testing.T) {
	t.Run("creates database file and directory", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "subdir", "blue_hydra.db")

		db, err := Open(Config{Path: dbPath, BusyTimeout: 5})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if _, err := db.ExecContext(context.Background(), "CREATE TABLE t (id INTEGER)"); err != nil {
			t.Fatalf("ExecContext() error = %v", err)
		}
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != dbPath {
			t.Errorf("Path() = %v, want %v", db.Path(), dbPath)
		}
	})

	t.Run("fast writes", func(t *testing.T) {
		db, err := Open(Config{Path: filepath.Join(t.TempDir(), "fast.db"), FastWrites: true})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		var sync int
		if err := db.QueryRowContext(context.Background(), "PRAGMA synchronous").Scan(&sync); err != nil {
			t.Fatalf("PRAGMA synchronous error = %v", err)
		}
		if sync != 0 {
			t.Errorf("synchronous = %d, want 0 (OFF)", sync)
		}
	})

	t.Run("in memory", func(t *testing.T) {
		db := openTestDB(t)
		if err := db.HealthCheck(context.Background()); err != nil {
			t.Errorf("HealthCheck() error = %v", err)
		}
	})
}

func TestOpen_CorruptFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "blue_hydra.db")
	garbage := []byte(strings.Repeat("this is not an sqlite database file ", 64))
	if err := os.WriteFile(dbPath, garbage, 0600); err != nil {
		t.Fatalf("writing garbage file: %v", err)
	}

	_, err := Open(Config{Path: dbPath, BusyTimeout: 1})
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("Open() error = %v, want ErrCorrupt", err)
	}

	if _, err := os.Stat(dbPath + CorruptSuffix); err != nil {
		t.Errorf("corrupt backup missing: %v", err)
	}
	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Errorf("original file still present, stat error = %v", err)
	}
}

func TestBeginTx(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "CREATE TABLE t (id INTEGER)"); err != nil {
		t.Fatalf("create table: %v", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO t (id) VALUES (1)"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM t").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("rows after rollback = %d, want 0", n)
	}
}

func TestClose_Twice(t *testing.T) {
	db, err := Open(Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := db.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() after Close() = nil, want error")
	}
}

// openTestDB opens an in-memory database closed at test end.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{Path: ":memory:", BusyTimeout: 1})
	if err != nil {
		t.Fatalf("Open(:memory:) error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	return db
}
