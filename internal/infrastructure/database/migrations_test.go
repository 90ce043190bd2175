package database

import (
	"context"
	"testing"
	"testing/fstest"
)

func withMigrations(t *testing.T, files fstest.MapFS) {
	t.Helper()
	prevFS, prevDir := MigrationsFS, MigrationsDir
	MigrationsFS, MigrationsDir = files, "."
	t.Cleanup(func() { MigrationsFS, MigrationsDir = prevFS, prevDir })
}

func TestMigrate(t *testing.T) {
	withMigrations(t, fstest.MapFS{
		"20260301_090000_first.up.sql":   {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"20260301_090100_second.up.sql":  {Data: []byte("CREATE TABLE b (id INTEGER); INSERT INTO b VALUES (7);")},
		"20260301_090000_first.down.sql": {Data: []byte("DROP TABLE a;")},
		"README.md":                      {Data: []byte("ignored")},
	})

	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	// Second run is a no-op.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() second run error = %v", err)
	}

	applied, err := db.AppliedMigrations(ctx)
	if err != nil {
		t.Fatalf("AppliedMigrations() error = %v", err)
	}
	if len(applied) != 2 {
		t.Fatalf("applied = %d, want 2", len(applied))
	}
	if applied[0].Version != "20260301_090000" || applied[1].Version != "20260301_090100" {
		t.Errorf("applied versions = %s, %s", applied[0].Version, applied[1].Version)
	}

	var v int
	if err := db.QueryRowContext(ctx, "SELECT id FROM b").Scan(&v); err != nil {
		t.Fatalf("select: %v", err)
	}
	if v != 7 {
		t.Errorf("b.id = %d, want 7", v)
	}
}

func TestMigrate_FailureRollsBack(t *testing.T) {
	withMigrations(t, fstest.MapFS{
		"20260301_090000_ok.up.sql":  {Data: []byte("CREATE TABLE ok (id INTEGER);")},
		"20260301_090100_bad.up.sql": {Data: []byte("CREATE TABLE broken (id INTEGER); NOT SQL AT ALL;")},
	})

	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err == nil {
		t.Fatal("Migrate() error = nil, want failure")
	}

	applied, err := db.AppliedMigrations(ctx)
	if err != nil {
		t.Fatalf("AppliedMigrations() error = %v", err)
	}
	if len(applied) != 1 {
		t.Errorf("applied = %d, want 1", len(applied))
	}
}

func TestMigrate_NoFS(t *testing.T) {
	prev := MigrationsFS
	MigrationsFS = nil
	t.Cleanup(func() { MigrationsFS = prev })

	db := openTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Errorf("Migrate() with no FS error = %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantOK      bool
	}{
		{"20260301_090000_devices.up.sql", "20260301_090000", "devices", true},
		{"20260301_090000_sync_version.up.sql", "20260301_090000", "sync_version", true},
		{"20260301_090000.up.sql", "20260301_090000", "20260301_090000", true},
		{"20260301_090000_devices.down.sql", "", "", false},
		{"20260301.up.sql", "", "", false},
		{"notes.txt", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK || version != tt.wantVersion || name != tt.wantName {
				t.Errorf("parseMigrationFilename(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.filename, version, name, ok, tt.wantVersion, tt.wantName, tt.wantOK)
			}
		})
	}
}
