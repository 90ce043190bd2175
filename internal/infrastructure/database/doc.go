// Package database provides SQLite connectivity for the device catalog.
//
// This package manages:
//   - Opening the catalog file with a single writer connection
//   - Integrity checking at open, moving a corrupt file aside
//   - Optional fast writes (synchronous=OFF, in-memory journal)
//   - Forward-only schema migrations loaded from an fs.FS
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path})
//	if errors.Is(err, database.ErrCorrupt) {
//	    // report and stop; the file is now <path>.corrupt
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql and are
// applied in version order, each in its own transaction.
package database
