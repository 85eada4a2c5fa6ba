// Package database provides the SQLite connection used to persist the
// known-monitor name table between runs.
//
// This package manages:
//   - Connection setup with WAL mode and a busy timeout
//   - Schema migrations read from any fs.FS (normally the embedded
//     migrations package)
//   - Transaction helpers
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql.
package database
