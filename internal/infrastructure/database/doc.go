// Package database provides the SQLite connection that stores firing
// history.
//
// The database runs in WAL mode with a busy timeout and a single
// connection; the scheduler is the only writer. The file is created with
// 0600 permissions.
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
// Migrations are additive: every .up.sql has a matching .down.sql and new
// columns are nullable or carry a default.
package database
