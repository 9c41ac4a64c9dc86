// Package database provides SQLite connectivity for the Gray Logic WoT service.
//
// The database holds the adapter's persisted settings (poll interval and
// manually added Thing URLs). Schema changes are plain SQL migrations
// supplied as an fs.FS, normally the embedded files of the migrations
// package:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are additive. Each version has an .up.sql and, optionally, a
// .down.sql file.
package database
