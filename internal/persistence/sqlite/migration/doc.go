// Package migration applies versioned SQL files to a SQLite database.
//
// Migration files follow the naming convention {version}_{description}.sql
// (e.g. "001_initial_schema.sql") and are read from any fs.FS, typically an
// embedded directory shipped with the binary. Applied versions are tracked in
// the schema_migrations table together with the file checksum, so a file that
// changed after being applied is reported instead of silently skipped.
//
// Example usage:
//
//	manager := migration.NewManager(migration.NewFileScanner(files, "migrations"), migration.NewSQLiteExecutor(sqlx.NewDb(db, "sqlite")), logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration
