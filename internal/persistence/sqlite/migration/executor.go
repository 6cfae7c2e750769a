package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQLiteExecutor applies migrations to a SQLite database and keeps the
// schema_migrations ledger.
type SQLiteExecutor struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewSQLiteExecutor(db *sqlx.DB) *SQLiteExecutor {
	return &SQLiteExecutor{db: db, now: time.Now}
}

func (e *SQLiteExecutor) InitializeVersionTable(ctx context.Context) error {
	const createTableSQL = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL,
			checksum TEXT NOT NULL DEFAULT '',
			execution_time_ms INTEGER NOT NULL DEFAULT 0
		)
	`
	if _, err := e.db.ExecContext(ctx, createTableSQL); err != nil {
		return dbError("", "create schema_migrations table", err)
	}
	return nil
}

// ExecuteMigration runs every statement of a migration and records it in one transaction.
func (e *SQLiteExecutor) ExecuteMigration(ctx context.Context, migration Migration) (elapsed time.Duration, err error) {
	statements := splitStatements(migration.SQL)
	if len(statements) == 0 {
		return 0, fileError(migration.Version, migration.FilePath, "parse SQL",
			fmt.Errorf("%w: no SQL statements found", ErrInvalidMigrationFile))
	}

	started := e.now()
	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, dbError(migration.Version, "begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return 0, dbError(migration.Version, fmt.Sprintf("execute statement %d", i+1), err)
		}
	}

	elapsed = e.now().Sub(started)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES (?, ?, ?, ?)`,
		migration.Version, e.now().UTC().Format(time.RFC3339), migration.Checksum, elapsed.Milliseconds())
	if err != nil {
		return 0, dbError(migration.Version, "record migration", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, dbError(migration.Version, "commit transaction", err)
	}
	return elapsed, nil
}

type appliedRow struct {
	Version     string `db:"version"`
	AppliedAt   string `db:"applied_at"`
	ExecutionMs int64  `db:"execution_time_ms"`
	Checksum    string `db:"checksum"`
}

// GetAppliedVersions returns the recorded migrations in version order.
func (e *SQLiteExecutor) GetAppliedVersions(ctx context.Context) ([]AppliedMigration, error) {
	var rows []appliedRow
	err := e.db.SelectContext(ctx, &rows, `
		SELECT version, applied_at, execution_time_ms, checksum
		FROM schema_migrations
		ORDER BY version ASC
	`)
	if err != nil {
		return nil, dbError("", "get applied versions", err)
	}

	applied := make([]AppliedMigration, 0, len(rows))
	for _, row := range rows {
		at, err := time.Parse(time.RFC3339, row.AppliedAt)
		if err != nil {
			return nil, dbError(row.Version, "parse applied_at", err)
		}
		applied = append(applied, AppliedMigration{
			Version:       row.Version,
			AppliedAt:     at,
			ExecutionTime: time.Duration(row.ExecutionMs) * time.Millisecond,
			Checksum:      row.Checksum,
		})
	}
	return applied, nil
}
