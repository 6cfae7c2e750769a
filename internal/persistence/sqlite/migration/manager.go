package migration

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
)

// Manager orchestrates the migration process.
type Manager struct {
	scanner  FileScanner
	executor Executor
	logger   *slog.Logger
}

// NewManager creates a migration manager. A nil logger falls back to slog.Default.
func NewManager(scanner FileScanner, executor Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{scanner: scanner, executor: executor, logger: logger.With("component", "migration")}
}

// RunMigrations executes all pending migrations in sequential order
func (m *Manager) RunMigrations(ctx context.Context) error {
	status, err := m.Status(ctx)
	if err != nil {
		return err
	}

	if len(status.PendingMigrations) == 0 {
		m.logger.InfoContext(ctx, "schema up to date", "version", status.CurrentVersion)
		return nil
	}

	m.logger.InfoContext(ctx, "applying migrations",
		"current_version", status.CurrentVersion,
		"pending", len(status.PendingMigrations),
	)

	for i, migration := range status.PendingMigrations {
		elapsed, err := m.executor.ExecuteMigration(ctx, migration)
		if err != nil {
			m.logger.ErrorContext(ctx, "migration failed",
				"version", migration.Version,
				"file", migration.FilePath,
				"error", err,
			)
			return fileError(migration.Version, migration.FilePath, "execute migration",
				fmt.Errorf("%w: %w", ErrMigrationFailed, err))
		}

		m.logger.InfoContext(ctx, "migration applied",
			"version", migration.Version,
			"description", migration.Description,
			"position", i+1,
			"of", len(status.PendingMigrations),
			"duration", elapsed,
		)
	}

	return nil
}

// Status reports applied and pending migrations after validating the sequence.
func (m *Manager) Status(ctx context.Context) (*MigrationStatus, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize version table: %w", err)
	}

	available, err := m.scanner.ScanMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations: %w", err)
	}

	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied versions: %w", err)
	}

	if err := validateSequence(available, applied); err != nil {
		return nil, err
	}

	appliedByVersion := make(map[int]AppliedMigration, len(applied))
	status := &MigrationStatus{AppliedMigrations: applied}
	current := -1
	for _, item := range applied {
		number, _ := strconv.Atoi(item.Version)
		appliedByVersion[number] = item
		if number > current {
			current = number
			status.CurrentVersion = item.Version
		}
	}

	for _, migration := range available {
		number, _ := strconv.Atoi(migration.Version)
		if _, ok := appliedByVersion[number]; !ok {
			status.PendingMigrations = append(status.PendingMigrations, migration)
		}
	}

	return status, nil
}

// validateSequence rejects gaps, applied versions without a file, and edited files.
func validateSequence(available []Migration, applied []AppliedMigration) error {
	files := make(map[int]Migration, len(available))
	for i, migration := range available {
		number, err := strconv.Atoi(migration.Version)
		if err != nil {
			return fileError(migration.Version, migration.FilePath, "validate sequence", ErrInvalidMigrationFile)
		}
		if i > 0 {
			previous, _ := strconv.Atoi(available[i-1].Version)
			if number != previous+1 {
				return fmt.Errorf("%w: missing migration version %03d in sequence", ErrVersionConflict, previous+1)
			}
		}
		files[number] = migration
	}

	for _, item := range applied {
		number, err := strconv.Atoi(item.Version)
		if err != nil {
			return fmt.Errorf("%w: applied version %q is not numeric", ErrVersionConflict, item.Version)
		}
		file, ok := files[number]
		if !ok {
			return fmt.Errorf("%w: applied migration %s not found in available migrations", ErrVersionConflict, item.Version)
		}
		if item.Checksum != "" && item.Checksum != file.Checksum {
			return fileError(item.Version, file.FilePath, "verify checksum", ErrChecksumMismatch)
		}
	}

	return nil
}
