package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/example/parking-manager/internal/persistence"
	"github.com/example/parking-manager/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const driverName = "sqlite"

func init() {
	sqlx.BindDriver(driverName, sqlx.QUESTION)
}

var (
	_ persistence.UserRepository    = (*Storage)(nil)
	_ persistence.ProfileRepository = (*Storage)(nil)
	_ persistence.SessionRepository = (*Storage)(nil)
	_ persistence.ParkingStore      = (*Storage)(nil)
	_ persistence.ReportRepository  = (*Storage)(nil)
)

// Storage implements every persistence repository on top of one SQLite database.
type Storage struct {
	db     *sqlx.DB
	loc    *time.Location
	retry  RetryPolicy
	logger *slog.Logger
	now    func() time.Time
}

// Option customises a Storage.
type Option func(*Storage)

// WithLocation sets the zone used for timestamps stored without an offset.
func WithLocation(loc *time.Location) Option {
	return func(s *Storage) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger sets the logger used for migrations and retries.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Storage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the time source used for bookkeeping timestamps the caller does not supply.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRetryPolicy overrides how busy transactions are retried.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(s *Storage) {
		s.retry = policy
	}
}

// Open connects to the database described by cfg. Call Migrate before use.
func Open(cfg migration.SQLiteConfig, opts ...Option) (*Storage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SQLite configuration: %w", err)
	}
	if err := cfg.EnsureDirectory(); err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driverName, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	s := &Storage{
		db:     db,
		loc:    time.Local,
		retry:  DefaultRetryPolicy(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping tests the database connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := migration.NewManager(
		migration.NewFileScanner(migrationFiles, "migrations"),
		migration.NewSQLiteExecutor(s.db),
		s.logger,
	)
	return manager.RunMigrations(ctx)
}

// MigrationStatus reports applied and pending embedded migrations.
func (s *Storage) MigrationStatus(ctx context.Context) (*migration.MigrationStatus, error) {
	manager := migration.NewManager(
		migration.NewFileScanner(migrationFiles, "migrations"),
		migration.NewSQLiteExecutor(s.db),
		s.logger,
	)
	return manager.Status(ctx)
}
