package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/parking-manager/internal/adapter"
	"github.com/example/parking-manager/internal/application"
	"github.com/example/parking-manager/internal/config"
	"github.com/example/parking-manager/internal/logging"
	"github.com/example/parking-manager/internal/persistence/sqlite"
	"github.com/example/parking-manager/internal/persistence/sqlite/migration"
)

// app holds what every subcommand needs: configuration, a logger and the open database.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	storage *sqlite.Storage
	now     func() time.Time
}

// loadApp reads the configuration, applies command line overrides and opens the database.
// The caller must Close the returned app.
func loadApp(ctx context.Context, out io.Writer, dbPath string, migrate bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if dbPath != "" {
		cfg.SQLitePath = dbPath
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, out)
	if cfg.EnvFileMissing {
		logger.DebugContext(ctx, "no .env file found, using process environment")
	}

	storage, err := sqlite.Open(
		migration.DefaultSQLiteConfig(cfg.SQLitePath),
		sqlite.WithLocation(cfg.Location),
		sqlite.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	if migrate {
		if err := storage.Migrate(ctx); err != nil {
			_ = storage.Close()
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	return &app{cfg: cfg, logger: logger, storage: storage, now: time.Now}, nil
}

func (a *app) Close() {
	if err := a.storage.Close(); err != nil {
		a.logger.Error("failed to close storage", "error", err)
	}
}

type services struct {
	lots         *application.LotService
	reservations *application.ReservationService
	accounts     *application.AccountService
	auth         *application.AuthService
	reports      *application.ReportService
	vehicles     *application.VehicleService
}

// newServices wires the application services onto the SQLite storage. publisher may be nil.
func (a *app) newServices(publisher application.AvailabilityPublisher) services {
	parking := adapter.NewParkingStore(a.storage)
	users := adapter.NewUserStore(a.storage, a.storage)
	sessions := adapter.NewSessionStore(a.storage)
	reports := adapter.NewReportStore(a.storage)

	return services{
		lots: application.NewLotServiceWithLogger(parking, publisher, a.now, a.logger),
		reservations: application.NewReservationServiceWithLogger(parking, publisher, uuid.NewString, a.now, application.ReservationConfig{
			Location: a.cfg.Location,
			QuoteTTL: a.cfg.QuoteTTL,
		}, a.logger),
		accounts: application.NewAccountServiceWithLogger(users, users, sessions, a.now, application.AccountConfig{
			DeletionGrace: a.cfg.DeletionGrace,
			HashPassword:  application.NewArgon2idHasher(application.DefaultArgon2idParams),
		}, a.logger),
		auth:     application.NewAuthServiceWithLogger(users, sessions, application.VerifyPassword, uuid.NewString, a.now, a.cfg.SessionTTL, a.logger),
		reports:  application.NewReportService(reports, a.logger),
		vehicles: application.NewVehicleService(parking, a.now, a.logger),
	}
}
