package testfixtures

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/parking-manager/internal/adapter"
	"github.com/example/parking-manager/internal/persistence/sqlite"
	"github.com/example/parking-manager/internal/persistence/sqlite/migration"
)

// SQLiteHarness provides the application ports backed by a temporary, migrated
// SQLite database for integration-style tests.
type SQLiteHarness struct {
	Storage  *sqlite.Storage
	Parking  *adapter.ParkingStore
	Users    *adapter.UserStore
	Sessions *adapter.SessionStore
	Reports  *adapter.ReportStore

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB, now func() time.Time) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "parking.db")
	storage, err := sqlite.Open(
		migration.TempFileTestSQLiteConfig(path),
		sqlite.WithLocation(time.UTC),
		sqlite.WithClock(now),
	)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Storage:  storage,
		Parking:  adapter.NewParkingStore(storage),
		Users:    adapter.NewUserStore(storage, storage),
		Sessions: adapter.NewSessionStore(storage),
		Reports:  adapter.NewReportStore(storage),
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}
