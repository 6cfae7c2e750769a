package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/parking-manager/internal/persistence"
)

// RetryPolicy bounds how often a transaction is re-run after SQLITE_BUSY.
type RetryPolicy struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
	Factor   float64
}

// DefaultRetryPolicy suits a single process sharing the file with the sweeper.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Initial: 50 * time.Millisecond, Max: time.Second, Factor: 2}
}

func (p RetryPolicy) next(delay time.Duration) time.Duration {
	delay = time.Duration(float64(delay) * p.Factor)
	return min(delay, p.Max)
}

// inTx runs fn in a transaction. A busy database rolls the attempt back and
// the whole unit is re-run with backoff; every other error is returned as is.
func (s *Storage) inTx(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	delay := s.retry.Initial
	var err error
	for attempt := 0; ; attempt++ {
		if err = s.runTx(ctx, fn); err == nil || !errors.Is(err, persistence.ErrBusy) {
			return err
		}
		if attempt >= s.retry.Attempts {
			return fmt.Errorf("%s: gave up after %d retries: %w", op, s.retry.Attempts, err)
		}
		s.logger.WarnContext(ctx, "database busy, retrying", "operation", op, "attempt", attempt+1, "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = s.retry.next(delay)
	}
}

func (s *Storage) runTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return mapError(fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// mapError translates driver errors into persistence errors. Unknown errors pass through.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return uniqueViolation(msg)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrForeignKeyViolation, err)
	case strings.Contains(msg, "CHECK constraint failed"), strings.Contains(msg, "NOT NULL constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "SQLITE_BUSY"), strings.Contains(msg, "database table is locked"):
		return fmt.Errorf("%w: %v", persistence.ErrBusy, err)
	}
	return err
}

// uniqueViolation extracts "table.column" from a message such as
// "constraint failed: UNIQUE constraint failed: users.email (2067)".
func uniqueViolation(msg string) error {
	_, rest, _ := strings.Cut(msg, "UNIQUE constraint failed: ")
	if i := strings.IndexAny(rest, " ,("); i >= 0 {
		rest = rest[:i]
	}
	table, column, _ := strings.Cut(rest, ".")
	return &persistence.DuplicateError{Table: table, Column: column}
}
