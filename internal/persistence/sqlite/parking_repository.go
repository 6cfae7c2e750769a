package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/parking-manager/internal/persistence"
)

const lotColumns = `id, name, prime_location_name, address, pin_code, city, state, district, floor_level,
	price_per_hour_cents, maximum_number_of_spots, revenue_cents, is_active, open_time, close_time, created_at, updated_at`

const spotColumns = `id, lot_id, spot_number, status, is_covered, revenue_cents, created_at, updated_at`

const vehicleColumns = `vehicle_number, user_id, brand, model, color, fuel_type, created_at`

const reservationColumns = `id, spot_id, user_id, vehicle_number, parking_at, leaving_at, cost_per_hour_cents, status, created_at, updated_at`

type lotRow struct {
	ID                   int64          `db:"id"`
	Name                 string         `db:"name"`
	PrimeLocationName    string         `db:"prime_location_name"`
	Address              string         `db:"address"`
	PinCode              string         `db:"pin_code"`
	City                 string         `db:"city"`
	State                string         `db:"state"`
	District             string         `db:"district"`
	FloorLevel           int            `db:"floor_level"`
	PricePerHourCents    int64          `db:"price_per_hour_cents"`
	MaximumNumberOfSpots int            `db:"maximum_number_of_spots"`
	RevenueCents         int64          `db:"revenue_cents"`
	IsActive             bool           `db:"is_active"`
	OpenTime             sql.NullString `db:"open_time"`
	CloseTime            sql.NullString `db:"close_time"`
	CreatedAt            string         `db:"created_at"`
	UpdatedAt            string         `db:"updated_at"`
}

type spotRow struct {
	ID           int64  `db:"id"`
	LotID        int64  `db:"lot_id"`
	SpotNumber   string `db:"spot_number"`
	Status       string `db:"status"`
	IsCovered    bool   `db:"is_covered"`
	RevenueCents int64  `db:"revenue_cents"`
	CreatedAt    string `db:"created_at"`
	UpdatedAt    string `db:"updated_at"`
}

type reservationRow struct {
	ID               int64          `db:"id"`
	SpotID           sql.NullInt64  `db:"spot_id"`
	UserID           string         `db:"user_id"`
	VehicleNumber    string         `db:"vehicle_number"`
	ParkingAt        string         `db:"parking_at"`
	LeavingAt        sql.NullString `db:"leaving_at"`
	CostPerHourCents int64          `db:"cost_per_hour_cents"`
	Status           string         `db:"status"`
	CreatedAt        string         `db:"created_at"`
	UpdatedAt        string         `db:"updated_at"`
}

type vehicleRow struct {
	VehicleNumber string `db:"vehicle_number"`
	UserID        string `db:"user_id"`
	Brand         string `db:"brand"`
	Model         string `db:"model"`
	Color         string `db:"color"`
	FuelType      string `db:"fuel_type"`
	CreatedAt     string `db:"created_at"`
}

func (s *Storage) lotFromRow(row lotRow) (persistence.ParkingLot, error) {
	lot := persistence.ParkingLot{
		ID:                   row.ID,
		Name:                 row.Name,
		PrimeLocationName:    row.PrimeLocationName,
		Address:              row.Address,
		PinCode:              row.PinCode,
		City:                 row.City,
		State:                row.State,
		District:             row.District,
		FloorLevel:           row.FloorLevel,
		PricePerHourCents:    row.PricePerHourCents,
		MaximumNumberOfSpots: row.MaximumNumberOfSpots,
		RevenueCents:         row.RevenueCents,
		IsActive:             row.IsActive,
		OpenTime:             stringPtr(row.OpenTime),
		CloseTime:            stringPtr(row.CloseTime),
	}
	var err error
	if lot.CreatedAt, err = s.parseTimestamp(row.CreatedAt); err != nil {
		return persistence.ParkingLot{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if lot.UpdatedAt, err = s.parseTimestamp(row.UpdatedAt); err != nil {
		return persistence.ParkingLot{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return lot, nil
}

func (s *Storage) spotFromRow(row spotRow) (persistence.ParkingSpot, error) {
	spot := persistence.ParkingSpot{
		ID:           row.ID,
		LotID:        row.LotID,
		SpotNumber:   row.SpotNumber,
		Status:       row.Status,
		IsCovered:    row.IsCovered,
		RevenueCents: row.RevenueCents,
	}
	var err error
	if spot.CreatedAt, err = s.parseTimestamp(row.CreatedAt); err != nil {
		return persistence.ParkingSpot{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if spot.UpdatedAt, err = s.parseTimestamp(row.UpdatedAt); err != nil {
		return persistence.ParkingSpot{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return spot, nil
}

func (s *Storage) reservationFromRow(row reservationRow) (persistence.Reservation, error) {
	reservation := persistence.Reservation{
		ID:               row.ID,
		SpotID:           int64Ptr(row.SpotID),
		UserID:           row.UserID,
		VehicleNumber:    row.VehicleNumber,
		CostPerHourCents: row.CostPerHourCents,
		Status:           row.Status,
	}
	var err error
	if reservation.ParkingAt, err = s.parseTimestamp(row.ParkingAt); err != nil {
		return persistence.Reservation{}, fmt.Errorf("failed to parse parking_at: %w", err)
	}
	if reservation.LeavingAt, err = s.parseNullableTimestamp(row.LeavingAt); err != nil {
		return persistence.Reservation{}, fmt.Errorf("failed to parse leaving_at: %w", err)
	}
	if reservation.CreatedAt, err = s.parseTimestamp(row.CreatedAt); err != nil {
		return persistence.Reservation{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if reservation.UpdatedAt, err = s.parseTimestamp(row.UpdatedAt); err != nil {
		return persistence.Reservation{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return reservation, nil
}

func (s *Storage) vehicleFromRow(row vehicleRow) (persistence.Vehicle, error) {
	created, err := s.parseTimestamp(row.CreatedAt)
	if err != nil {
		return persistence.Vehicle{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return persistence.Vehicle{
		VehicleNumber: row.VehicleNumber,
		UserID:        row.UserID,
		Brand:         row.Brand,
		Model:         row.Model,
		Color:         row.Color,
		FuelType:      row.FuelType,
		CreatedAt:     created,
	}, nil
}

func (s *Storage) lotsFromRows(rows []lotRow) ([]persistence.ParkingLot, error) {
	lots := make([]persistence.ParkingLot, 0, len(rows))
	for _, row := range rows {
		lot, err := s.lotFromRow(row)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, nil
}

// --- shared queries, usable with *sqlx.DB or *sqlx.Tx ---

func (s *Storage) getLot(ctx context.Context, q sqlx.QueryerContext, id int64) (persistence.ParkingLot, error) {
	var row lotRow
	if err := sqlx.GetContext(ctx, q, &row, `SELECT `+lotColumns+` FROM parking_lots WHERE id = ?`, id); err != nil {
		return persistence.ParkingLot{}, mapError(err)
	}
	return s.lotFromRow(row)
}

func (s *Storage) getSpot(ctx context.Context, q sqlx.QueryerContext, id int64) (persistence.ParkingSpot, error) {
	var row spotRow
	if err := sqlx.GetContext(ctx, q, &row, `SELECT `+spotColumns+` FROM parking_spots WHERE id = ?`, id); err != nil {
		return persistence.ParkingSpot{}, mapError(err)
	}
	return s.spotFromRow(row)
}

func (s *Storage) getReservation(ctx context.Context, q sqlx.QueryerContext, id int64) (persistence.Reservation, error) {
	var row reservationRow
	if err := sqlx.GetContext(ctx, q, &row, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id); err != nil {
		return persistence.Reservation{}, mapError(err)
	}
	return s.reservationFromRow(row)
}

func (s *Storage) getVehicle(ctx context.Context, q sqlx.QueryerContext, number string) (persistence.Vehicle, error) {
	var row vehicleRow
	if err := sqlx.GetContext(ctx, q, &row, `SELECT `+vehicleColumns+` FROM vehicles WHERE vehicle_number = ?`, number); err != nil {
		return persistence.Vehicle{}, mapError(err)
	}
	return s.vehicleFromRow(row)
}

func (s *Storage) countOccupiedSpots(ctx context.Context, q sqlx.QueryerContext, lotID int64) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, q, &count, `SELECT COUNT(*) FROM parking_spots WHERE lot_id = ? AND status = ?`, lotID, persistence.SpotOccupied)
	if err != nil {
		return 0, mapError(err)
	}
	return count, nil
}

// --- ParkingReader ---

// GetLot retrieves a lot by ID.
func (s *Storage) GetLot(ctx context.Context, id int64) (persistence.ParkingLot, error) {
	return s.getLot(ctx, s.db, id)
}

// ListLots returns every lot ordered by ID.
func (s *Storage) ListLots(ctx context.Context) ([]persistence.ParkingLot, error) {
	var rows []lotRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+lotColumns+` FROM parking_lots ORDER BY id ASC`); err != nil {
		return nil, mapError(err)
	}
	return s.lotsFromRows(rows)
}

// ListSpots returns the spots of a lot ordered by ID. Unknown lots yield ErrNotFound.
func (s *Storage) ListSpots(ctx context.Context, lotID int64) ([]persistence.ParkingSpot, error) {
	if _, err := s.getLot(ctx, s.db, lotID); err != nil {
		return nil, err
	}
	var rows []spotRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+spotColumns+` FROM parking_spots WHERE lot_id = ? ORDER BY id ASC`, lotID); err != nil {
		return nil, mapError(err)
	}
	spots := make([]persistence.ParkingSpot, 0, len(rows))
	for _, row := range rows {
		spot, err := s.spotFromRow(row)
		if err != nil {
			return nil, err
		}
		spots = append(spots, spot)
	}
	return spots, nil
}

// GetSpot retrieves a spot by ID.
func (s *Storage) GetSpot(ctx context.Context, id int64) (persistence.ParkingSpot, error) {
	return s.getSpot(ctx, s.db, id)
}

// GetReservation retrieves a reservation by ID.
func (s *Storage) GetReservation(ctx context.Context, id int64) (persistence.Reservation, error) {
	return s.getReservation(ctx, s.db, id)
}

// GetVehicle retrieves a vehicle by its registration number.
func (s *Storage) GetVehicle(ctx context.Context, number string) (persistence.Vehicle, error) {
	return s.getVehicle(ctx, s.db, number)
}

// LotAvailability counts a lot's spots by status.
func (s *Storage) LotAvailability(ctx context.Context, lotID int64) (persistence.LotAvailability, error) {
	var availability persistence.LotAvailability
	err := s.db.GetContext(ctx, &availability, `
		SELECT l.id AS lotid,
		       l.maximum_number_of_spots AS capacity,
		       COALESCE(SUM(CASE WHEN s.status = ? THEN 1 ELSE 0 END), 0) AS occupied,
		       COALESCE(SUM(CASE WHEN s.status = ? THEN 1 ELSE 0 END), 0) AS available
		FROM parking_lots l
		LEFT JOIN parking_spots s ON s.lot_id = l.id
		WHERE l.id = ?
		GROUP BY l.id
	`, persistence.SpotOccupied, persistence.SpotAvailable, lotID)
	if err != nil {
		return persistence.LotAvailability{}, mapError(err)
	}
	return availability, nil
}

// WithinTx runs fn in one transaction, retrying the whole unit when the database is busy.
func (s *Storage) WithinTx(ctx context.Context, fn func(tx persistence.ParkingTx) error) error {
	return s.inTx(ctx, "parking", func(tx *sqlx.Tx) error {
		return fn(&parkingTx{storage: s, tx: tx})
	})
}

// parkingTx implements persistence.ParkingTx on an open transaction.
type parkingTx struct {
	storage *Storage
	tx      *sqlx.Tx
}

func (t *parkingTx) mapError(err error) error {
	return mapError(err)
}

func (t *parkingTx) CreateLot(ctx context.Context, lot persistence.ParkingLot) (int64, error) {
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO parking_lots (name, prime_location_name, address, pin_code, city, state, district, floor_level,
			price_per_hour_cents, maximum_number_of_spots, revenue_cents, is_active, open_time, close_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		lot.Name, lot.PrimeLocationName, lot.Address, lot.PinCode, lot.City, lot.State, lot.District, lot.FloorLevel,
		lot.PricePerHourCents, lot.MaximumNumberOfSpots, lot.RevenueCents, lot.IsActive,
		nullableString(lot.OpenTime), nullableString(lot.CloseTime),
		formatTimestamp(lot.CreatedAt), formatTimestamp(lot.UpdatedAt),
	)
	if err != nil {
		return 0, t.mapError(err)
	}
	return result.LastInsertId()
}

func (t *parkingTx) GetLot(ctx context.Context, id int64) (persistence.ParkingLot, error) {
	return t.storage.getLot(ctx, t.tx, id)
}

// UpdateLot persists price, operating hours and the active flag. Other
// columns are deliberately left out of the statement.
func (t *parkingTx) UpdateLot(ctx context.Context, lot persistence.ParkingLot) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE parking_lots
		SET price_per_hour_cents = ?, open_time = ?, close_time = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`, lot.PricePerHourCents, nullableString(lot.OpenTime), nullableString(lot.CloseTime), lot.IsActive,
		formatTimestamp(lot.UpdatedAt), lot.ID)
	if err != nil {
		return t.mapError(err)
	}
	return requireAffected(result)
}

// DeleteLot removes a lot and its spots; reservations keep their history with a NULL spot.
func (t *parkingTx) DeleteLot(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, `
		UPDATE reservations SET spot_id = NULL WHERE spot_id IN (SELECT id FROM parking_spots WHERE lot_id = ?)
	`, id); err != nil {
		return t.mapError(err)
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM parking_spots WHERE lot_id = ?`, id); err != nil {
		return t.mapError(err)
	}
	result, err := t.tx.ExecContext(ctx, `DELETE FROM parking_lots WHERE id = ?`, id)
	if err != nil {
		return t.mapError(err)
	}
	return requireAffected(result)
}

func (t *parkingTx) AdjustLotCapacity(ctx context.Context, lotID int64, delta int, at time.Time) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE parking_lots SET maximum_number_of_spots = maximum_number_of_spots + ?, updated_at = ? WHERE id = ?
	`, delta, formatTimestamp(at), lotID)
	if err != nil {
		return t.mapError(err)
	}
	return requireAffected(result)
}

func (t *parkingTx) AddLotRevenue(ctx context.Context, lotID int64, cents int64, at time.Time) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE parking_lots SET revenue_cents = revenue_cents + ?, updated_at = ? WHERE id = ?
	`, cents, formatTimestamp(at), lotID)
	if err != nil {
		return t.mapError(err)
	}
	return requireAffected(result)
}

func (t *parkingTx) CountOccupiedSpots(ctx context.Context, lotID int64) (int, error) {
	return t.storage.countOccupiedSpots(ctx, t.tx, lotID)
}

func (t *parkingTx) CreateSpot(ctx context.Context, spot persistence.ParkingSpot) (int64, error) {
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO parking_spots (lot_id, spot_number, status, is_covered, revenue_cents, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, spot.LotID, spot.SpotNumber, spot.Status, spot.IsCovered, spot.RevenueCents,
		formatTimestamp(spot.CreatedAt), formatTimestamp(spot.UpdatedAt))
	if err != nil {
		return 0, t.mapError(err)
	}
	return result.LastInsertId()
}

func (t *parkingTx) GetSpot(ctx context.Context, id int64) (persistence.ParkingSpot, error) {
	return t.storage.getSpot(ctx, t.tx, id)
}

// UpdateSpot persists the spot number and covered flag. Status and revenue
// only change through ClaimSpot and ReleaseSpot.
func (t *parkingTx) UpdateSpot(ctx context.Context, spot persistence.ParkingSpot) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE parking_spots SET spot_number = ?, is_covered = ?, updated_at = ? WHERE id = ?
	`, spot.SpotNumber, spot.IsCovered, formatTimestamp(spot.UpdatedAt), spot.ID)
	if err != nil {
		return t.mapError(err)
	}
	return requireAffected(result)
}

func (t *parkingTx) DeleteSpot(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, `UPDATE reservations SET spot_id = NULL WHERE spot_id = ?`, id); err != nil {
		return t.mapError(err)
	}
	result, err := t.tx.ExecContext(ctx, `DELETE FROM parking_spots WHERE id = ?`, id)
	if err != nil {
		return t.mapError(err)
	}
	return requireAffected(result)
}

// FindAvailableSpot returns the lowest-numbered AVAILABLE spot of a lot that
// is not in exclude, or ErrNotFound.
func (t *parkingTx) FindAvailableSpot(ctx context.Context, lotID int64, exclude []int64) (persistence.ParkingSpot, error) {
	query := `SELECT ` + spotColumns + ` FROM parking_spots WHERE lot_id = ? AND status = ?`
	args := []any{lotID, persistence.SpotAvailable}
	if len(exclude) > 0 {
		var err error
		query, args, err = sqlx.In(query+` AND id NOT IN (?)`, lotID, persistence.SpotAvailable, exclude)
		if err != nil {
			return persistence.ParkingSpot{}, err
		}
	}
	query += ` ORDER BY id ASC LIMIT 1`

	var row spotRow
	if err := t.tx.GetContext(ctx, &row, t.tx.Rebind(query), args...); err != nil {
		return persistence.ParkingSpot{}, t.mapError(err)
	}
	return t.storage.spotFromRow(row)
}

// ClaimSpot flips a spot from AVAILABLE to OCCUPIED. It reports false when the
// spot was no longer available.
func (t *parkingTx) ClaimSpot(ctx context.Context, spotID int64, at time.Time) (bool, error) {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE parking_spots SET status = ?, is_covered = 1, updated_at = ?
		WHERE id = ? AND status = ?
	`, persistence.SpotOccupied, formatTimestamp(at), spotID, persistence.SpotAvailable)
	if err != nil {
		return false, t.mapError(err)
	}
	return changed(result)
}

// ReleaseSpot flips an OCCUPIED spot back to AVAILABLE and books its revenue.
func (t *parkingTx) ReleaseSpot(ctx context.Context, spotID int64, revenueCents int64, at time.Time) (bool, error) {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE parking_spots SET status = ?, is_covered = 0, revenue_cents = revenue_cents + ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, persistence.SpotAvailable, revenueCents, formatTimestamp(at), spotID, persistence.SpotOccupied)
	if err != nil {
		return false, t.mapError(err)
	}
	return changed(result)
}

func (t *parkingTx) GetUser(ctx context.Context, id string) (persistence.User, error) {
	return t.storage.getUser(ctx, t.tx, id)
}

func (t *parkingTx) GetVehicle(ctx context.Context, number string) (persistence.Vehicle, error) {
	return t.storage.getVehicle(ctx, t.tx, number)
}

func (t *parkingTx) CreateVehicle(ctx context.Context, vehicle persistence.Vehicle) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO vehicles (vehicle_number, user_id, brand, model, color, fuel_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, vehicle.VehicleNumber, vehicle.UserID, vehicle.Brand, vehicle.Model, vehicle.Color, vehicle.FuelType,
		formatTimestamp(vehicle.CreatedAt))
	return t.mapError(err)
}

func (t *parkingTx) UpdateVehicle(ctx context.Context, vehicle persistence.Vehicle) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE vehicles SET user_id = ?, brand = ?, model = ?, color = ?, fuel_type = ? WHERE vehicle_number = ?
	`, vehicle.UserID, vehicle.Brand, vehicle.Model, vehicle.Color, vehicle.FuelType, vehicle.VehicleNumber)
	if err != nil {
		return t.mapError(err)
	}
	return requireAffected(result)
}

// DeleteVehicle removes a vehicle with its reservations and payments,
// child-first so the result does not depend on the foreign_keys pragma.
func (t *parkingTx) DeleteVehicle(ctx context.Context, number string) error {
	if _, err := t.tx.ExecContext(ctx, `
		DELETE FROM payments WHERE reservation_id IN (SELECT id FROM reservations WHERE vehicle_number = ?)
	`, number); err != nil {
		return t.mapError(err)
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM reservations WHERE vehicle_number = ?`, number); err != nil {
		return t.mapError(err)
	}
	result, err := t.tx.ExecContext(ctx, `DELETE FROM vehicles WHERE vehicle_number = ?`, number)
	if err != nil {
		return t.mapError(err)
	}
	return requireAffected(result)
}

func (t *parkingTx) FindActiveReservation(ctx context.Context, vehicleNumber string) (persistence.Reservation, error) {
	var row reservationRow
	err := t.tx.GetContext(ctx, &row, `
		SELECT `+reservationColumns+` FROM reservations WHERE vehicle_number = ? AND leaving_at IS NULL LIMIT 1
	`, vehicleNumber)
	if err != nil {
		return persistence.Reservation{}, t.mapError(err)
	}
	return t.storage.reservationFromRow(row)
}

func (t *parkingTx) CreateReservation(ctx context.Context, reservation persistence.Reservation) (int64, error) {
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO reservations (spot_id, user_id, vehicle_number, parking_at, leaving_at, cost_per_hour_cents, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		nullableInt64(reservation.SpotID),
		reservation.UserID,
		reservation.VehicleNumber,
		formatTimestamp(reservation.ParkingAt),
		formatNullableTimestamp(reservation.LeavingAt),
		reservation.CostPerHourCents,
		reservation.Status,
		formatTimestamp(reservation.CreatedAt),
		formatTimestamp(reservation.UpdatedAt),
	)
	if err != nil {
		return 0, t.mapError(err)
	}
	return result.LastInsertId()
}

func (t *parkingTx) GetReservation(ctx context.Context, id int64) (persistence.Reservation, error) {
	return t.storage.getReservation(ctx, t.tx, id)
}

// CompleteReservation records the departure. It reports false when the
// reservation had already been completed.
func (t *parkingTx) CompleteReservation(ctx context.Context, id int64, leavingAt time.Time) (bool, error) {
	at := formatTimestamp(leavingAt)
	result, err := t.tx.ExecContext(ctx, `
		UPDATE reservations SET leaving_at = ?, status = ?, updated_at = ?
		WHERE id = ? AND leaving_at IS NULL
	`, at, persistence.ReservationCompleted, at, id)
	if err != nil {
		return false, t.mapError(err)
	}
	return changed(result)
}

func (t *parkingTx) CreatePayment(ctx context.Context, payment persistence.Payment) (int64, error) {
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO payments (reservation_id, amount_cents, method, status, paid_at)
		VALUES (?, ?, ?, ?, ?)
	`, payment.ReservationID, payment.AmountCents, payment.Method, payment.Status, formatTimestamp(payment.PaidAt))
	if err != nil {
		return 0, t.mapError(err)
	}
	return result.LastInsertId()
}

func changed(result sql.Result) (bool, error) {
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}
