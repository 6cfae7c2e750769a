package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/parking-manager/internal/persistence"
)

// likePattern escapes LIKE wildcards so the query matches as a plain substring.
func likePattern(query string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.TrimSpace(query)) + "%"
}

// SearchLots matches the query against the lot's name and location fields.
// SQLite's LIKE is case-insensitive for ASCII.
func (s *Storage) SearchLots(ctx context.Context, query string) ([]persistence.ParkingLot, error) {
	if strings.TrimSpace(query) == "" {
		return s.ListLots(ctx)
	}
	pattern := likePattern(query)
	var rows []lotRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+lotColumns+`
		FROM parking_lots
		WHERE name LIKE ? ESCAPE '\'
		   OR prime_location_name LIKE ? ESCAPE '\'
		   OR address LIKE ? ESCAPE '\'
		   OR pin_code LIKE ? ESCAPE '\'
		   OR city LIKE ? ESCAPE '\'
		   OR state LIKE ? ESCAPE '\'
		   OR district LIKE ? ESCAPE '\'
		ORDER BY id ASC
	`, pattern, pattern, pattern, pattern, pattern, pattern, pattern)
	if err != nil {
		return nil, mapError(err)
	}
	return s.lotsFromRows(rows)
}

// SearchUsers matches regular users by id, name, phone or e-mail.
func (s *Storage) SearchUsers(ctx context.Context, query string) ([]persistence.User, error) {
	pattern := likePattern(query)
	var rows []userRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+userColumns+`
		FROM users
		WHERE role = ?
		  AND (id LIKE ? ESCAPE '\' OR full_name LIKE ? ESCAPE '\' OR phone_number LIKE ? ESCAPE '\' OR email LIKE ? ESCAPE '\')
		ORDER BY created_at ASC, id ASC
	`, persistence.RoleUser, pattern, pattern, pattern, pattern)
	if err != nil {
		return nil, mapError(err)
	}
	return s.usersFromRows(rows)
}

// SearchVehicles filters vehicles by number substring and owner.
func (s *Storage) SearchVehicles(ctx context.Context, filter persistence.VehicleFilter) ([]persistence.Vehicle, error) {
	query := `SELECT vehicle_number, user_id, brand, model, color, fuel_type, created_at FROM vehicles WHERE vehicle_number LIKE ? ESCAPE '\'`
	args := []any{likePattern(filter.Number)}
	if filter.OwnerID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.OwnerID)
	}
	query += ` ORDER BY vehicle_number ASC`

	var rows []vehicleRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, mapError(err)
	}
	vehicles := make([]persistence.Vehicle, 0, len(rows))
	for _, row := range rows {
		vehicle, err := s.vehicleFromRow(row)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, vehicle)
	}
	return vehicles, nil
}

// ReservationHistory lists a user's reservations newest first with spot, lot and payment details.
func (s *Storage) ReservationHistory(ctx context.Context, userID string) ([]persistence.ReservationHistoryEntry, error) {
	var rows []struct {
		reservationRow
		SpotNumber    sql.NullString `db:"spot_number"`
		LotID         sql.NullInt64  `db:"lot_id"`
		LotName       sql.NullString `db:"lot_name"`
		PaymentID     sql.NullInt64  `db:"payment_id"`
		AmountCents   sql.NullInt64  `db:"amount_cents"`
		PaymentMethod sql.NullString `db:"payment_method"`
		PaymentStatus sql.NullString `db:"payment_status"`
		PaidAt        sql.NullString `db:"paid_at"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT r.id, r.spot_id, r.user_id, r.vehicle_number, r.parking_at, r.leaving_at, r.cost_per_hour_cents,
		       r.status, r.created_at, r.updated_at,
		       s.spot_number, l.id AS lot_id, l.name AS lot_name,
		       p.id AS payment_id, p.amount_cents, p.method AS payment_method, p.status AS payment_status, p.paid_at
		FROM reservations r
		LEFT JOIN parking_spots s ON s.id = r.spot_id
		LEFT JOIN parking_lots l ON l.id = s.lot_id
		LEFT JOIN payments p ON p.reservation_id = r.id
		WHERE r.user_id = ?
		ORDER BY r.parking_at DESC, r.id DESC
	`, userID)
	if err != nil {
		return nil, mapError(err)
	}

	entries := make([]persistence.ReservationHistoryEntry, 0, len(rows))
	for _, row := range rows {
		reservation, err := s.reservationFromRow(row.reservationRow)
		if err != nil {
			return nil, err
		}
		entry := persistence.ReservationHistoryEntry{
			Reservation: reservation,
			SpotNumber:  stringPtr(row.SpotNumber),
			LotID:       int64Ptr(row.LotID),
			LotName:     stringPtr(row.LotName),
		}
		if row.PaymentID.Valid {
			paidAt, err := s.parseTimestamp(row.PaidAt.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse paid_at: %w", err)
			}
			entry.Payment = &persistence.Payment{
				ID:            row.PaymentID.Int64,
				ReservationID: reservation.ID,
				AmountCents:   row.AmountCents.Int64,
				Method:        row.PaymentMethod.String,
				Status:        row.PaymentStatus.String,
				PaidAt:        paidAt,
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// LotSummaries returns revenue and occupancy per lot.
func (s *Storage) LotSummaries(ctx context.Context) ([]persistence.LotSummary, error) {
	var rows []struct {
		LotID        int64  `db:"lot_id"`
		Name         string `db:"name"`
		RevenueCents int64  `db:"revenue_cents"`
		Capacity     int    `db:"capacity"`
		Occupied     int    `db:"occupied"`
		Available    int    `db:"available"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT l.id AS lot_id, l.name, l.revenue_cents,
		       l.maximum_number_of_spots AS capacity,
		       COALESCE(SUM(CASE WHEN s.status = ? THEN 1 ELSE 0 END), 0) AS occupied,
		       COALESCE(SUM(CASE WHEN s.status = ? THEN 1 ELSE 0 END), 0) AS available
		FROM parking_lots l
		LEFT JOIN parking_spots s ON s.lot_id = l.id
		GROUP BY l.id
		ORDER BY l.id ASC
	`, persistence.SpotOccupied, persistence.SpotAvailable)
	if err != nil {
		return nil, mapError(err)
	}

	summaries := make([]persistence.LotSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, persistence.LotSummary{
			LotID:        row.LotID,
			Name:         row.Name,
			RevenueCents: row.RevenueCents,
			LotAvailability: persistence.LotAvailability{
				LotID:     row.LotID,
				Capacity:  row.Capacity,
				Occupied:  row.Occupied,
				Available: row.Available,
			},
		})
	}
	return summaries, nil
}

// UserSpend totals a user's payments and counts open reservations.
func (s *Storage) UserSpend(ctx context.Context, userID string) (persistence.UserSpend, error) {
	if _, err := s.getUser(ctx, s.db, userID); err != nil {
		return persistence.UserSpend{}, err
	}
	spend := persistence.UserSpend{UserID: userID}
	err := s.db.QueryRowxContext(ctx, `
		SELECT COALESCE(SUM(p.amount_cents), 0), COUNT(p.id)
		FROM payments p
		JOIN reservations r ON r.id = p.reservation_id
		WHERE r.user_id = ? AND p.status = ?
	`, userID, persistence.PaymentPaid).Scan(&spend.TotalPaidCents, &spend.PaymentCount)
	if err != nil {
		return persistence.UserSpend{}, mapError(err)
	}
	err = s.db.GetContext(ctx, &spend.ActiveReservations, `
		SELECT COUNT(*) FROM reservations WHERE user_id = ? AND leaving_at IS NULL
	`, userID)
	if err != nil {
		return persistence.UserSpend{}, mapError(err)
	}
	return spend, nil
}
