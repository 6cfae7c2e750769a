package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ReportRepository serves the read-only search and aggregate queries.
type ReportRepository interface {
	SearchLots(ctx context.Context, query string) ([]ParkingLot, error)
	SearchUsers(ctx context.Context, query string) ([]User, error)
	SearchVehicles(ctx context.Context, filter VehicleFilter) ([]Vehicle, error)
	ReservationHistory(ctx context.Context, userID string) ([]ReservationHistoryEntry, error)
	LotSummaries(ctx context.Context) ([]LotSummary, error)
	UserSpend(ctx context.Context, userID string) (UserSpend, error)
}

// ReportService answers searches and revenue questions. It never writes.
type ReportService struct {
	reports ReportRepository
	logger  *slog.Logger
}

// NewReportService constructs a report service.
func NewReportService(reports ReportRepository, logger *slog.Logger) *ReportService {
	return &ReportService{reports: reports, logger: defaultLogger(logger)}
}

func (s *ReportService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReportService", operation, attrs...)
}

// FilterLots matches lots case-insensitively on name, location, address, pin code, city, state or district.
func (s *ReportService) FilterLots(ctx context.Context, principal Principal, query string) ([]ParkingLot, error) {
	if s == nil {
		return nil, fmt.Errorf("ReportService is nil")
	}
	if principal.UserID == "" {
		return nil, ErrUnauthenticated
	}
	lots, err := s.reports.SearchLots(ctx, strings.TrimSpace(query))
	if err != nil {
		err = mapStoreError(err)
		s.loggerWith(ctx, "FilterLots").ErrorContext(ctx, "lot search failed", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	return lots, nil
}

// FilterUsers matches regular users on id, name, phone or e-mail. Administrators only.
func (s *ReportService) FilterUsers(ctx context.Context, principal Principal, query string) ([]User, error) {
	if s == nil {
		return nil, fmt.Errorf("ReportService is nil")
	}
	if !principal.IsAdmin {
		return nil, ErrUnauthorized
	}
	users, err := s.reports.SearchUsers(ctx, strings.TrimSpace(query))
	if err != nil {
		err = mapStoreError(err)
		s.loggerWith(ctx, "FilterUsers").ErrorContext(ctx, "user search failed", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	return users, nil
}

// FilterVehicles matches vehicles by number. Regular users only see their own vehicles.
func (s *ReportService) FilterVehicles(ctx context.Context, principal Principal, number string) ([]Vehicle, error) {
	if s == nil {
		return nil, fmt.Errorf("ReportService is nil")
	}
	if principal.UserID == "" {
		return nil, ErrUnauthenticated
	}
	filter := VehicleFilter{Number: NormalizeVehicleNumber(number)}
	if !principal.IsAdmin {
		filter.OwnerID = principal.UserID
	}
	vehicles, err := s.reports.SearchVehicles(ctx, filter)
	if err != nil {
		err = mapStoreError(err)
		s.loggerWith(ctx, "FilterVehicles").ErrorContext(ctx, "vehicle search failed", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	return vehicles, nil
}

// UserReservationHistory lists a user's reservations, newest first.
func (s *ReportService) UserReservationHistory(ctx context.Context, principal Principal, userID string) ([]ReservationHistoryEntry, error) {
	if s == nil {
		return nil, fmt.Errorf("ReportService is nil")
	}
	if err := authorizeUser(principal, userID); err != nil {
		return nil, err
	}
	entries, err := s.reports.ReservationHistory(ctx, userID)
	if err != nil {
		err = mapStoreError(err)
		s.loggerWith(ctx, "UserReservationHistory", "user_id", userID).
			ErrorContext(ctx, "reservation history failed", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	for i := range entries {
		if entries[i].SpotNumber == "" {
			entries[i].SpotNumber = DeletedSpotLabel
		}
	}
	return entries, nil
}

// LotRevenueSummary reports revenue and occupancy per lot. Administrators only.
func (s *ReportService) LotRevenueSummary(ctx context.Context, principal Principal) ([]LotSummary, error) {
	if s == nil {
		return nil, fmt.Errorf("ReportService is nil")
	}
	if !principal.IsAdmin {
		return nil, ErrUnauthorized
	}
	summaries, err := s.reports.LotSummaries(ctx)
	if err != nil {
		err = mapStoreError(err)
		s.loggerWith(ctx, "LotRevenueSummary").ErrorContext(ctx, "lot summary failed", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	return summaries, nil
}

// UserSpendSummary totals a user's payments and open reservations.
func (s *ReportService) UserSpendSummary(ctx context.Context, principal Principal, userID string) (UserSpend, error) {
	if s == nil {
		return UserSpend{}, fmt.Errorf("ReportService is nil")
	}
	if err := authorizeUser(principal, userID); err != nil {
		return UserSpend{}, err
	}
	spend, err := s.reports.UserSpend(ctx, userID)
	if err != nil {
		err = mapStoreError(err)
		s.loggerWith(ctx, "UserSpendSummary", "user_id", userID).
			ErrorContext(ctx, "user spend failed", "error", err, "error_kind", ErrorKind(err))
		return UserSpend{}, err
	}
	return spend, nil
}
