package adapter

import (
	"context"

	"github.com/example/parking-manager/internal/application"
	"github.com/example/parking-manager/internal/persistence"
)

// ReportStore exposes persistence.ReportRepository as an application.ReportRepository.
type ReportStore struct {
	repo persistence.ReportRepository
}

var _ application.ReportRepository = (*ReportStore)(nil)

// NewReportStore wraps the persistence repository.
func NewReportStore(repo persistence.ReportRepository) *ReportStore {
	return &ReportStore{repo: repo}
}

func (s *ReportStore) SearchLots(ctx context.Context, query string) ([]application.ParkingLot, error) {
	records, err := s.repo.SearchLots(ctx, query)
	if err != nil {
		return nil, err
	}
	return lotsFromRecords(records)
}

func (s *ReportStore) SearchUsers(ctx context.Context, query string) ([]application.User, error) {
	records, err := s.repo.SearchUsers(ctx, query)
	if err != nil {
		return nil, err
	}
	return usersFromRecords(records)
}

func (s *ReportStore) SearchVehicles(ctx context.Context, filter application.VehicleFilter) ([]application.Vehicle, error) {
	records, err := s.repo.SearchVehicles(ctx, persistence.VehicleFilter(filter))
	if err != nil {
		return nil, err
	}
	vehicles := make([]application.Vehicle, 0, len(records))
	for _, record := range records {
		vehicles = append(vehicles, vehicleFromRecord(record))
	}
	return vehicles, nil
}

func (s *ReportStore) ReservationHistory(ctx context.Context, userID string) ([]application.ReservationHistoryEntry, error) {
	records, err := s.repo.ReservationHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries := make([]application.ReservationHistoryEntry, 0, len(records))
	for _, record := range records {
		reservation, err := reservationFromRecord(record.Reservation)
		if err != nil {
			return nil, err
		}
		entry := application.ReservationHistoryEntry{
			Reservation: reservation,
			LotID:       record.LotID,
		}
		if record.SpotNumber != nil {
			entry.SpotNumber = *record.SpotNumber
		}
		if record.LotName != nil {
			entry.LotName = *record.LotName
		}
		if record.Payment != nil {
			payment, err := paymentFromRecord(*record.Payment)
			if err != nil {
				return nil, err
			}
			entry.Payment = &payment
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *ReportStore) LotSummaries(ctx context.Context) ([]application.LotSummary, error) {
	records, err := s.repo.LotSummaries(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]application.LotSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, application.LotSummary{
			LotID:           record.LotID,
			Name:            record.Name,
			Revenue:         FromCents(record.RevenueCents),
			LotAvailability: availabilityFromRecord(record.LotAvailability),
		})
	}
	return summaries, nil
}

func (s *ReportStore) UserSpend(ctx context.Context, userID string) (application.UserSpend, error) {
	record, err := s.repo.UserSpend(ctx, userID)
	if err != nil {
		return application.UserSpend{}, err
	}
	return application.UserSpend{
		UserID:             record.UserID,
		TotalPaid:          FromCents(record.TotalPaidCents),
		PaymentCount:       record.PaymentCount,
		ActiveReservations: record.ActiveReservations,
	}, nil
}
