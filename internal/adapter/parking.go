package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/parking-manager/internal/application"
	"github.com/example/parking-manager/internal/persistence"
)

// ParkingStore exposes persistence.ParkingStore as an application.ParkingStore.
type ParkingStore struct {
	store persistence.ParkingStore
}

var _ application.ParkingStore = (*ParkingStore)(nil)

// NewParkingStore wraps the persistence store.
func NewParkingStore(store persistence.ParkingStore) *ParkingStore {
	return &ParkingStore{store: store}
}

func (s *ParkingStore) GetLot(ctx context.Context, id int64) (application.ParkingLot, error) {
	record, err := s.store.GetLot(ctx, id)
	if err != nil {
		return application.ParkingLot{}, err
	}
	return lotFromRecord(record)
}

func (s *ParkingStore) ListLots(ctx context.Context) ([]application.ParkingLot, error) {
	records, err := s.store.ListLots(ctx)
	if err != nil {
		return nil, err
	}
	return lotsFromRecords(records)
}

func (s *ParkingStore) ListSpots(ctx context.Context, lotID int64) ([]application.ParkingSpot, error) {
	records, err := s.store.ListSpots(ctx, lotID)
	if err != nil {
		return nil, err
	}
	spots := make([]application.ParkingSpot, 0, len(records))
	for _, record := range records {
		spot, err := spotFromRecord(record)
		if err != nil {
			return nil, err
		}
		spots = append(spots, spot)
	}
	return spots, nil
}

func (s *ParkingStore) GetSpot(ctx context.Context, id int64) (application.ParkingSpot, error) {
	record, err := s.store.GetSpot(ctx, id)
	if err != nil {
		return application.ParkingSpot{}, err
	}
	return spotFromRecord(record)
}

func (s *ParkingStore) GetReservation(ctx context.Context, id int64) (application.Reservation, error) {
	record, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return application.Reservation{}, err
	}
	return reservationFromRecord(record)
}

func (s *ParkingStore) GetVehicle(ctx context.Context, number string) (application.Vehicle, error) {
	record, err := s.store.GetVehicle(ctx, number)
	if err != nil {
		return application.Vehicle{}, err
	}
	return vehicleFromRecord(record), nil
}

func (s *ParkingStore) LotAvailability(ctx context.Context, lotID int64) (application.LotAvailability, error) {
	record, err := s.store.LotAvailability(ctx, lotID)
	if err != nil {
		return application.LotAvailability{}, err
	}
	return availabilityFromRecord(record), nil
}

func (s *ParkingStore) WithinTx(ctx context.Context, fn func(tx application.ParkingTx) error) error {
	return s.store.WithinTx(ctx, func(tx persistence.ParkingTx) error {
		return fn(parkingTx{tx: tx})
	})
}

// parkingTx converts between domain values and stored records inside a unit of work.
type parkingTx struct {
	tx persistence.ParkingTx
}

func (t parkingTx) CreateLot(ctx context.Context, lot application.ParkingLot) (int64, error) {
	record, err := lotToRecord(lot)
	if err != nil {
		return 0, err
	}
	return t.tx.CreateLot(ctx, record)
}

func (t parkingTx) GetLot(ctx context.Context, id int64) (application.ParkingLot, error) {
	record, err := t.tx.GetLot(ctx, id)
	if err != nil {
		return application.ParkingLot{}, err
	}
	return lotFromRecord(record)
}

func (t parkingTx) UpdateLot(ctx context.Context, lot application.ParkingLot) error {
	record, err := lotToRecord(lot)
	if err != nil {
		return err
	}
	return t.tx.UpdateLot(ctx, record)
}

func (t parkingTx) DeleteLot(ctx context.Context, id int64) error {
	return t.tx.DeleteLot(ctx, id)
}

func (t parkingTx) AdjustLotCapacity(ctx context.Context, lotID int64, delta int, at time.Time) error {
	return t.tx.AdjustLotCapacity(ctx, lotID, delta, at)
}

func (t parkingTx) AddLotRevenue(ctx context.Context, lotID int64, amount decimal.Decimal, at time.Time) error {
	cents, err := ToCents(amount)
	if err != nil {
		return err
	}
	return t.tx.AddLotRevenue(ctx, lotID, cents, at)
}

func (t parkingTx) CountOccupiedSpots(ctx context.Context, lotID int64) (int, error) {
	return t.tx.CountOccupiedSpots(ctx, lotID)
}

func (t parkingTx) CreateSpot(ctx context.Context, spot application.ParkingSpot) (int64, error) {
	record, err := spotToRecord(spot)
	if err != nil {
		return 0, err
	}
	return t.tx.CreateSpot(ctx, record)
}

func (t parkingTx) GetSpot(ctx context.Context, id int64) (application.ParkingSpot, error) {
	record, err := t.tx.GetSpot(ctx, id)
	if err != nil {
		return application.ParkingSpot{}, err
	}
	return spotFromRecord(record)
}

func (t parkingTx) UpdateSpot(ctx context.Context, spot application.ParkingSpot) error {
	record, err := spotToRecord(spot)
	if err != nil {
		return err
	}
	return t.tx.UpdateSpot(ctx, record)
}

func (t parkingTx) DeleteSpot(ctx context.Context, id int64) error {
	return t.tx.DeleteSpot(ctx, id)
}

func (t parkingTx) FindAvailableSpot(ctx context.Context, lotID int64, exclude []int64) (application.ParkingSpot, error) {
	record, err := t.tx.FindAvailableSpot(ctx, lotID, exclude)
	if err != nil {
		return application.ParkingSpot{}, err
	}
	return spotFromRecord(record)
}

func (t parkingTx) ClaimSpot(ctx context.Context, spotID int64, at time.Time) (bool, error) {
	return t.tx.ClaimSpot(ctx, spotID, at)
}

func (t parkingTx) ReleaseSpot(ctx context.Context, spotID int64, revenue decimal.Decimal, at time.Time) (bool, error) {
	cents, err := ToCents(revenue)
	if err != nil {
		return false, err
	}
	return t.tx.ReleaseSpot(ctx, spotID, cents, at)
}

func (t parkingTx) GetUser(ctx context.Context, id string) (application.User, error) {
	record, err := t.tx.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return userFromRecord(record)
}

func (t parkingTx) GetVehicle(ctx context.Context, number string) (application.Vehicle, error) {
	record, err := t.tx.GetVehicle(ctx, number)
	if err != nil {
		return application.Vehicle{}, err
	}
	return vehicleFromRecord(record), nil
}

func (t parkingTx) CreateVehicle(ctx context.Context, vehicle application.Vehicle) error {
	return t.tx.CreateVehicle(ctx, vehicleToRecord(vehicle))
}

func (t parkingTx) UpdateVehicle(ctx context.Context, vehicle application.Vehicle) error {
	return t.tx.UpdateVehicle(ctx, vehicleToRecord(vehicle))
}

func (t parkingTx) DeleteVehicle(ctx context.Context, number string) error {
	return t.tx.DeleteVehicle(ctx, number)
}

func (t parkingTx) FindActiveReservation(ctx context.Context, vehicleNumber string) (application.Reservation, error) {
	record, err := t.tx.FindActiveReservation(ctx, vehicleNumber)
	if err != nil {
		return application.Reservation{}, err
	}
	return reservationFromRecord(record)
}

func (t parkingTx) CreateReservation(ctx context.Context, reservation application.Reservation) (int64, error) {
	record, err := reservationToRecord(reservation)
	if err != nil {
		return 0, err
	}
	return t.tx.CreateReservation(ctx, record)
}

func (t parkingTx) GetReservation(ctx context.Context, id int64) (application.Reservation, error) {
	record, err := t.tx.GetReservation(ctx, id)
	if err != nil {
		return application.Reservation{}, err
	}
	return reservationFromRecord(record)
}

func (t parkingTx) CompleteReservation(ctx context.Context, id int64, leavingAt time.Time) (bool, error) {
	return t.tx.CompleteReservation(ctx, id, leavingAt)
}

func (t parkingTx) CreatePayment(ctx context.Context, payment application.Payment) (int64, error) {
	record, err := paymentToRecord(payment)
	if err != nil {
		return 0, err
	}
	return t.tx.CreatePayment(ctx, record)
}

func lotToRecord(lot application.ParkingLot) (persistence.ParkingLot, error) {
	price, err := ToCents(lot.PricePerHour)
	if err != nil {
		return persistence.ParkingLot{}, fmt.Errorf("lot %d price: %w", lot.ID, err)
	}
	revenue, err := ToCents(lot.Revenue)
	if err != nil {
		return persistence.ParkingLot{}, fmt.Errorf("lot %d revenue: %w", lot.ID, err)
	}
	record := persistence.ParkingLot{
		ID:                   lot.ID,
		Name:                 lot.Name,
		PrimeLocationName:    lot.PrimeLocationName,
		Address:              lot.Address,
		PinCode:              lot.PinCode,
		City:                 lot.City,
		State:                lot.State,
		District:             lot.District,
		FloorLevel:           lot.FloorLevel,
		PricePerHourCents:    price,
		MaximumNumberOfSpots: lot.MaximumNumberOfSpots,
		RevenueCents:         revenue,
		IsActive:             lot.IsActive,
		CreatedAt:            lot.CreatedAt,
		UpdatedAt:            lot.UpdatedAt,
	}
	if lot.Hours.Open != nil {
		open := lot.Hours.Open.String()
		record.OpenTime = &open
	}
	if lot.Hours.Close != nil {
		closing := lot.Hours.Close.String()
		record.CloseTime = &closing
	}
	return record, nil
}

func lotFromRecord(record persistence.ParkingLot) (application.ParkingLot, error) {
	lot := application.ParkingLot{
		ID:                   record.ID,
		Name:                 record.Name,
		PrimeLocationName:    record.PrimeLocationName,
		Address:              record.Address,
		PinCode:              record.PinCode,
		City:                 record.City,
		State:                record.State,
		District:             record.District,
		FloorLevel:           record.FloorLevel,
		PricePerHour:         FromCents(record.PricePerHourCents),
		MaximumNumberOfSpots: record.MaximumNumberOfSpots,
		Revenue:              FromCents(record.RevenueCents),
		IsActive:             record.IsActive,
		CreatedAt:            record.CreatedAt,
		UpdatedAt:            record.UpdatedAt,
	}
	var err error
	if lot.Hours.Open, err = timeOfDay(record.OpenTime); err != nil {
		return application.ParkingLot{}, fmt.Errorf("lot %d open_time: %w", record.ID, err)
	}
	if lot.Hours.Close, err = timeOfDay(record.CloseTime); err != nil {
		return application.ParkingLot{}, fmt.Errorf("lot %d close_time: %w", record.ID, err)
	}
	return lot, nil
}

func lotsFromRecords(records []persistence.ParkingLot) ([]application.ParkingLot, error) {
	lots := make([]application.ParkingLot, 0, len(records))
	for _, record := range records {
		lot, err := lotFromRecord(record)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, nil
}

func timeOfDay(value *string) (*application.TimeOfDay, error) {
	if value == nil {
		return nil, nil
	}
	parsed, err := application.ParseTimeOfDay(*value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func spotToRecord(spot application.ParkingSpot) (persistence.ParkingSpot, error) {
	status, err := encode(spotStatusCodes, spot.Status, "spot status")
	if err != nil {
		return persistence.ParkingSpot{}, err
	}
	revenue, err := ToCents(spot.Revenue)
	if err != nil {
		return persistence.ParkingSpot{}, err
	}
	return persistence.ParkingSpot{
		ID:           spot.ID,
		LotID:        spot.LotID,
		SpotNumber:   spot.SpotNumber,
		Status:       status,
		IsCovered:    spot.IsCovered,
		RevenueCents: revenue,
		CreatedAt:    spot.CreatedAt,
		UpdatedAt:    spot.UpdatedAt,
	}, nil
}

func spotFromRecord(record persistence.ParkingSpot) (application.ParkingSpot, error) {
	status, err := decode(spotStatusCodes, record.Status, "spot status")
	if err != nil {
		return application.ParkingSpot{}, err
	}
	return application.ParkingSpot{
		ID:         record.ID,
		LotID:      record.LotID,
		SpotNumber: record.SpotNumber,
		Status:     status,
		IsCovered:  record.IsCovered,
		Revenue:    FromCents(record.RevenueCents),
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}, nil
}

func vehicleToRecord(vehicle application.Vehicle) persistence.Vehicle {
	return persistence.Vehicle(vehicle)
}

func vehicleFromRecord(record persistence.Vehicle) application.Vehicle {
	return application.Vehicle(record)
}

func reservationToRecord(reservation application.Reservation) (persistence.Reservation, error) {
	status, err := encode(reservationStatusCodes, reservation.Status, "reservation status")
	if err != nil {
		return persistence.Reservation{}, err
	}
	costPerHour, err := ToCents(reservation.CostPerHour)
	if err != nil {
		return persistence.Reservation{}, err
	}
	return persistence.Reservation{
		ID:               reservation.ID,
		SpotID:           reservation.SpotID,
		UserID:           reservation.UserID,
		VehicleNumber:    reservation.VehicleNumber,
		ParkingAt:        reservation.ParkingAt,
		LeavingAt:        reservation.LeavingAt,
		CostPerHourCents: costPerHour,
		Status:           status,
		CreatedAt:        reservation.CreatedAt,
		UpdatedAt:        reservation.UpdatedAt,
	}, nil
}

func reservationFromRecord(record persistence.Reservation) (application.Reservation, error) {
	status, err := decode(reservationStatusCodes, record.Status, "reservation status")
	if err != nil {
		return application.Reservation{}, err
	}
	return application.Reservation{
		ID:            record.ID,
		SpotID:        record.SpotID,
		UserID:        record.UserID,
		VehicleNumber: record.VehicleNumber,
		ParkingAt:     record.ParkingAt,
		LeavingAt:     record.LeavingAt,
		CostPerHour:   FromCents(record.CostPerHourCents),
		Status:        status,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}, nil
}

func paymentToRecord(payment application.Payment) (persistence.Payment, error) {
	method, err := encode(paymentMethodCodes, payment.Method, "payment method")
	if err != nil {
		return persistence.Payment{}, err
	}
	status, err := encode(paymentStatusCodes, payment.Status, "payment status")
	if err != nil {
		return persistence.Payment{}, err
	}
	amount, err := ToCents(payment.Amount)
	if err != nil {
		return persistence.Payment{}, err
	}
	return persistence.Payment{
		ID:            payment.ID,
		ReservationID: payment.ReservationID,
		AmountCents:   amount,
		Method:        method,
		Status:        status,
		PaidAt:        payment.PaidAt,
	}, nil
}

func paymentFromRecord(record persistence.Payment) (application.Payment, error) {
	method, err := decode(paymentMethodCodes, record.Method, "payment method")
	if err != nil {
		return application.Payment{}, err
	}
	status, err := decode(paymentStatusCodes, record.Status, "payment status")
	if err != nil {
		return application.Payment{}, err
	}
	return application.Payment{
		ID:            record.ID,
		ReservationID: record.ReservationID,
		Amount:        FromCents(record.AmountCents),
		Method:        method,
		Status:        status,
		PaidAt:        record.PaidAt,
	}, nil
}

func availabilityFromRecord(record persistence.LotAvailability) application.LotAvailability {
	return application.LotAvailability(record)
}
