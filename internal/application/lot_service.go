package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	minFloorLevel = 1
	maxFloorLevel = 5
)

// LotService manages parking lots and their spots.
type LotService struct {
	store     ParkingStore
	publisher AvailabilityPublisher
	now       func() time.Time
	logger    *slog.Logger
}

// NewLotService constructs a lot service with the provided dependencies.
func NewLotService(store ParkingStore, now func() time.Time) *LotService {
	return NewLotServiceWithLogger(store, nil, now, nil)
}

// NewLotServiceWithLogger constructs a lot service with a publisher and logger.
func NewLotServiceWithLogger(store ParkingStore, publisher AvailabilityPublisher, now func() time.Time, logger *slog.Logger) *LotService {
	if now == nil {
		now = time.Now
	}
	return &LotService{store: store, publisher: publisher, now: now, logger: defaultLogger(logger)}
}

func (s *LotService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "LotService", operation, attrs...)
}

// CreateLot persists a lot together with its spots {lotID}-1 .. {lotID}-N.
func (s *LotService) CreateLot(ctx context.Context, params CreateLotParams) (lot ParkingLot, err error) {
	if s == nil {
		err = fmt.Errorf("LotService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateLot", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create lot", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("lot_id", lot.ID, "spots", lot.MaximumNumberOfSpots).InfoContext(ctx, "lot created")
		s.publish(ctx, lot.ID)
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	var hours OperatingHours
	hours, err = buildLotFromInput(params.Input, &lot)
	if err != nil {
		return
	}
	lot.Hours = hours
	lot.IsActive = true
	lot.Revenue = decimal.Zero
	lot.CreatedAt = s.now()
	lot.UpdatedAt = lot.CreatedAt

	err = s.store.WithinTx(ctx, func(tx ParkingTx) error {
		id, txErr := tx.CreateLot(ctx, lot)
		if txErr != nil {
			return txErr
		}
		for n := 1; n <= lot.MaximumNumberOfSpots; n++ {
			spot := ParkingSpot{
				LotID:      id,
				SpotNumber: SpotNumber(id, n),
				Status:     SpotAvailable,
				Revenue:    decimal.Zero,
				CreatedAt:  lot.CreatedAt,
				UpdatedAt:  lot.CreatedAt,
			}
			if _, txErr = tx.CreateSpot(ctx, spot); txErr != nil {
				return txErr
			}
		}
		lot, txErr = tx.GetLot(ctx, id)
		return txErr
	})
	if err != nil {
		err = mapStoreError(err)
		lot = ParkingLot{}
	}
	return
}

// SpotNumber renders the display number of the n-th spot of a lot.
func SpotNumber(lotID int64, n int) string {
	return fmt.Sprintf("%d-%d", lotID, n)
}

// UpdateLot changes the price, opening hours or active flag of a lot.
func (s *LotService) UpdateLot(ctx context.Context, params UpdateLotParams) (lot ParkingLot, err error) {
	if s == nil {
		err = fmt.Errorf("LotService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateLot",
		"principal_id", params.Principal.UserID,
		"lot_id", params.LotID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update lot", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "lot updated")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	update := params.Update
	vErr := &ValidationError{}
	if update.PricePerHour != nil {
		if msg := moneyProblem("price per hour", *update.PricePerHour); msg != "" {
			vErr.add("price_per_hour", msg)
		}
	}
	open, openErr := parseOptionalTimeOfDay(update.OpenTime)
	if openErr != nil {
		vErr.add("open_time", "open time must use HH:MM")
	}
	closing, closeErr := parseOptionalTimeOfDay(update.CloseTime)
	if closeErr != nil {
		vErr.add("close_time", "close time must use HH:MM")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.store.WithinTx(ctx, func(tx ParkingTx) error {
		current, txErr := tx.GetLot(ctx, params.LotID)
		if txErr != nil {
			return txErr
		}
		if update.PricePerHour != nil {
			current.PricePerHour = RoundMoney(*update.PricePerHour)
		}
		if update.ClearHours {
			current.Hours = OperatingHours{}
		}
		if open != nil {
			current.Hours.Open = open
		}
		if closing != nil {
			current.Hours.Close = closing
		}
		if update.IsActive != nil {
			current.IsActive = *update.IsActive
		}
		current.UpdatedAt = s.now()
		if txErr = tx.UpdateLot(ctx, current); txErr != nil {
			return txErr
		}
		lot, txErr = tx.GetLot(ctx, params.LotID)
		return txErr
	})
	if err != nil {
		err = mapStoreError(err)
		lot = ParkingLot{}
	}
	return
}

// UpdateSpot renumbers a spot or changes its covered flag. An occupied spot
// stays covered.
func (s *LotService) UpdateSpot(ctx context.Context, params UpdateSpotParams) (spot ParkingSpot, err error) {
	if s == nil {
		err = fmt.Errorf("LotService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateSpot",
		"principal_id", params.Principal.UserID,
		"spot_id", params.SpotID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update spot", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("lot_id", spot.LotID).InfoContext(ctx, "spot updated")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	update := params.Update
	var number string
	if update.SpotNumber != nil {
		number = strings.TrimSpace(*update.SpotNumber)
		if number == "" {
			err = fieldError("spot_number", "spot number must not be empty")
			return
		}
	}

	err = s.store.WithinTx(ctx, func(tx ParkingTx) error {
		current, txErr := tx.GetSpot(ctx, params.SpotID)
		if txErr != nil {
			return txErr
		}
		if number != "" {
			current.SpotNumber = number
		}
		if update.IsCovered != nil {
			if current.Status == SpotOccupied && !*update.IsCovered {
				return fmt.Errorf("%w: spot %s is occupied", ErrConflict, current.SpotNumber)
			}
			current.IsCovered = *update.IsCovered
		}
		current.UpdatedAt = s.now()
		if txErr = tx.UpdateSpot(ctx, current); txErr != nil {
			return txErr
		}
		spot, txErr = tx.GetSpot(ctx, params.SpotID)
		return txErr
	})
	if err != nil {
		err = mapStoreError(err)
		spot = ParkingSpot{}
	}
	return
}

// DeleteLot removes a lot and its spots. Lots with occupied spots are kept.
func (s *LotService) DeleteLot(ctx context.Context, principal Principal, lotID int64) (err error) {
	if s == nil {
		return fmt.Errorf("LotService is nil")
	}

	logger := s.loggerWith(ctx, "DeleteLot",
		"principal_id", principal.UserID,
		"lot_id", lotID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete lot", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "lot deleted")
		// The lot is gone, so subscribers get an all-zero frame instead of a fresh count.
		if s.publisher != nil {
			s.publisher.PublishAvailability(ctx, LotAvailability{LotID: lotID})
		}
	}()

	if !principal.IsAdmin {
		return ErrUnauthorized
	}

	err = s.store.WithinTx(ctx, func(tx ParkingTx) error {
		if _, txErr := tx.GetLot(ctx, lotID); txErr != nil {
			return txErr
		}
		occupied, txErr := tx.CountOccupiedSpots(ctx, lotID)
		if txErr != nil {
			return txErr
		}
		if occupied > 0 {
			return fmt.Errorf("%w: lot has %d occupied spots", ErrConflict, occupied)
		}
		return tx.DeleteLot(ctx, lotID)
	})
	return mapStoreError(err)
}

// DeleteSpot removes an available spot and shrinks the lot's capacity.
func (s *LotService) DeleteSpot(ctx context.Context, principal Principal, spotID int64) (err error) {
	if s == nil {
		return fmt.Errorf("LotService is nil")
	}

	logger := s.loggerWith(ctx, "DeleteSpot",
		"principal_id", principal.UserID,
		"spot_id", spotID,
	)
	var lotID int64
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete spot", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("lot_id", lotID).InfoContext(ctx, "spot deleted")
		s.publish(ctx, lotID)
	}()

	if !principal.IsAdmin {
		return ErrUnauthorized
	}

	err = s.store.WithinTx(ctx, func(tx ParkingTx) error {
		spot, txErr := tx.GetSpot(ctx, spotID)
		if txErr != nil {
			return txErr
		}
		if spot.Status == SpotOccupied {
			return fmt.Errorf("%w: spot %s is occupied", ErrConflict, spot.SpotNumber)
		}
		lotID = spot.LotID
		if txErr = tx.DeleteSpot(ctx, spotID); txErr != nil {
			return txErr
		}
		return tx.AdjustLotCapacity(ctx, spot.LotID, -1, s.now())
	})
	return mapStoreError(err)
}

// GetLot returns a single lot.
func (s *LotService) GetLot(ctx context.Context, principal Principal, lotID int64) (ParkingLot, error) {
	if s == nil {
		return ParkingLot{}, fmt.Errorf("LotService is nil")
	}
	if principal.UserID == "" {
		return ParkingLot{}, ErrUnauthenticated
	}
	lot, err := s.store.GetLot(ctx, lotID)
	if err != nil {
		return ParkingLot{}, mapStoreError(err)
	}
	return lot, nil
}

// ListLots returns every lot ordered by id.
func (s *LotService) ListLots(ctx context.Context, principal Principal) ([]ParkingLot, error) {
	if s == nil {
		return nil, fmt.Errorf("LotService is nil")
	}
	if principal.UserID == "" {
		return nil, ErrUnauthenticated
	}
	lots, err := s.store.ListLots(ctx)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return lots, nil
}

// ListSpots returns the spots of a lot.
func (s *LotService) ListSpots(ctx context.Context, principal Principal, lotID int64) ([]ParkingSpot, error) {
	if s == nil {
		return nil, fmt.Errorf("LotService is nil")
	}
	if principal.UserID == "" {
		return nil, ErrUnauthenticated
	}
	if _, err := s.store.GetLot(ctx, lotID); err != nil {
		return nil, mapStoreError(err)
	}
	spots, err := s.store.ListSpots(ctx, lotID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return spots, nil
}

// GetSpot returns a single spot.
func (s *LotService) GetSpot(ctx context.Context, principal Principal, spotID int64) (ParkingSpot, error) {
	if s == nil {
		return ParkingSpot{}, fmt.Errorf("LotService is nil")
	}
	if principal.UserID == "" {
		return ParkingSpot{}, ErrUnauthenticated
	}
	spot, err := s.store.GetSpot(ctx, spotID)
	if err != nil {
		return ParkingSpot{}, mapStoreError(err)
	}
	return spot, nil
}

// Availability returns the occupancy counters of a lot.
func (s *LotService) Availability(ctx context.Context, lotID int64) (LotAvailability, error) {
	if s == nil {
		return LotAvailability{}, fmt.Errorf("LotService is nil")
	}
	availability, err := s.store.LotAvailability(ctx, lotID)
	if err != nil {
		return LotAvailability{}, mapStoreError(err)
	}
	return availability, nil
}

func (s *LotService) publish(ctx context.Context, lotID int64) {
	publishAvailability(ctx, s.store, s.publisher, s.logger, lotID)
}

// publishAvailability pushes the current counters of a lot. Failures are logged only.
func publishAvailability(ctx context.Context, store ParkingStore, publisher AvailabilityPublisher, logger *slog.Logger, lotID int64) {
	if publisher == nil || lotID == 0 {
		return
	}
	availability, err := store.LotAvailability(ctx, lotID)
	if err != nil {
		serviceLogger(ctx, logger, "AvailabilityFeed", "Publish", "lot_id", lotID).
			WarnContext(ctx, "failed to load availability", "error", err)
		return
	}
	publisher.PublishAvailability(ctx, availability)
}

func buildLotFromInput(input LotInput, lot *ParkingLot) (OperatingHours, error) {
	vErr := &ValidationError{}

	lot.Name = strings.TrimSpace(input.Name)
	lot.PrimeLocationName = strings.TrimSpace(input.PrimeLocationName)
	lot.Address = strings.TrimSpace(input.Address)
	lot.PinCode = strings.TrimSpace(input.PinCode)
	lot.City = strings.TrimSpace(input.City)
	lot.State = strings.TrimSpace(input.State)
	lot.District = strings.TrimSpace(input.District)
	lot.FloorLevel = input.FloorLevel
	lot.MaximumNumberOfSpots = input.MaximumNumberOfSpots
	lot.PricePerHour = RoundMoney(input.PricePerHour)

	if lot.Name == "" {
		vErr.add("name", "name is required")
	}
	if lot.PrimeLocationName == "" {
		vErr.add("prime_location_name", "prime location name is required")
	}
	if lot.Address == "" {
		vErr.add("address", "address is required")
	}
	if lot.PinCode == "" {
		vErr.add("pin_code", "pin code is required")
	}
	if lot.FloorLevel == 0 {
		lot.FloorLevel = minFloorLevel
	}
	if lot.FloorLevel < minFloorLevel || lot.FloorLevel > maxFloorLevel {
		vErr.add("floor_level", fmt.Sprintf("floor level must be between %d and %d", minFloorLevel, maxFloorLevel))
	}
	if lot.MaximumNumberOfSpots < 1 {
		vErr.add("maximum_number_of_spots", "a lot needs at least one spot")
	}
	if msg := moneyProblem("price per hour", lot.PricePerHour); msg != "" {
		vErr.add("price_per_hour", msg)
	}

	var hours OperatingHours
	var err error
	if hours.Open, err = parseOptionalTimeOfDay(input.OpenTime); err != nil {
		vErr.add("open_time", "open time must use HH:MM")
	}
	if hours.Close, err = parseOptionalTimeOfDay(input.CloseTime); err != nil {
		vErr.add("close_time", "close time must use HH:MM")
	}

	if vErr.HasErrors() {
		return OperatingHours{}, vErr
	}
	return hours, nil
}

func parseOptionalTimeOfDay(value *string) (*TimeOfDay, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	parsed, err := ParseTimeOfDay(*value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
