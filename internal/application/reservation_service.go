package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/parking-manager/internal/persistence"
)

const defaultClaimAttempts = 3

// errClaimLost aborts a reservation attempt whose spot was taken concurrently.
var errClaimLost = errors.New("spot claim lost")

// ReservationConfig tunes the reservation engine.
type ReservationConfig struct {
	// Location is the zone used to evaluate lot opening hours.
	Location *time.Location
	// QuoteTTL bounds how long a release quote can be paid.
	QuoteTTL time.Duration
	// MaxClaimAttempts bounds the whole-transaction retries after a lost spot claim.
	MaxClaimAttempts int
}

// ReservationService parks vehicles, quotes releases and settles payments.
type ReservationService struct {
	store          ParkingStore
	publisher      AvailabilityPublisher
	quotes         *quoteCache
	tokenGenerator func() string
	now            func() time.Time
	location       *time.Location
	claimAttempts  int
	logger         *slog.Logger
}

// NewReservationService constructs a reservation service with the provided dependencies.
func NewReservationService(store ParkingStore, tokenGenerator func() string, now func() time.Time, cfg ReservationConfig) *ReservationService {
	return NewReservationServiceWithLogger(store, nil, tokenGenerator, now, cfg, nil)
}

// NewReservationServiceWithLogger constructs a reservation service with a publisher and logger.
func NewReservationServiceWithLogger(store ParkingStore, publisher AvailabilityPublisher, tokenGenerator func() string, now func() time.Time, cfg ReservationConfig, logger *slog.Logger) *ReservationService {
	if tokenGenerator == nil {
		tokenGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxClaimAttempts <= 0 {
		cfg.MaxClaimAttempts = defaultClaimAttempts
	}
	return &ReservationService{
		store:          store,
		publisher:      publisher,
		quotes:         newQuoteCache(cfg.QuoteTTL, 0, now),
		tokenGenerator: tokenGenerator,
		now:            now,
		location:       cfg.Location,
		claimAttempts:  cfg.MaxClaimAttempts,
		logger:         defaultLogger(logger),
	}
}

func (s *ReservationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReservationService", operation, attrs...)
}

// NormalizeVehicleNumber trims, upper-cases and removes inner whitespace.
func NormalizeVehicleNumber(number string) string {
	return strings.ToUpper(strings.Join(strings.Fields(number), ""))
}

// Reserve claims an available spot of a lot for a vehicle and opens a reservation.
func (s *ReservationService) Reserve(ctx context.Context, params ReserveParams) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	vehicleNumber := NormalizeVehicleNumber(params.Vehicle.VehicleNumber)
	logger := s.loggerWith(ctx, "Reserve",
		"principal_id", params.Principal.UserID,
		"lot_id", params.LotID,
		"user_id", params.UserID,
		"vehicle_number", vehicleNumber,
	)
	var lotID int64
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to reserve spot", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("reservation_id", reservation.ID, "spot_id", derefID(reservation.SpotID)).InfoContext(ctx, "spot reserved")
		publishAvailability(ctx, s.store, s.publisher, s.logger, lotID)
	}()

	if err = authorizeUser(params.Principal, params.UserID); err != nil {
		return
	}

	vErr := &ValidationError{}
	if strings.TrimSpace(params.UserID) == "" {
		vErr.add("user_id", "user is required")
	}
	if vehicleNumber == "" {
		vErr.add("vehicle_number", "vehicle number is required")
	} else if len(vehicleNumber) > 20 {
		vErr.add("vehicle_number", "vehicle number must be at most 20 characters")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var lost []int64
	for attempt := 1; attempt <= s.claimAttempts; attempt++ {
		var claimed int64
		err = s.store.WithinTx(ctx, func(tx ParkingTx) error {
			var txErr error
			reservation, claimed, txErr = s.reserveTx(ctx, tx, params, vehicleNumber, lost)
			return txErr
		})
		if errors.Is(err, errClaimLost) {
			logger.WarnContext(ctx, "spot claim lost, retrying", "attempt", attempt, "spot_id", claimed)
			lost = append(lost, claimed)
			continue
		}
		break
	}
	if errors.Is(err, errClaimLost) {
		err = ErrLotFull
	}
	if err != nil {
		err = mapStoreError(err)
		reservation = Reservation{}
		return
	}
	lotID = params.LotID
	return
}

func (s *ReservationService) reserveTx(ctx context.Context, tx ParkingTx, params ReserveParams, vehicleNumber string, exclude []int64) (Reservation, int64, error) {
	lot, err := tx.GetLot(ctx, params.LotID)
	if err != nil {
		return Reservation{}, 0, err
	}
	if !lot.IsActive {
		return Reservation{}, 0, ErrLotInactive
	}

	now := s.now()
	if !lot.Hours.Contains(now.In(s.location)) {
		return Reservation{}, 0, ErrOutsideOperatingHours
	}

	spot, err := tx.FindAvailableSpot(ctx, lot.ID, exclude)
	if err != nil {
		if isNotFound(err) {
			return Reservation{}, 0, ErrLotFull
		}
		return Reservation{}, 0, err
	}

	if _, err = tx.FindActiveReservation(ctx, vehicleNumber); err == nil {
		return Reservation{}, 0, ErrVehicleAlreadyParked
	} else if !isNotFound(err) {
		return Reservation{}, 0, err
	}

	user, err := tx.GetUser(ctx, params.UserID)
	if err != nil {
		return Reservation{}, 0, err
	}
	if !user.IsActive {
		return Reservation{}, 0, ErrAccountInactive
	}

	if err = ensureVehicle(ctx, tx, user.ID, vehicleNumber, params.Vehicle, now); err != nil {
		return Reservation{}, 0, err
	}

	reservation := Reservation{
		SpotID:        &spot.ID,
		UserID:        user.ID,
		VehicleNumber: vehicleNumber,
		ParkingAt:     now,
		CostPerHour:   lot.PricePerHour,
		Status:        ReservationActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	id, err := tx.CreateReservation(ctx, reservation)
	if err != nil {
		var dup *persistence.DuplicateError
		if errors.As(err, &dup) && dup.Column == "vehicle_number" {
			return Reservation{}, 0, ErrVehicleAlreadyParked
		}
		if errors.As(err, &dup) && dup.Column == "spot_id" {
			return Reservation{}, spot.ID, errClaimLost
		}
		return Reservation{}, 0, err
	}

	claimed, err := tx.ClaimSpot(ctx, spot.ID, now)
	if err != nil {
		return Reservation{}, 0, err
	}
	if !claimed {
		return Reservation{}, spot.ID, errClaimLost
	}

	reservation, err = tx.GetReservation(ctx, id)
	return reservation, spot.ID, err
}

// ensureVehicle creates the vehicle on first use. Vehicles registered to another user are rejected.
func ensureVehicle(ctx context.Context, tx ParkingTx, userID, number string, input VehicleInput, now time.Time) error {
	vehicle, err := tx.GetVehicle(ctx, number)
	if err == nil {
		if vehicle.UserID != userID {
			return fieldError("vehicle_number", "vehicle is registered to another user")
		}
		return nil
	}
	if !isNotFound(err) {
		return err
	}
	return tx.CreateVehicle(ctx, Vehicle{
		VehicleNumber: number,
		UserID:        userID,
		Brand:         strings.TrimSpace(input.Brand),
		Model:         strings.TrimSpace(input.Model),
		Color:         strings.TrimSpace(input.Color),
		FuelType:      strings.TrimSpace(input.FuelType),
		CreatedAt:     now,
	})
}

// GetReservation returns a reservation to its owner or an administrator.
func (s *ReservationService) GetReservation(ctx context.Context, principal Principal, reservationID int64) (Reservation, error) {
	if s == nil {
		return Reservation{}, fmt.Errorf("ReservationService is nil")
	}
	if principal.UserID == "" {
		return Reservation{}, ErrUnauthenticated
	}
	reservation, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		return Reservation{}, mapStoreError(err)
	}
	if err := authorizeUser(principal, reservation.UserID); err != nil {
		return Reservation{}, err
	}
	return reservation, nil
}

// QuoteRelease prices ending the reservation now without changing any stored state.
// The returned token lets SettlePayment charge exactly the quoted amount until it expires.
func (s *ReservationService) QuoteRelease(ctx context.Context, principal Principal, reservationID int64) (quote ReleaseQuote, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "QuoteRelease",
		"principal_id", principal.UserID,
		"reservation_id", reservationID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to quote release", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("duration_hours", quote.DurationHours.String(), "estimated_cost", quote.EstimatedCost.String()).
			InfoContext(ctx, "release quoted")
	}()

	var reservation Reservation
	reservation, err = s.GetReservation(ctx, principal, reservationID)
	if err != nil {
		return
	}
	if reservation.Status != ReservationActive || reservation.LeavingAt != nil {
		err = ErrReservationNotActive
		return
	}

	leavingAt := s.now()
	hours := DurationHours(reservation.ParkingAt, leavingAt)
	quote = s.quotes.Store(ReleaseQuote{
		Token:         s.tokenGenerator(),
		ReservationID: reservation.ID,
		ParkingAt:     reservation.ParkingAt,
		LeavingAt:     leavingAt,
		DurationHours: hours,
		CostPerHour:   reservation.CostPerHour,
		EstimatedCost: EstimateCost(hours, reservation.CostPerHour),
	})
	return
}

// CancelRelease abandons a pending release. The reservation stays active.
func (s *ReservationService) CancelRelease(ctx context.Context, principal Principal, reservationID int64) (err error) {
	if s == nil {
		return fmt.Errorf("ReservationService is nil")
	}

	logger := s.loggerWith(ctx, "CancelRelease",
		"principal_id", principal.UserID,
		"reservation_id", reservationID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to cancel release", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "release cancelled")
	}()

	if _, err = s.GetReservation(ctx, principal, reservationID); err != nil {
		return err
	}
	s.quotes.Forget(reservationID)
	return nil
}

// SettlePayment ends an active reservation and records its payment. Ending
// the reservation, freeing the spot, booking spot and lot revenue and
// creating the payment commit together or not at all.
func (s *ReservationService) SettlePayment(ctx context.Context, params SettlePaymentParams) (settlement Settlement, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "SettlePayment",
		"principal_id", params.Principal.UserID,
		"reservation_id", params.ReservationID,
		"payment_method", params.Method.String(),
	)
	var lotID int64
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to settle payment", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("payment_id", settlement.Payment.ID, "amount", settlement.Payment.Amount.String()).
			InfoContext(ctx, "payment settled")
		publishAvailability(ctx, s.store, s.publisher, s.logger, lotID)
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthenticated
		return
	}

	vErr := &ValidationError{}
	if !params.Method.Valid() {
		vErr.add("payment_method", "payment method must be one of cash, card, upi, net_banking")
	}

	var amount decimal.Decimal
	if params.QuoteToken != "" {
		quote, ok := s.quotes.Get(params.QuoteToken)
		if !ok || quote.ReservationID != params.ReservationID {
			err = ErrQuoteExpired
			return
		}
		amount = quote.EstimatedCost
	} else if params.Amount.Valid {
		amount = RoundMoney(params.Amount.Decimal)
	} else {
		vErr.add("amount", "amount is required without a quote token")
	}
	if _, missing := vErr.FieldErrors["amount"]; !missing {
		if msg := moneyProblem("amount", amount); msg != "" {
			vErr.add("amount", msg)
		}
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.store.WithinTx(ctx, func(tx ParkingTx) error {
		reservation, txErr := tx.GetReservation(ctx, params.ReservationID)
		if txErr != nil {
			return txErr
		}
		if txErr = authorizeUser(params.Principal, reservation.UserID); txErr != nil {
			return txErr
		}
		if reservation.Status != ReservationActive || reservation.LeavingAt != nil {
			return ErrReservationNotActive
		}
		if reservation.SpotID == nil {
			return fmt.Errorf("%w: reservation %d has no spot", ErrConflict, reservation.ID)
		}

		now := s.now()
		completed, txErr := tx.CompleteReservation(ctx, reservation.ID, now)
		if txErr != nil {
			return txErr
		}
		if !completed {
			return ErrReservationNotActive
		}

		spot, txErr := tx.GetSpot(ctx, *reservation.SpotID)
		if txErr != nil {
			return txErr
		}
		released, txErr := tx.ReleaseSpot(ctx, spot.ID, amount, now)
		if txErr != nil {
			return txErr
		}
		if !released {
			return fmt.Errorf("%w: spot %s is not occupied", ErrConflict, spot.SpotNumber)
		}
		if txErr = tx.AddLotRevenue(ctx, spot.LotID, amount, now); txErr != nil {
			return txErr
		}

		payment := Payment{
			ReservationID: reservation.ID,
			Amount:        amount,
			Method:        params.Method,
			Status:        PaymentPaid,
			PaidAt:        now,
		}
		if payment.ID, txErr = tx.CreatePayment(ctx, payment); txErr != nil {
			return txErr
		}
		if reservation, txErr = tx.GetReservation(ctx, reservation.ID); txErr != nil {
			return txErr
		}

		settlement = Settlement{Reservation: reservation, Payment: payment}
		lotID = spot.LotID
		return nil
	})
	if err != nil {
		err = mapStoreError(err)
		settlement = Settlement{}
		lotID = 0
		return
	}

	s.quotes.Forget(params.ReservationID)
	return
}

func authorizeUser(principal Principal, userID string) error {
	if principal.UserID == "" {
		return ErrUnauthenticated
	}
	if principal.IsAdmin || principal.UserID == userID {
		return nil
	}
	return ErrUnauthorized
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}
