package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var noCharge = decimal.NewNullDecimal(decimal.Zero)

type manualClock struct {
	mu      sync.Mutex
	current time.Time
}

func newManualClock(start time.Time) *manualClock {
	return &manualClock{current: start}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

type reservationHarness struct {
	store    *parkingStoreStub
	clock    *manualClock
	lots     *LotService
	svc      *ReservationService
	recorder *availabilityRecorder
	user     Principal
}

func newReservationHarness(t *testing.T) *reservationHarness {
	t.Helper()

	clock := newManualClock(time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC))
	store := newParkingStoreStub()
	recorder := &availabilityRecorder{}
	store.addUser(User{ID: "@driver100", Role: RoleUser, IsActive: true})
	store.addUser(User{ID: "@other200", Role: RoleUser, IsActive: true})

	tokens := 0
	nextToken := func() string {
		tokens++
		return "quote-" + string(rune('a'+tokens-1))
	}

	return &reservationHarness{
		store:    store,
		clock:    clock,
		lots:     NewLotService(store, clock.Now),
		svc:      NewReservationServiceWithLogger(store, recorder, nextToken, clock.Now, ReservationConfig{Location: time.UTC, QuoteTTL: 10 * time.Minute}, nil),
		recorder: recorder,
		user:     Principal{UserID: "@driver100"},
	}
}

func (h *reservationHarness) createLot(t *testing.T, spots int, price string) ParkingLot {
	t.Helper()
	input := validLotInput(spots)
	input.PricePerHour = decimal.RequireFromString(price)
	lot, err := h.lots.CreateLot(context.Background(), CreateLotParams{Principal: adminPrincipal, Input: input})
	if err != nil {
		t.Fatalf("CreateLot failed: %v", err)
	}
	return lot
}

func (h *reservationHarness) reserve(lotID int64, userID, vehicle string) (Reservation, error) {
	return h.svc.Reserve(context.Background(), ReserveParams{
		Principal: Principal{UserID: userID},
		LotID:     lotID,
		UserID:    userID,
		Vehicle:   VehicleInput{VehicleNumber: vehicle, Brand: "Maruti"},
	})
}

func TestReservationService_Reserve(t *testing.T) {
	t.Parallel()

	t.Run("claims a spot and snapshots the price", func(t *testing.T) {
		t.Parallel()
		h := newReservationHarness(t)
		lot := h.createLot(t, 2, "10")

		reservation, err := h.reserve(lot.ID, "@driver100", " ka 01 ab 1234 ")
		if err != nil {
			t.Fatalf("Reserve failed: %v", err)
		}
		if reservation.VehicleNumber != "KA01AB1234" {
			t.Fatalf("expected normalised vehicle number, got %q", reservation.VehicleNumber)
		}
		if reservation.Status != ReservationActive || reservation.LeavingAt != nil {
			t.Fatalf("expected active reservation, got %+v", reservation)
		}
		if !reservation.CostPerHour.Equal(decimal.NewFromInt(10)) {
			t.Fatalf("expected price snapshot 10, got %s", reservation.CostPerHour)
		}
		if !reservation.ParkingAt.Equal(h.clock.Now()) {
			t.Fatalf("expected parking time now, got %s", reservation.ParkingAt)
		}

		spot, err := h.store.GetSpot(context.Background(), *reservation.SpotID)
		if err != nil {
			t.Fatalf("GetSpot failed: %v", err)
		}
		if spot.Status != SpotOccupied {
			t.Fatalf("expected claimed spot to be occupied")
		}
		if vehicle := h.store.snapshot().vehicles["KA01AB1234"]; vehicle.UserID != "@driver100" || vehicle.Brand != "Maruti" {
			t.Fatalf("expected vehicle to be created for the user, got %+v", vehicle)
		}
		if last, ok := h.recorder.last(); !ok || last.Occupied != 1 || last.Available != 1 {
			t.Fatalf("expected availability update, got %+v", last)
		}
	})

	t.Run("rejects a vehicle that is already parked", func(t *testing.T) {
		t.Parallel()
		h := newReservationHarness(t)
		lot := h.createLot(t, 3, "10")

		if _, err := h.reserve(lot.ID, "@driver100", "KA01"); err != nil {
			t.Fatalf("Reserve failed: %v", err)
		}
		if _, err := h.reserve(lot.ID, "@driver100", "ka01"); !errors.Is(err, ErrVehicleAlreadyParked) {
			t.Fatalf("expected ErrVehicleAlreadyParked, got %v", err)
		}
		if _, err := h.reserve(lot.ID, "@driver100", "KA02"); err != nil {
			t.Fatalf("expected a second vehicle of the same user to park, got %v", err)
		}
	})

	t.Run("reports a full lot", func(t *testing.T) {
		t.Parallel()
		h := newReservationHarness(t)
		lot := h.createLot(t, 1, "10")

		if _, err := h.reserve(lot.ID, "@driver100", "KA01"); err != nil {
			t.Fatalf("Reserve failed: %v", err)
		}
		if _, err := h.reserve(lot.ID, "@other200", "KA02"); !errors.Is(err, ErrLotFull) {
			t.Fatalf("expected ErrLotFull, got %v", err)
		}
	})

	t.Run("respects lot state and opening hours", func(t *testing.T) {
		t.Parallel()
		h := newReservationHarness(t)
		lot := h.createLot(t, 1, "10")

		open, closing := "08:00", "09:30"
		if _, err := h.lots.UpdateLot(context.Background(), UpdateLotParams{
			Principal: adminPrincipal, LotID: lot.ID,
			Update: LotUpdate{OpenTime: &open, CloseTime: &closing},
		}); err != nil {
			t.Fatalf("UpdateLot failed: %v", err)
		}
		if _, err := h.reserve(lot.ID, "@driver100", "KA01"); !errors.Is(err, ErrOutsideOperatingHours) {
			t.Fatalf("expected ErrOutsideOperatingHours at 10:00, got %v", err)
		}

		inactive := false
		if _, err := h.lots.UpdateLot(context.Background(), UpdateLotParams{
			Principal: adminPrincipal, LotID: lot.ID,
			Update: LotUpdate{ClearHours: true, IsActive: &inactive},
		}); err != nil {
			t.Fatalf("UpdateLot failed: %v", err)
		}
		if _, err := h.reserve(lot.ID, "@driver100", "KA01"); !errors.Is(err, ErrLotInactive) {
			t.Fatalf("expected ErrLotInactive, got %v", err)
		}
		if _, err := h.reserve(999, "@driver100", "KA01"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for unknown lot, got %v", err)
		}
	})

	t.Run("only owners and administrators reserve", func(t *testing.T) {
		t.Parallel()
		h := newReservationHarness(t)
		lot := h.createLot(t, 2, "10")

		_, err := h.svc.Reserve(context.Background(), ReserveParams{
			Principal: Principal{UserID: "@other200"},
			LotID:     lot.ID,
			UserID:    "@driver100",
			Vehicle:   VehicleInput{VehicleNumber: "KA01"},
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}

		reservation, err := h.svc.Reserve(context.Background(), ReserveParams{
			Principal: adminPrincipal,
			LotID:     lot.ID,
			UserID:    "@driver100",
			Vehicle:   VehicleInput{VehicleNumber: "KA01"},
		})
		if err != nil {
			t.Fatalf("expected admin to reserve on behalf of a user, got %v", err)
		}
		if reservation.UserID != "@driver100" {
			t.Fatalf("expected reservation owned by the user, got %s", reservation.UserID)
		}
	})

	t.Run("rejects vehicles registered to another user", func(t *testing.T) {
		t.Parallel()
		h := newReservationHarness(t)
		lot := h.createLot(t, 2, "10")

		first, err := h.reserve(lot.ID, "@driver100", "KA01")
		if err != nil {
			t.Fatalf("Reserve failed: %v", err)
		}
		if _, err := h.svc.SettlePayment(context.Background(), SettlePaymentParams{Principal: h.user, ReservationID: first.ID, Method: PaymentCash, Amount: noCharge}); err != nil {
			t.Fatalf("SettlePayment failed: %v", err)
		}

		_, err = h.reserve(lot.ID, "@other200", "KA01")
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["vehicle_number"] == "" {
			t.Fatalf("expected vehicle_number validation error, got %v", err)
		}
	})

	t.Run("retries after a lost claim", func(t *testing.T) {
		t.Parallel()
		h := newReservationHarness(t)
		lot := h.createLot(t, 2, "10")
		h.store.loseClaims = 1

		reservation, err := h.reserve(lot.ID, "@driver100", "KA01")
		if err != nil {
			t.Fatalf("Reserve failed: %v", err)
		}
		spots, _ := h.store.ListSpots(context.Background(), lot.ID)
		if *reservation.SpotID != spots[1].ID {
			t.Fatalf("expected the second spot after losing the first, got %d", *reservation.SpotID)
		}
		if len(h.store.snapshot().reservations) != 1 {
			t.Fatalf("expected the lost attempt to be rolled back")
		}
	})

	t.Run("gives up when every claim is lost", func(t *testing.T) {
		t.Parallel()
		h := newReservationHarness(t)
		lot := h.createLot(t, 1, "10")
		h.store.loseClaims = 1

		if _, err := h.reserve(lot.ID, "@driver100", "KA01"); !errors.Is(err, ErrLotFull) {
			t.Fatalf("expected ErrLotFull, got %v", err)
		}
		if len(h.store.snapshot().reservations) != 0 {
			t.Fatalf("expected no reservation to remain")
		}
	})
}

func TestReservationService_QuoteAndSettle(t *testing.T) {
	t.Parallel()

	t.Run("two hours at ten per hour", func(t *testing.T) {
		t.Parallel()
		h := newReservationHarness(t)
		lot := h.createLot(t, 1, "10.0")

		reservation, err := h.reserve(lot.ID, "@driver100", "KA01")
		if err != nil {
			t.Fatalf("Reserve failed: %v", err)
		}
		h.clock.Advance(2 * time.Hour)

		quote, err := h.svc.QuoteRelease(context.Background(), h.user, reservation.ID)
		if err != nil {
			t.Fatalf("QuoteRelease failed: %v", err)
		}
		if !quote.DurationHours.Equal(decimal.NewFromInt(2)) || !quote.EstimatedCost.Equal(decimal.NewFromInt(20)) {
			t.Fatalf("expected 2h and 20.00, got %sh and %s", quote.DurationHours, quote.EstimatedCost)
		}
		unchanged, _ := h.store.GetReservation(context.Background(), reservation.ID)
		if unchanged.LeavingAt != nil {
			t.Fatalf("expected quote to leave the reservation untouched")
		}

		settlement, err := h.svc.SettlePayment(context.Background(), SettlePaymentParams{
			Principal:     h.user,
			ReservationID: reservation.ID,
			Method:        PaymentUPI,
			QuoteToken:    quote.Token,
		})
		if err != nil {
			t.Fatalf("SettlePayment failed: %v", err)
		}
		if settlement.Reservation.Status != ReservationCompleted || settlement.Reservation.LeavingAt == nil {
			t.Fatalf("expected completed reservation, got %+v", settlement.Reservation)
		}
		if !settlement.Payment.Amount.Equal(decimal.NewFromInt(20)) || settlement.Payment.Status != PaymentPaid {
			t.Fatalf("unexpected payment %+v", settlement.Payment)
		}

		spot, _ := h.store.GetSpot(context.Background(), *reservation.SpotID)
		if spot.Status != SpotAvailable || !spot.Revenue.Equal(decimal.NewFromInt(20)) {
			t.Fatalf("expected freed spot with revenue 20, got %+v", spot)
		}
		reloaded, _ := h.store.GetLot(context.Background(), lot.ID)
		if !reloaded.Revenue.Equal(decimal.NewFromInt(20)) {
			t.Fatalf("expected lot revenue 20, got %s", reloaded.Revenue)
		}

		if _, err := h.svc.SettlePayment(context.Background(), SettlePaymentParams{
			Principal: h.user, ReservationID: reservation.ID, Method: PaymentUPI, QuoteToken: quote.Token,
		}); !errors.Is(err, ErrQuoteExpired) {
			t.Fatalf("expected a settled quote to be consumed, got %v", err)
		}
		if _, err := h.svc.SettlePayment(context.Background(), SettlePaymentParams{
			Principal: h.user, ReservationID: reservation.ID, Method: PaymentUPI, Amount: noCharge,
		}); !errors.Is(err, ErrReservationNotActive) {
			t.Fatalf("expected ErrReservationNotActive, got %v", err)
		}
	})

	t.Run("zero duration round trip", func(t *testing.T) {
		t.Parallel()
		h := newReservationHarness(t)
		lot := h.createLot(t, 1, "10")

		reservation, err := h.reserve(lot.ID, "@driver100", "KA01")
		if err != nil {
			t.Fatalf("Reserve failed: %v", err)
		}
		quote, err := h.svc.QuoteRelease(context.Background(), h.user, reservation.ID)
		if err != nil {
			t.Fatalf("QuoteRelease failed: %v", err)
		}
		if !quote.DurationHours.IsZero() || !quote.EstimatedCost.IsZero() {
			t.Fatalf("expected zero quote, got %s / %s", quote.DurationHours, quote.EstimatedCost)
		}
		if _, err := h.svc.SettlePayment(context.Background(), SettlePaymentParams{Principal: h.user, ReservationID: reservation.ID, Method: PaymentCash, Amount: noCharge}); err != nil {
			t.Fatalf("SettlePayment failed: %v", err)
		}
		availability, _ := h.store.LotAvailability(context.Background(), lot.ID)
		if availability.Available != 1 {
			t.Fatalf("expected spot to be available again")
		}
	})

	t.Run("settlement is all or nothing", func(t *testing.T) {
		t.Parallel()

		for _, method := range []string{"ReleaseSpot", "AddLotRevenue", "CreatePayment"} {
			h := newReservationHarness(t)
			lot := h.createLot(t, 1, "10")
			reservation, err := h.reserve(lot.ID, "@driver100", "KA01")
			if err != nil {
				t.Fatalf("Reserve failed: %v", err)
			}
			h.clock.Advance(time.Hour)
			h.store.failOn[method] = errors.New("injected failure")

			_, err = h.svc.SettlePayment(context.Background(), SettlePaymentParams{
				Principal: h.user, ReservationID: reservation.ID, Amount: decimal.NewNullDecimal(decimal.NewFromInt(10)), Method: PaymentCard,
			})
			if !errors.Is(err, ErrPersistence) {
				t.Fatalf("%s: expected ErrPersistence, got %v", method, err)
			}

			state := h.store.snapshot()
			if r := state.reservations[reservation.ID]; r.LeavingAt != nil || r.Status != ReservationActive {
				t.Fatalf("%s: expected reservation to stay active", method)
			}
			if s := state.spots[*reservation.SpotID]; s.Status != SpotOccupied || !s.Revenue.IsZero() {
				t.Fatalf("%s: expected spot to stay occupied without revenue", method)
			}
			if l := state.lots[lot.ID]; !l.Revenue.IsZero() {
				t.Fatalf("%s: expected lot revenue to stay zero", method)
			}
			if len(state.payments) != 0 {
				t.Fatalf("%s: expected no payment", method)
			}
		}
	})

	t.Run("expired and foreign quotes are refused", func(t *testing.T) {
		t.Parallel()
		h := newReservationHarness(t)
		lot := h.createLot(t, 2, "10")

		first, _ := h.reserve(lot.ID, "@driver100", "KA01")
		second, _ := h.reserve(lot.ID, "@driver100", "KA02")

		quote, err := h.svc.QuoteRelease(context.Background(), h.user, first.ID)
		if err != nil {
			t.Fatalf("QuoteRelease failed: %v", err)
		}
		if _, err := h.svc.SettlePayment(context.Background(), SettlePaymentParams{
			Principal: h.user, ReservationID: second.ID, Method: PaymentCash, QuoteToken: quote.Token,
		}); !errors.Is(err, ErrQuoteExpired) {
			t.Fatalf("expected quote of another reservation to be refused, got %v", err)
		}

		h.clock.Advance(11 * time.Minute)
		if _, err := h.svc.SettlePayment(context.Background(), SettlePaymentParams{
			Principal: h.user, ReservationID: first.ID, Method: PaymentCash, QuoteToken: quote.Token,
		}); !errors.Is(err, ErrQuoteExpired) {
			t.Fatalf("expected ErrQuoteExpired, got %v", err)
		}
	})

	t.Run("cancel keeps the reservation active", func(t *testing.T) {
		t.Parallel()
		h := newReservationHarness(t)
		lot := h.createLot(t, 1, "10")
		reservation, _ := h.reserve(lot.ID, "@driver100", "KA01")

		quote, err := h.svc.QuoteRelease(context.Background(), h.user, reservation.ID)
		if err != nil {
			t.Fatalf("QuoteRelease failed: %v", err)
		}
		if err := h.svc.CancelRelease(context.Background(), h.user, reservation.ID); err != nil {
			t.Fatalf("CancelRelease failed: %v", err)
		}
		if _, err := h.svc.SettlePayment(context.Background(), SettlePaymentParams{
			Principal: h.user, ReservationID: reservation.ID, Method: PaymentCash, QuoteToken: quote.Token,
		}); !errors.Is(err, ErrQuoteExpired) {
			t.Fatalf("expected cancelled quote to be gone, got %v", err)
		}
		current, _ := h.store.GetReservation(context.Background(), reservation.ID)
		spot, _ := h.store.GetSpot(context.Background(), *reservation.SpotID)
		if current.Status != ReservationActive || spot.Status != SpotOccupied {
			t.Fatalf("expected reservation active and spot occupied after cancel")
		}
	})

	t.Run("validates payment input and ownership", func(t *testing.T) {
		t.Parallel()
		h := newReservationHarness(t)
		lot := h.createLot(t, 1, "10")
		reservation, _ := h.reserve(lot.ID, "@driver100", "KA01")

		_, err := h.svc.SettlePayment(context.Background(), SettlePaymentParams{
			Principal: h.user, ReservationID: reservation.ID, Amount: decimal.NewNullDecimal(decimal.NewFromInt(-1)), Method: PaymentMethod(42),
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["payment_method"] == "" || vErr.FieldErrors["amount"] == "" {
			t.Fatalf("expected amount and method validation errors, got %v", err)
		}

		if _, err := h.svc.QuoteRelease(context.Background(), Principal{UserID: "@other200"}, reservation.ID); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized for a stranger, got %v", err)
		}
		if _, err := h.svc.SettlePayment(context.Background(), SettlePaymentParams{
			Principal: Principal{UserID: "@other200"}, ReservationID: reservation.ID, Method: PaymentCash, Amount: noCharge,
		}); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized for a stranger, got %v", err)
		}
	})

	t.Run("requires an amount without a quote token", func(t *testing.T) {
		t.Parallel()
		h := newReservationHarness(t)
		lot := h.createLot(t, 1, "10")
		reservation, _ := h.reserve(lot.ID, "@driver100", "KA01")
		h.clock.Advance(5 * time.Hour)

		_, err := h.svc.SettlePayment(context.Background(), SettlePaymentParams{
			Principal: h.user, ReservationID: reservation.ID, Method: PaymentCash,
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["amount"] == "" {
			t.Fatalf("expected amount validation error, got %v", err)
		}

		state := h.store.snapshot()
		if r := state.reservations[reservation.ID]; r.Status != ReservationActive || r.LeavingAt != nil {
			t.Fatalf("expected reservation to stay active, got %+v", r)
		}
		if len(state.payments) != 0 {
			t.Fatalf("expected no payment to be recorded")
		}
	})

	t.Run("refuses amounts above the money cap", func(t *testing.T) {
		t.Parallel()
		h := newReservationHarness(t)
		lot := h.createLot(t, 1, "10")
		reservation, _ := h.reserve(lot.ID, "@driver100", "KA01")

		_, err := h.svc.SettlePayment(context.Background(), SettlePaymentParams{
			Principal: h.user, ReservationID: reservation.ID, Method: PaymentCash,
			Amount: decimal.NewNullDecimal(decimal.New(1, 20)),
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["amount"] == "" {
			t.Fatalf("expected amount validation error, got %v", err)
		}
		if l := h.store.snapshot().lots[lot.ID]; !l.Revenue.IsZero() {
			t.Fatalf("expected lot revenue to stay zero, got %s", l.Revenue)
		}

		settlement, err := h.svc.SettlePayment(context.Background(), SettlePaymentParams{
			Principal: h.user, ReservationID: reservation.ID, Method: PaymentCash,
			Amount: decimal.NewNullDecimal(MaxMoney),
		})
		if err != nil {
			t.Fatalf("expected the cap itself to be accepted, got %v", err)
		}
		if !settlement.Payment.Amount.Equal(MaxMoney) {
			t.Fatalf("unexpected payment %s", settlement.Payment.Amount)
		}
	})
}
