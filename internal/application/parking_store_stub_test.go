package application

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// parkingStoreStub is an in-memory ParkingStore. WithinTx works on a copy of
// the state and only keeps it when fn succeeds.
type parkingStoreStub struct {
	mu    sync.Mutex
	state parkingState

	// failOn makes the named ParkingTx method return the error.
	failOn map[string]error
	// loseClaims makes the first n ClaimSpot calls report a lost race.
	loseClaims int
	txCount    int
}

type parkingState struct {
	lots         map[int64]ParkingLot
	spots        map[int64]ParkingSpot
	users        map[string]User
	vehicles     map[string]Vehicle
	reservations map[int64]Reservation
	payments     map[int64]Payment
	nextID       int64
}

func newParkingStoreStub() *parkingStoreStub {
	return &parkingStoreStub{
		state: parkingState{
			lots:         map[int64]ParkingLot{},
			spots:        map[int64]ParkingSpot{},
			users:        map[string]User{},
			vehicles:     map[string]Vehicle{},
			reservations: map[int64]Reservation{},
			payments:     map[int64]Payment{},
		},
		failOn: map[string]error{},
	}
}

func (s parkingState) clone() parkingState {
	return parkingState{
		lots:         maps.Clone(s.lots),
		spots:        maps.Clone(s.spots),
		users:        maps.Clone(s.users),
		vehicles:     maps.Clone(s.vehicles),
		reservations: maps.Clone(s.reservations),
		payments:     maps.Clone(s.payments),
		nextID:       s.nextID,
	}
}

func (s *parkingStoreStub) addUser(user User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.users[user.ID] = user
}

func (s *parkingStoreStub) snapshot() parkingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *parkingStoreStub) GetLot(ctx context.Context, id int64) (ParkingLot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&parkingTxStub{state: &s.state}).GetLot(ctx, id)
}

func (s *parkingStoreStub) ListLots(ctx context.Context) ([]ParkingLot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ParkingLot, 0, len(s.state.lots))
	for _, lot := range s.state.lots {
		out = append(out, lot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *parkingStoreStub) ListSpots(ctx context.Context, lotID int64) ([]ParkingSpot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return spotsOf(s.state, lotID), nil
}

func (s *parkingStoreStub) GetSpot(ctx context.Context, id int64) (ParkingSpot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&parkingTxStub{state: &s.state}).GetSpot(ctx, id)
}

func (s *parkingStoreStub) GetReservation(ctx context.Context, id int64) (Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&parkingTxStub{state: &s.state}).GetReservation(ctx, id)
}

func (s *parkingStoreStub) GetVehicle(ctx context.Context, number string) (Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&parkingTxStub{state: &s.state}).GetVehicle(ctx, number)
}

func (s *parkingStoreStub) LotAvailability(ctx context.Context, lotID int64) (LotAvailability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.lots[lotID]; !ok {
		return LotAvailability{}, ErrNotFound
	}
	availability := LotAvailability{LotID: lotID}
	for _, spot := range spotsOf(s.state, lotID) {
		availability.Capacity++
		if spot.Status == SpotOccupied {
			availability.Occupied++
		} else {
			availability.Available++
		}
	}
	return availability, nil
}

func (s *parkingStoreStub) WithinTx(ctx context.Context, fn func(tx ParkingTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++

	working := s.state.clone()
	tx := &parkingTxStub{state: &working, store: s}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = working
	return nil
}

func spotsOf(state parkingState, lotID int64) []ParkingSpot {
	var out []ParkingSpot
	for _, spot := range state.spots {
		if spot.LotID == lotID {
			out = append(out, spot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type parkingTxStub struct {
	state *parkingState
	store *parkingStoreStub
}

func (t *parkingTxStub) fail(method string) error {
	if t.store == nil {
		return nil
	}
	return t.store.failOn[method]
}

func (t *parkingTxStub) id() int64 {
	t.state.nextID++
	return t.state.nextID
}

func (t *parkingTxStub) CreateLot(ctx context.Context, lot ParkingLot) (int64, error) {
	if err := t.fail("CreateLot"); err != nil {
		return 0, err
	}
	lot.ID = t.id()
	t.state.lots[lot.ID] = lot
	return lot.ID, nil
}

func (t *parkingTxStub) GetLot(ctx context.Context, id int64) (ParkingLot, error) {
	lot, ok := t.state.lots[id]
	if !ok {
		return ParkingLot{}, ErrNotFound
	}
	return lot, nil
}

func (t *parkingTxStub) UpdateLot(ctx context.Context, lot ParkingLot) error {
	if _, ok := t.state.lots[lot.ID]; !ok {
		return ErrNotFound
	}
	t.state.lots[lot.ID] = lot
	return nil
}

func (t *parkingTxStub) DeleteLot(ctx context.Context, id int64) error {
	delete(t.state.lots, id)
	for spotID, spot := range t.state.spots {
		if spot.LotID == id {
			t.detachSpot(spotID)
			delete(t.state.spots, spotID)
		}
	}
	return nil
}

func (t *parkingTxStub) detachSpot(spotID int64) {
	for id, reservation := range t.state.reservations {
		if reservation.SpotID != nil && *reservation.SpotID == spotID {
			reservation.SpotID = nil
			t.state.reservations[id] = reservation
		}
	}
}

func (t *parkingTxStub) AdjustLotCapacity(ctx context.Context, lotID int64, delta int, at time.Time) error {
	lot, ok := t.state.lots[lotID]
	if !ok {
		return ErrNotFound
	}
	lot.MaximumNumberOfSpots += delta
	lot.UpdatedAt = at
	t.state.lots[lotID] = lot
	return nil
}

func (t *parkingTxStub) AddLotRevenue(ctx context.Context, lotID int64, amount decimal.Decimal, at time.Time) error {
	if err := t.fail("AddLotRevenue"); err != nil {
		return err
	}
	lot, ok := t.state.lots[lotID]
	if !ok {
		return ErrNotFound
	}
	lot.Revenue = lot.Revenue.Add(amount)
	lot.UpdatedAt = at
	t.state.lots[lotID] = lot
	return nil
}

func (t *parkingTxStub) CountOccupiedSpots(ctx context.Context, lotID int64) (int, error) {
	count := 0
	for _, spot := range spotsOf(*t.state, lotID) {
		if spot.Status == SpotOccupied {
			count++
		}
	}
	return count, nil
}

func (t *parkingTxStub) CreateSpot(ctx context.Context, spot ParkingSpot) (int64, error) {
	if err := t.fail("CreateSpot"); err != nil {
		return 0, err
	}
	spot.ID = t.id()
	t.state.spots[spot.ID] = spot
	return spot.ID, nil
}

func (t *parkingTxStub) GetSpot(ctx context.Context, id int64) (ParkingSpot, error) {
	spot, ok := t.state.spots[id]
	if !ok {
		return ParkingSpot{}, ErrNotFound
	}
	return spot, nil
}

func (t *parkingTxStub) UpdateSpot(ctx context.Context, spot ParkingSpot) error {
	if _, ok := t.state.spots[spot.ID]; !ok {
		return ErrNotFound
	}
	for id, other := range t.state.spots {
		if id != spot.ID && other.SpotNumber == spot.SpotNumber {
			return ErrAlreadyExists
		}
	}
	t.state.spots[spot.ID] = spot
	return nil
}

func (t *parkingTxStub) DeleteSpot(ctx context.Context, id int64) error {
	if _, ok := t.state.spots[id]; !ok {
		return ErrNotFound
	}
	t.detachSpot(id)
	delete(t.state.spots, id)
	return nil
}

func (t *parkingTxStub) FindAvailableSpot(ctx context.Context, lotID int64, exclude []int64) (ParkingSpot, error) {
	for _, spot := range spotsOf(*t.state, lotID) {
		if spot.Status != SpotAvailable {
			continue
		}
		skip := false
		for _, id := range exclude {
			skip = skip || id == spot.ID
		}
		if !skip {
			return spot, nil
		}
	}
	return ParkingSpot{}, ErrNotFound
}

func (t *parkingTxStub) ClaimSpot(ctx context.Context, spotID int64, at time.Time) (bool, error) {
	if t.store != nil && t.store.loseClaims > 0 {
		t.store.loseClaims--
		return false, nil
	}
	spot, ok := t.state.spots[spotID]
	if !ok || spot.Status != SpotAvailable {
		return false, nil
	}
	spot.Status = SpotOccupied
	spot.UpdatedAt = at
	t.state.spots[spotID] = spot
	return true, nil
}

func (t *parkingTxStub) ReleaseSpot(ctx context.Context, spotID int64, revenue decimal.Decimal, at time.Time) (bool, error) {
	if err := t.fail("ReleaseSpot"); err != nil {
		return false, err
	}
	spot, ok := t.state.spots[spotID]
	if !ok || spot.Status != SpotOccupied {
		return false, nil
	}
	spot.Status = SpotAvailable
	spot.IsCovered = false
	spot.Revenue = spot.Revenue.Add(revenue)
	spot.UpdatedAt = at
	t.state.spots[spotID] = spot
	return true, nil
}

func (t *parkingTxStub) GetUser(ctx context.Context, id string) (User, error) {
	user, ok := t.state.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (t *parkingTxStub) GetVehicle(ctx context.Context, number string) (Vehicle, error) {
	vehicle, ok := t.state.vehicles[number]
	if !ok {
		return Vehicle{}, ErrNotFound
	}
	return vehicle, nil
}

func (t *parkingTxStub) CreateVehicle(ctx context.Context, vehicle Vehicle) error {
	t.state.vehicles[vehicle.VehicleNumber] = vehicle
	return nil
}

func (t *parkingTxStub) UpdateVehicle(ctx context.Context, vehicle Vehicle) error {
	if _, ok := t.state.vehicles[vehicle.VehicleNumber]; !ok {
		return ErrNotFound
	}
	t.state.vehicles[vehicle.VehicleNumber] = vehicle
	return nil
}

func (t *parkingTxStub) DeleteVehicle(ctx context.Context, number string) error {
	if err := t.fail("DeleteVehicle"); err != nil {
		return err
	}
	if _, ok := t.state.vehicles[number]; !ok {
		return ErrNotFound
	}
	for id, reservation := range t.state.reservations {
		if reservation.VehicleNumber != number {
			continue
		}
		for paymentID, payment := range t.state.payments {
			if payment.ReservationID == id {
				delete(t.state.payments, paymentID)
			}
		}
		delete(t.state.reservations, id)
	}
	delete(t.state.vehicles, number)
	return nil
}

func (t *parkingTxStub) FindActiveReservation(ctx context.Context, vehicleNumber string) (Reservation, error) {
	for _, reservation := range t.state.reservations {
		if reservation.VehicleNumber == vehicleNumber && reservation.LeavingAt == nil {
			return reservation, nil
		}
	}
	return Reservation{}, ErrNotFound
}

func (t *parkingTxStub) CreateReservation(ctx context.Context, reservation Reservation) (int64, error) {
	if err := t.fail("CreateReservation"); err != nil {
		return 0, err
	}
	reservation.ID = t.id()
	t.state.reservations[reservation.ID] = reservation
	return reservation.ID, nil
}

func (t *parkingTxStub) GetReservation(ctx context.Context, id int64) (Reservation, error) {
	reservation, ok := t.state.reservations[id]
	if !ok {
		return Reservation{}, ErrNotFound
	}
	return reservation, nil
}

func (t *parkingTxStub) CompleteReservation(ctx context.Context, id int64, leavingAt time.Time) (bool, error) {
	reservation, ok := t.state.reservations[id]
	if !ok || reservation.LeavingAt != nil {
		return false, nil
	}
	reservation.LeavingAt = &leavingAt
	reservation.Status = ReservationCompleted
	reservation.UpdatedAt = leavingAt
	t.state.reservations[id] = reservation
	return true, nil
}

func (t *parkingTxStub) CreatePayment(ctx context.Context, payment Payment) (int64, error) {
	if err := t.fail("CreatePayment"); err != nil {
		return 0, err
	}
	payment.ID = t.id()
	t.state.payments[payment.ID] = payment
	return payment.ID, nil
}

// availabilityRecorder captures published availability updates.
type availabilityRecorder struct {
	mu      sync.Mutex
	updates []LotAvailability
}

func (r *availabilityRecorder) PublishAvailability(ctx context.Context, availability LotAvailability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, availability)
}

func (r *availabilityRecorder) last() (LotAvailability, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updates) == 0 {
		return LotAvailability{}, false
	}
	return r.updates[len(r.updates)-1], true
}
