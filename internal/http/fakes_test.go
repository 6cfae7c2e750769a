package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/example/parking-manager/internal/application"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBackend implements every service interface used by the handlers. Methods
// record their call and return err unless a more specific value is configured.
type fakeBackend struct {
	mu sync.Mutex

	principal  application.Principal
	sessionErr error

	authResult application.AuthenticateResult
	authErr    error

	user         application.User
	lot          application.ParkingLot
	availability application.LotAvailability
	reservation  application.Reservation
	quote        application.ReleaseQuote
	settlement   application.Settlement
	vehicle      application.Vehicle
	err          error

	calls         []string
	lastUserID    string
	lastQuery     string
	reserveParams application.ReserveParams
	settleParams  application.SettlePaymentParams
	lotCreate     application.CreateLotParams
	spotUpdate    application.UpdateSpotParams
	vehicleCreate application.RegisterVehicleParams
	vehicleUpdate application.UpdateVehicleParams
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) called(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (f *fakeBackend) ValidateSession(ctx context.Context, token string) (application.Principal, error) {
	f.record("ValidateSession")
	if f.sessionErr != nil {
		return application.Principal{}, f.sessionErr
	}
	return f.principal, nil
}

func (f *fakeBackend) Authenticate(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
	f.record("Authenticate")
	return f.authResult, f.authErr
}

func (f *fakeBackend) RefreshSession(ctx context.Context, params application.RefreshSessionParams) (application.RefreshSessionResult, error) {
	f.record("RefreshSession")
	return application.RefreshSessionResult{Session: f.authResult.Session}, f.err
}

func (f *fakeBackend) RevokeSession(ctx context.Context, token string) error {
	f.record("RevokeSession")
	return f.err
}

func (f *fakeBackend) Register(ctx context.Context, params application.RegisterParams) (application.User, error) {
	f.record("Register")
	return f.user, f.err
}

func (f *fakeBackend) GetUser(ctx context.Context, principal application.Principal, userID string) (application.User, error) {
	f.record("GetUser")
	f.mu.Lock()
	f.lastUserID = userID
	f.mu.Unlock()
	return f.user, f.err
}

func (f *fakeBackend) UpdateUser(ctx context.Context, params application.UpdateUserParams) (application.User, error) {
	f.record("UpdateUser")
	return f.user, f.err
}

func (f *fakeBackend) DeleteUser(ctx context.Context, principal application.Principal, userID string) error {
	f.record("DeleteUser")
	return f.err
}

func (f *fakeBackend) ListUsers(ctx context.Context, principal application.Principal) ([]application.User, error) {
	f.record("ListUsers")
	return []application.User{f.user}, f.err
}

func (f *fakeBackend) GetProfile(ctx context.Context, principal application.Principal, userID string) (application.Profile, error) {
	f.record("GetProfile")
	return application.Profile{UserID: userID}, f.err
}

func (f *fakeBackend) UpdateProfile(ctx context.Context, params application.UpdateProfileParams) (application.Profile, error) {
	f.record("UpdateProfile")
	return application.Profile{UserID: params.UserID, Bio: params.Bio, AvatarURL: params.AvatarURL}, f.err
}

func (f *fakeBackend) ScheduleDeletion(ctx context.Context, principal application.Principal, userID string) (application.User, error) {
	f.record("ScheduleDeletion")
	return f.user, f.err
}

func (f *fakeBackend) CancelDeletion(ctx context.Context, principal application.Principal, userID string) (application.User, error) {
	f.record("CancelDeletion")
	return f.user, f.err
}

func (f *fakeBackend) FilterUsers(ctx context.Context, principal application.Principal, query string) ([]application.User, error) {
	f.record("FilterUsers")
	f.mu.Lock()
	f.lastQuery = query
	f.mu.Unlock()
	return []application.User{f.user}, f.err
}

func (f *fakeBackend) UserReservationHistory(ctx context.Context, principal application.Principal, userID string) ([]application.ReservationHistoryEntry, error) {
	f.record("UserReservationHistory")
	return []application.ReservationHistoryEntry{{Reservation: f.reservation, SpotNumber: application.DeletedSpotLabel}}, f.err
}

func (f *fakeBackend) UserSpendSummary(ctx context.Context, principal application.Principal, userID string) (application.UserSpend, error) {
	f.record("UserSpendSummary")
	return application.UserSpend{UserID: userID}, f.err
}

func (f *fakeBackend) CreateLot(ctx context.Context, params application.CreateLotParams) (application.ParkingLot, error) {
	f.record("CreateLot")
	f.mu.Lock()
	f.lotCreate = params
	f.mu.Unlock()
	return f.lot, f.err
}

func (f *fakeBackend) UpdateLot(ctx context.Context, params application.UpdateLotParams) (application.ParkingLot, error) {
	f.record("UpdateLot")
	return f.lot, f.err
}

func (f *fakeBackend) DeleteLot(ctx context.Context, principal application.Principal, lotID int64) error {
	f.record("DeleteLot")
	return f.err
}

func (f *fakeBackend) UpdateSpot(ctx context.Context, params application.UpdateSpotParams) (application.ParkingSpot, error) {
	f.record("UpdateSpot")
	f.mu.Lock()
	f.spotUpdate = params
	f.mu.Unlock()
	return application.ParkingSpot{ID: params.SpotID, SpotNumber: "1-1", Status: application.SpotAvailable}, f.err
}

func (f *fakeBackend) GetVehicle(ctx context.Context, principal application.Principal, number string) (application.Vehicle, error) {
	f.record("GetVehicle")
	return f.vehicle, f.err
}

func (f *fakeBackend) RegisterVehicle(ctx context.Context, params application.RegisterVehicleParams) (application.Vehicle, error) {
	f.record("RegisterVehicle")
	f.mu.Lock()
	f.vehicleCreate = params
	f.mu.Unlock()
	return f.vehicle, f.err
}

func (f *fakeBackend) UpdateVehicle(ctx context.Context, params application.UpdateVehicleParams) (application.Vehicle, error) {
	f.record("UpdateVehicle")
	f.mu.Lock()
	f.vehicleUpdate = params
	f.mu.Unlock()
	return f.vehicle, f.err
}

func (f *fakeBackend) DeleteVehicle(ctx context.Context, principal application.Principal, number string) error {
	f.record("DeleteVehicle")
	return f.err
}

func (f *fakeBackend) DeleteSpot(ctx context.Context, principal application.Principal, spotID int64) error {
	f.record("DeleteSpot")
	return f.err
}

func (f *fakeBackend) GetLot(ctx context.Context, principal application.Principal, lotID int64) (application.ParkingLot, error) {
	f.record("GetLot")
	return f.lot, f.err
}

func (f *fakeBackend) ListLots(ctx context.Context, principal application.Principal) ([]application.ParkingLot, error) {
	f.record("ListLots")
	return []application.ParkingLot{f.lot}, f.err
}

func (f *fakeBackend) ListSpots(ctx context.Context, principal application.Principal, lotID int64) ([]application.ParkingSpot, error) {
	f.record("ListSpots")
	return nil, f.err
}

func (f *fakeBackend) GetSpot(ctx context.Context, principal application.Principal, spotID int64) (application.ParkingSpot, error) {
	f.record("GetSpot")
	return application.ParkingSpot{ID: spotID}, f.err
}

func (f *fakeBackend) Availability(ctx context.Context, lotID int64) (application.LotAvailability, error) {
	f.record("Availability")
	return f.availability, f.err
}

func (f *fakeBackend) FilterLots(ctx context.Context, principal application.Principal, query string) ([]application.ParkingLot, error) {
	f.record("FilterLots")
	f.mu.Lock()
	f.lastQuery = query
	f.mu.Unlock()
	return []application.ParkingLot{f.lot}, f.err
}

func (f *fakeBackend) Reserve(ctx context.Context, params application.ReserveParams) (application.Reservation, error) {
	f.record("Reserve")
	f.mu.Lock()
	f.reserveParams = params
	f.mu.Unlock()
	return f.reservation, f.err
}

func (f *fakeBackend) GetReservation(ctx context.Context, principal application.Principal, reservationID int64) (application.Reservation, error) {
	f.record("GetReservation")
	return f.reservation, f.err
}

func (f *fakeBackend) QuoteRelease(ctx context.Context, principal application.Principal, reservationID int64) (application.ReleaseQuote, error) {
	f.record("QuoteRelease")
	return f.quote, f.err
}

func (f *fakeBackend) CancelRelease(ctx context.Context, principal application.Principal, reservationID int64) error {
	f.record("CancelRelease")
	return f.err
}

func (f *fakeBackend) SettlePayment(ctx context.Context, params application.SettlePaymentParams) (application.Settlement, error) {
	f.record("SettlePayment")
	f.mu.Lock()
	f.settleParams = params
	f.mu.Unlock()
	return f.settlement, f.err
}

func (f *fakeBackend) FilterVehicles(ctx context.Context, principal application.Principal, number string) ([]application.Vehicle, error) {
	f.record("FilterVehicles")
	return []application.Vehicle{{VehicleNumber: number, UserID: principal.UserID}}, f.err
}

func (f *fakeBackend) LotRevenueSummary(ctx context.Context, principal application.Principal) ([]application.LotSummary, error) {
	f.record("LotRevenueSummary")
	return nil, f.err
}

func newTestRouter(backend *fakeBackend) http.Handler {
	logger := discardLogger()
	return NewRouter(RouterConfig{
		Auth:         NewAuthHandler(backend, logger),
		Users:        NewUserHandler(backend, backend, logger),
		Lots:         NewLotHandler(backend, backend, logger),
		Reservations: NewReservationHandler(backend, logger),
		Reports:      NewReportHandler(backend, logger),
		Vehicles:     NewVehicleHandler(backend, logger),
		Sessions:     backend,
		Health:       Health(nil, logger),
		Logger:       logger,
	})
}
