package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/parking-manager/internal/application"
)

func serve(t *testing.T, handler http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestAuthHandlers(t *testing.T) {
	t.Parallel()

	expires := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)

	t.Run("login issues session token via cookie and header", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{authResult: application.AuthenticateResult{
			User:    application.User{ID: "@asha101", Email: "asha@example.com", Role: application.RoleUser, IsActive: true},
			Session: application.Session{Token: "token-1", ExpiresAt: expires},
		}}
		rec := serve(t, newTestRouter(backend), http.MethodPost, "/sessions", `{"email":"Asha@Example.com","password":"secret-password"}`, "")

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want %d (%s)", rec.Code, http.StatusCreated, rec.Body.String())
		}
		if got := rec.Header().Get("X-Session-Token"); got != "token-1" {
			t.Fatalf("X-Session-Token = %q", got)
		}
		cookies := rec.Result().Cookies()
		if len(cookies) != 1 || cookies[0].Name != "session_token" || cookies[0].Value != "token-1" || !cookies[0].HttpOnly {
			t.Fatalf("unexpected cookies %+v", cookies)
		}
		var resp loginResponse
		decodeBody(t, rec, &resp)
		if resp.Token != "token-1" || resp.User.ID != "@asha101" || resp.User.Role != "user" {
			t.Fatalf("unexpected response %+v", resp)
		}
		if resp.ExpiresAt != "2024-03-05T09:00:00Z" {
			t.Fatalf("expires_at = %q", resp.ExpiresAt)
		}
	})

	t.Run("invalid credentials return 401", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{authErr: application.ErrInvalidCredentials}
		rec := serve(t, newTestRouter(backend), http.MethodPost, "/sessions", `{"email":"asha@example.com","password":"nope"}`, "")

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
		var resp errorResponse
		decodeBody(t, rec, &resp)
		if resp.ErrorCode != "AUTH_INVALID_CREDENTIALS" {
			t.Fatalf("error_code = %q", resp.ErrorCode)
		}
	})

	t.Run("malformed body returns 400", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{}
		rec := serve(t, newTestRouter(backend), http.MethodPost, "/sessions", `{`, "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if backend.called("Authenticate") {
			t.Fatal("service must not be called for a malformed body")
		}
	})

	t.Run("logout revokes the session and clears the cookie", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{principal: application.Principal{UserID: "@asha101"}}
		rec := serve(t, newTestRouter(backend), http.MethodDelete, "/sessions/current", "", "token-1")

		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", rec.Code)
		}
		if !backend.called("RevokeSession") {
			t.Fatal("expected RevokeSession to be called")
		}
		cookies := rec.Result().Cookies()
		if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
			t.Fatalf("expected an expired cookie, got %+v", cookies)
		}
	})

	t.Run("refresh rotates the token", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{
			principal:  application.Principal{UserID: "@asha101"},
			authResult: application.AuthenticateResult{Session: application.Session{Token: "token-2", UserID: "@asha101", ExpiresAt: expires}},
		}
		rec := serve(t, newTestRouter(backend), http.MethodPut, "/sessions/current", "", "token-1")

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if got := rec.Header().Get("X-Session-Token"); got != "token-2" {
			t.Fatalf("X-Session-Token = %q", got)
		}
	})
}

func TestRouterRequiresSession(t *testing.T) {
	t.Parallel()

	protected := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/users"},
		{http.MethodGet, "/users/@asha101"},
		{http.MethodGet, "/lots"},
		{http.MethodPost, "/lots"},
		{http.MethodPost, "/lots/1/reservations"},
		{http.MethodDelete, "/spots/3"},
		{http.MethodPut, "/spots/3"},
		{http.MethodPost, "/reservations/1/payment"},
		{http.MethodGet, "/vehicles"},
		{http.MethodPost, "/vehicles"},
		{http.MethodGet, "/vehicles/KA01AB1234"},
		{http.MethodPut, "/vehicles/KA01AB1234"},
		{http.MethodDelete, "/vehicles/KA01AB1234"},
		{http.MethodGet, "/reports/lots"},
		{http.MethodDelete, "/sessions/current"},
	}

	for _, tc := range protected {
		tc := tc
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			t.Parallel()

			backend := &fakeBackend{}
			rec := serve(t, newTestRouter(backend), tc.method, tc.path, "", "")
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			if len(backend.calls) != 0 {
				t.Fatalf("no service should be reached, got %v", backend.calls)
			}
		})
	}

	t.Run("registration and health are public", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{user: application.User{ID: "@asha101", Role: application.RoleUser, IsActive: true}}
		router := newTestRouter(backend)

		rec := serve(t, router, http.MethodPost, "/users", `{"full_name":"Asha","email":"asha@example.com","password":"secret-password"}`, "")
		if rec.Code != http.StatusCreated {
			t.Fatalf("register status = %d (%s)", rec.Code, rec.Body.String())
		}
		rec = serve(t, router, http.MethodGet, "/healthz", "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("healthz status = %d", rec.Code)
		}
		if backend.called("ValidateSession") {
			t.Fatal("public routes must not validate sessions")
		}
	})

	t.Run("unsupported method returns 405", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{principal: application.Principal{UserID: "@asha101"}}
		rec := serve(t, newTestRouter(backend), http.MethodPatch, "/lots/1", "", "token-1")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("status = %d, want 405", rec.Code)
		}
	})
}

func TestUserHandlers(t *testing.T) {
	t.Parallel()

	t.Run("path ids are accepted without the leading @", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{
			principal: application.Principal{UserID: "@asha101"},
			user:      application.User{ID: "@asha101", Role: application.RoleUser},
		}
		rec := serve(t, newTestRouter(backend), http.MethodGet, "/users/asha101", "", "token-1")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
		}
		if backend.lastUserID != "@asha101" {
			t.Fatalf("user id = %q", backend.lastUserID)
		}
	})

	t.Run("listing with a query searches users", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{principal: application.Principal{UserID: "@root100", IsAdmin: true}}
		rec := serve(t, newTestRouter(backend), http.MethodGet, "/users?q=asha", "", "token-1")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if !backend.called("FilterUsers") || backend.called("ListUsers") {
			t.Fatalf("unexpected calls %v", backend.calls)
		}
		if backend.lastQuery != "asha" {
			t.Fatalf("query = %q", backend.lastQuery)
		}
	})

	t.Run("validation errors return field messages", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{err: &application.ValidationError{FieldErrors: map[string]string{"email": "email is already registered"}}}
		rec := serve(t, newTestRouter(backend), http.MethodPost, "/users", `{"email":"asha@example.com"}`, "")
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", rec.Code)
		}
		var resp errorResponse
		decodeBody(t, rec, &resp)
		if resp.ErrorCode != "VALIDATION_FAILED" || resp.Errors["email"] == "" {
			t.Fatalf("unexpected response %+v", resp)
		}
	})

	t.Run("non admins are forbidden", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{principal: application.Principal{UserID: "@asha101"}, err: application.ErrUnauthorized}
		rec := serve(t, newTestRouter(backend), http.MethodDelete, "/users/@ravi102", "", "token-1")
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("scheduled deletion is rendered", func(t *testing.T) {
		t.Parallel()

		at := time.Date(2024, 3, 19, 9, 0, 0, 0, time.UTC)
		backend := &fakeBackend{
			principal: application.Principal{UserID: "@asha101"},
			user:      application.User{ID: "@asha101", Role: application.RoleUser, ScheduledDeleteAt: &at},
		}
		rec := serve(t, newTestRouter(backend), http.MethodPost, "/users/@asha101/deletion", "", "token-1")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var resp userResponse
		decodeBody(t, rec, &resp)
		if resp.User.ScheduledDeleteAt == nil || *resp.User.ScheduledDeleteAt != "2024-03-19T09:00:00Z" {
			t.Fatalf("scheduled_delete_at = %v", resp.User.ScheduledDeleteAt)
		}
	})
}

func TestLotHandlers(t *testing.T) {
	t.Parallel()

	admin := application.Principal{UserID: "@root100", IsAdmin: true}

	t.Run("create passes decimal prices and hours through", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{principal: admin, lot: application.ParkingLot{ID: 1, PricePerHour: decimal.RequireFromString("12.5")}}
		body := `{"name":"Central","city":"Pune","price_per_hour":"12.5","maximum_number_of_spots":3,"open_time":"08:00","close_time":"20:00"}`
		rec := serve(t, newTestRouter(backend), http.MethodPost, "/lots", body, "token-1")

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
		}
		input := backend.lotCreate.Input
		if !input.PricePerHour.Equal(decimal.RequireFromString("12.5")) || input.MaximumNumberOfSpots != 3 {
			t.Fatalf("unexpected input %+v", input)
		}
		if input.OpenTime == nil || *input.OpenTime != "08:00" {
			t.Fatalf("open_time = %v", input.OpenTime)
		}
		var resp lotResponse
		decodeBody(t, rec, &resp)
		if resp.Lot.PricePerHour != "12.50" {
			t.Fatalf("price_per_hour = %q", resp.Lot.PricePerHour)
		}
	})

	t.Run("get includes availability", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{
			principal:    application.Principal{UserID: "@asha101"},
			lot:          application.ParkingLot{ID: 4, PricePerHour: decimal.NewFromInt(10)},
			availability: application.LotAvailability{LotID: 4, Capacity: 3, Occupied: 1, Available: 2},
		}
		rec := serve(t, newTestRouter(backend), http.MethodGet, "/lots/4", "", "token-1")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var resp lotResponse
		decodeBody(t, rec, &resp)
		if resp.Availability == nil || resp.Availability.Available != 2 || resp.Lot.PricePerHour != "10.00" {
			t.Fatalf("unexpected response %+v", resp)
		}
	})

	t.Run("invalid ids return 400", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{principal: admin}
		router := newTestRouter(backend)
		for _, path := range []string{"/lots/abc", "/lots/0", "/spots/-1"} {
			rec := serve(t, router, http.MethodGet, path, "", "token-1")
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("%s status = %d, want 400", path, rec.Code)
			}
		}
	})

	t.Run("deleting a lot with parked vehicles conflicts", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{principal: admin, err: fmt.Errorf("lot 1: %w", application.ErrConflict)}
		rec := serve(t, newTestRouter(backend), http.MethodDelete, "/lots/1", "", "token-1")
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
	})

	t.Run("spot update passes only number and covered flag", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{principal: admin}
		rec := serve(t, newTestRouter(backend), http.MethodPut, "/spots/3", `{"spot_number":"A-1","is_covered":true,"status":"OCCUPIED"}`, "token-1")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
		}
		update := backend.spotUpdate
		if update.SpotID != 3 || update.Update.SpotNumber == nil || *update.Update.SpotNumber != "A-1" {
			t.Fatalf("unexpected params %+v", update)
		}
		if update.Update.IsCovered == nil || !*update.Update.IsCovered {
			t.Fatalf("is_covered = %v", update.Update.IsCovered)
		}
		var resp spotResponse
		decodeBody(t, rec, &resp)
		if resp.Spot.ID != 3 {
			t.Fatalf("unexpected response %+v", resp)
		}
	})
}

func TestVehicleHandlers(t *testing.T) {
	t.Parallel()

	driver := application.Principal{UserID: "@asha101"}
	admin := application.Principal{UserID: "@root100", IsAdmin: true}
	car := application.Vehicle{
		VehicleNumber: "KA01AB1234",
		UserID:        "@asha101",
		Brand:         "Maruti",
		Model:         "Swift",
		CreatedAt:     time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
	}

	t.Run("register returns 201 and normalises the owner id", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{principal: admin, vehicle: car}
		body := `{"vehicle_number":"ka01ab1234","user_id":"asha101","brand":"Maruti","model":"Swift","color":"Red","fuel_type":"Petrol"}`
		rec := serve(t, newTestRouter(backend), http.MethodPost, "/vehicles", body, "token-1")
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
		}
		params := backend.vehicleCreate
		if params.UserID != "@asha101" || params.Vehicle.VehicleNumber != "ka01ab1234" || params.Vehicle.FuelType != "Petrol" {
			t.Fatalf("unexpected params %+v", params)
		}
		var resp vehicleResponse
		decodeBody(t, rec, &resp)
		if resp.Vehicle.VehicleNumber != "KA01AB1234" || resp.Vehicle.UserID != "@asha101" {
			t.Fatalf("unexpected response %+v", resp)
		}
	})

	t.Run("get by number", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{principal: driver, vehicle: car}
		rec := serve(t, newTestRouter(backend), http.MethodGet, "/vehicles/KA01AB1234", "", "token-1")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var resp vehicleResponse
		decodeBody(t, rec, &resp)
		if resp.Vehicle.Brand != "Maruti" {
			t.Fatalf("unexpected response %+v", resp)
		}
	})

	t.Run("update forwards only provided fields", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{principal: admin, vehicle: car}
		rec := serve(t, newTestRouter(backend), http.MethodPut, "/vehicles/KA01AB1234", `{"color":"Blue","user_id":"other200"}`, "token-1")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
		}
		update := backend.vehicleUpdate
		if update.VehicleNumber != "KA01AB1234" || update.Update.Color == nil || *update.Update.Color != "Blue" {
			t.Fatalf("unexpected params %+v", update)
		}
		if update.Update.UserID == nil || *update.Update.UserID != "@other200" || update.Update.Brand != nil {
			t.Fatalf("unexpected update %+v", update.Update)
		}
	})

	t.Run("service errors map to status codes", func(t *testing.T) {
		t.Parallel()

		cases := []struct {
			method string
			err    error
			status int
		}{
			{http.MethodDelete, application.ErrUnauthorized, http.StatusForbidden},
			{http.MethodDelete, fmt.Errorf("parked: %w", application.ErrConflict), http.StatusConflict},
			{http.MethodGet, application.ErrNotFound, http.StatusNotFound},
		}
		for _, tc := range cases {
			backend := &fakeBackend{principal: driver, err: tc.err}
			rec := serve(t, newTestRouter(backend), tc.method, "/vehicles/KA01AB1234", "", "token-1")
			if rec.Code != tc.status {
				t.Fatalf("%s %v: status = %d, want %d", tc.method, tc.err, rec.Code, tc.status)
			}
		}

		backend := &fakeBackend{principal: admin}
		rec := serve(t, newTestRouter(backend), http.MethodDelete, "/vehicles/KA01AB1234", "", "token-1")
		if rec.Code != http.StatusNoContent || !backend.called("DeleteVehicle") {
			t.Fatalf("status = %d, calls %v", rec.Code, backend.calls)
		}
	})
}

func TestReservationHandlers(t *testing.T) {
	t.Parallel()

	driver := application.Principal{UserID: "@asha101"}

	t.Run("reserve defaults to the caller", func(t *testing.T) {
		t.Parallel()

		spotID := int64(7)
		backend := &fakeBackend{
			principal:   driver,
			reservation: application.Reservation{ID: 9, SpotID: &spotID, UserID: "@asha101", Status: application.ReservationActive, CostPerHour: decimal.NewFromInt(10)},
		}
		rec := serve(t, newTestRouter(backend), http.MethodPost, "/lots/1/reservations", `{"vehicle_number":"ka01ab1234"}`, "token-1")

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
		}
		if backend.reserveParams.UserID != "@asha101" || backend.reserveParams.LotID != 1 {
			t.Fatalf("unexpected params %+v", backend.reserveParams)
		}
		var resp reservationResponse
		decodeBody(t, rec, &resp)
		if resp.Reservation.Status != "active" || resp.Reservation.CostPerHour != "10.00" {
			t.Fatalf("unexpected reservation %+v", resp.Reservation)
		}
	})

	t.Run("admins may reserve for another user", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{principal: application.Principal{UserID: "@root100", IsAdmin: true}}
		rec := serve(t, newTestRouter(backend), http.MethodPost, "/lots/1/reservations", `{"user_id":"ravi102","vehicle_number":"KA01AB1234"}`, "token-1")
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d", rec.Code)
		}
		if backend.reserveParams.UserID != "@ravi102" {
			t.Fatalf("user id = %q", backend.reserveParams.UserID)
		}
	})

	errorCases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"lot full", application.ErrLotFull, http.StatusConflict, "LOT_FULL"},
		{"vehicle parked", application.ErrVehicleAlreadyParked, http.StatusConflict, "VEHICLE_ALREADY_PARKED"},
		{"lot closed", application.ErrOutsideOperatingHours, http.StatusConflict, "LOT_CLOSED"},
		{"storage busy", fmt.Errorf("reserve: %w", application.ErrPersistence), http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range errorCases {
		tc := tc
		t.Run("reserve maps "+tc.name, func(t *testing.T) {
			t.Parallel()

			backend := &fakeBackend{principal: driver, err: tc.err}
			rec := serve(t, newTestRouter(backend), http.MethodPost, "/lots/1/reservations", `{"vehicle_number":"KA01AB1234"}`, "token-1")
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			var resp errorResponse
			decodeBody(t, rec, &resp)
			if resp.ErrorCode != tc.code {
				t.Fatalf("error_code = %q, want %q", resp.ErrorCode, tc.code)
			}
			if tc.status == http.StatusServiceUnavailable && rec.Header().Get("Retry-After") == "" {
				t.Fatal("expected Retry-After on 503")
			}
		})
	}

	t.Run("settle parses method and quote token", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{
			principal: driver,
			settlement: application.Settlement{
				Reservation: application.Reservation{ID: 9, Status: application.ReservationCompleted},
				Payment:     application.Payment{ID: 1, ReservationID: 9, Amount: decimal.NewFromInt(20), Method: application.PaymentUPI, Status: application.PaymentPaid},
			},
		}
		rec := serve(t, newTestRouter(backend), http.MethodPost, "/reservations/9/payment", `{"payment_method":"UPI","quote_token":" q-1 "}`, "token-1")

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
		}
		if backend.settleParams.Method != application.PaymentUPI || backend.settleParams.QuoteToken != "q-1" || backend.settleParams.ReservationID != 9 {
			t.Fatalf("unexpected params %+v", backend.settleParams)
		}
		var resp settlementResponse
		decodeBody(t, rec, &resp)
		if resp.Payment.Amount != "20.00" || resp.Payment.Method != "upi" || resp.Reservation.Status != "completed" {
			t.Fatalf("unexpected response %+v", resp)
		}
	})

	t.Run("settle leaves unknown methods for the service to reject", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{principal: driver}
		serve(t, newTestRouter(backend), http.MethodPost, "/reservations/9/payment", `{"payment_method":"cheque","amount":"20"}`, "token-1")
		if backend.settleParams.Method.Valid() {
			t.Fatalf("method = %v, want invalid", backend.settleParams.Method)
		}
		if !backend.settleParams.Amount.Valid || !backend.settleParams.Amount.Decimal.Equal(decimal.NewFromInt(20)) {
			t.Fatalf("amount = %+v", backend.settleParams.Amount)
		}
	})

	t.Run("settle without amount or quote token reaches the service unset", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{
			principal: driver,
			err:       &application.ValidationError{FieldErrors: map[string]string{"amount": "amount is required without a quote token"}},
		}
		rec := serve(t, newTestRouter(backend), http.MethodPost, "/reservations/9/payment", `{"payment_method":"cash"}`, "token-1")
		if backend.settleParams.Amount.Valid {
			t.Fatalf("amount = %+v, want unset", backend.settleParams.Amount)
		}
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", rec.Code)
		}
		var resp errorResponse
		decodeBody(t, rec, &resp)
		if resp.Errors["amount"] == "" {
			t.Fatalf("errors = %+v, want amount", resp.Errors)
		}

		serve(t, newTestRouter(backend), http.MethodPost, "/reservations/9/payment", `{"payment_method":"cash","amount":null}`, "token-1")
		if backend.settleParams.Amount.Valid {
			t.Fatalf("null amount = %+v, want unset", backend.settleParams.Amount)
		}
	})

	t.Run("expired quotes return 410", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{principal: driver, err: application.ErrQuoteExpired}
		rec := serve(t, newTestRouter(backend), http.MethodPost, "/reservations/9/payment", `{"payment_method":"cash","quote_token":"old"}`, "token-1")
		if rec.Code != http.StatusGone {
			t.Fatalf("status = %d, want 410", rec.Code)
		}
	})

	t.Run("quote renders money with two decimals", func(t *testing.T) {
		t.Parallel()

		backend := &fakeBackend{principal: driver, quote: application.ReleaseQuote{
			Token:         "q-1",
			ReservationID: 9,
			DurationHours: decimal.RequireFromString("2"),
			CostPerHour:   decimal.NewFromInt(10),
			EstimatedCost: decimal.NewFromInt(20),
		}}
		rec := serve(t, newTestRouter(backend), http.MethodPost, "/reservations/9/quote", "", "token-1")
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d", rec.Code)
		}
		var resp quoteResponse
		decodeBody(t, rec, &resp)
		if resp.Quote.EstimatedCost != "20.00" || resp.Quote.DurationHours != "2.00" || resp.Quote.Token != "q-1" {
			t.Fatalf("unexpected quote %+v", resp.Quote)
		}
	})
}

type failingPinger struct{ err error }

func (p failingPinger) Ping(ctx context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	Health(failingPinger{err: errors.New("disk I/O error")}, discardLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	rec = httptest.NewRecorder()
	Health(failingPinger{}, discardLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
