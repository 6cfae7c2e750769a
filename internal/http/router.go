package http

import (
	"log/slog"
	"net/http"
)

type RouterConfig struct {
	Auth         *AuthHandler
	Users        *UserHandler
	Lots         *LotHandler
	Reservations *ReservationHandler
	Reports      *ReportHandler
	Vehicles     *VehicleHandler
	Sessions     SessionValidator
	Availability http.Handler
	Health       http.Handler
	Logger       *slog.Logger
	Middleware   []func(http.Handler) http.Handler
}

// NewRouter registers every endpoint on a method aware mux. Routes other than
// login, registration, the availability feed and the health probe require a session.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	requireSession := RequireSession(cfg.Sessions, defaultLogger(cfg.Logger))
	protect := func(pattern string, fn http.HandlerFunc) {
		if cfg.Sessions == nil {
			mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			}))
			return
		}
		mux.Handle(pattern, requireSession(fn))
	}

	if cfg.Health != nil {
		mux.Handle("GET /healthz", cfg.Health)
	}
	if cfg.Availability != nil {
		mux.Handle("GET /ws/availability", cfg.Availability)
	}

	if cfg.Auth != nil {
		mux.HandleFunc("POST /sessions", cfg.Auth.CreateSession)
		protect("PUT /sessions/current", cfg.Auth.RefreshCurrentSession)
		protect("DELETE /sessions/current", cfg.Auth.DeleteCurrentSession)
	}

	if cfg.Users != nil {
		mux.HandleFunc("POST /users", cfg.Users.Register)
		protect("GET /users", cfg.Users.List)
		protect("GET /users/{id}", cfg.Users.Get)
		protect("PUT /users/{id}", cfg.Users.Update)
		protect("DELETE /users/{id}", cfg.Users.Delete)
		protect("GET /users/{id}/profile", cfg.Users.GetProfile)
		protect("PUT /users/{id}/profile", cfg.Users.UpdateProfile)
		protect("POST /users/{id}/deletion", cfg.Users.ScheduleDeletion)
		protect("DELETE /users/{id}/deletion", cfg.Users.CancelDeletion)
		protect("GET /users/{id}/reservations", cfg.Users.History)
		protect("GET /users/{id}/spend", cfg.Users.Spend)
	}

	if cfg.Lots != nil {
		protect("GET /lots", cfg.Lots.List)
		protect("POST /lots", cfg.Lots.Create)
		protect("GET /lots/{id}", cfg.Lots.Get)
		protect("PUT /lots/{id}", cfg.Lots.Update)
		protect("DELETE /lots/{id}", cfg.Lots.Delete)
		protect("GET /lots/{id}/spots", cfg.Lots.ListSpots)
		protect("GET /spots/{id}", cfg.Lots.GetSpot)
		protect("PUT /spots/{id}", cfg.Lots.UpdateSpot)
		protect("DELETE /spots/{id}", cfg.Lots.DeleteSpot)
	}

	if cfg.Reservations != nil {
		protect("POST /lots/{id}/reservations", cfg.Reservations.Reserve)
		protect("GET /reservations/{id}", cfg.Reservations.Get)
		protect("POST /reservations/{id}/quote", cfg.Reservations.Quote)
		protect("DELETE /reservations/{id}/quote", cfg.Reservations.CancelQuote)
		protect("POST /reservations/{id}/payment", cfg.Reservations.Settle)
	}

	if cfg.Reports != nil {
		protect("GET /vehicles", cfg.Reports.Vehicles)
		protect("GET /reports/lots", cfg.Reports.Lots)
	}

	if cfg.Vehicles != nil {
		protect("POST /vehicles", cfg.Vehicles.Register)
		protect("GET /vehicles/{number}", cfg.Vehicles.Get)
		protect("PUT /vehicles/{number}", cfg.Vehicles.Update)
		protect("DELETE /vehicles/{number}", cfg.Vehicles.Delete)
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}
	return handler
}
