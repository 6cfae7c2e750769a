package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	httptransport "github.com/example/parking-manager/internal/http"
	"github.com/example/parking-manager/internal/realtime"
)

// newHandler builds the full HTTP handler around the given services.
func newHandler(a *app, svc services, hub *realtime.Hub) http.Handler {
	return httptransport.NewRouter(httptransport.RouterConfig{
		Auth:         httptransport.NewAuthHandler(svc.auth, a.logger),
		Users:        httptransport.NewUserHandler(svc.accounts, svc.reports, a.logger),
		Lots:         httptransport.NewLotHandler(svc.lots, svc.reports, a.logger),
		Reservations: httptransport.NewReservationHandler(svc.reservations, a.logger),
		Reports:      httptransport.NewReportHandler(svc.reports, a.logger),
		Vehicles:     httptransport.NewVehicleHandler(svc.vehicles, a.logger),
		Sessions:     svc.auth,
		Availability: hub,
		Health:       httptransport.Health(a.storage, a.logger),
		Logger:       a.logger,
		Middleware:   []func(http.Handler) http.Handler{httptransport.RequestLogger(a.logger)},
	})
}

// serve runs the API until ctx is cancelled, then drains in-flight requests.
func serve(ctx context.Context, a *app) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := realtime.NewHub(a.logger)
	svc := a.newServices(hub)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		svc.accounts.RunSweeper(ctx, a.cfg.SweepInterval)
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.HTTPPort),
		Handler:           newHandler(a, svc, hub),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("failed to shutdown server", "error", err)
		}
	}()

	a.logger.Info("parking API listening", "addr", server.Addr)
	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	cancel()
	wg.Wait()
	return err
}
