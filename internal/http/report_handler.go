package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/parking-manager/internal/application"
)

type reportService interface {
	FilterVehicles(ctx context.Context, principal application.Principal, number string) ([]application.Vehicle, error)
	LotRevenueSummary(ctx context.Context, principal application.Principal) ([]application.LotSummary, error)
}

type ReportHandler struct {
	service   reportService
	responder responder
	logger    *slog.Logger
}

func NewReportHandler(service reportService, logger *slog.Logger) *ReportHandler {
	base := defaultLogger(logger)
	return &ReportHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ReportHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ReportHandler", operation, attrs...)
}

func (h *ReportHandler) Vehicles(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	number := strings.TrimSpace(r.URL.Query().Get("number"))
	vehicles, err := h.service.FilterVehicles(r.Context(), principal, number)
	if err != nil {
		h.log(r.Context(), "Vehicles", "number", number).ErrorContext(r.Context(), "vehicle search failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]vehicleDTO, 0, len(vehicles))
	for _, vehicle := range vehicles {
		out = append(out, toVehicleDTO(vehicle))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, vehiclesResponse{Vehicles: out})
}

func (h *ReportHandler) Lots(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	summaries, err := h.service.LotRevenueSummary(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "Lots").ErrorContext(r.Context(), "lot summary failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]lotSummaryDTO, 0, len(summaries))
	for _, summary := range summaries {
		out = append(out, lotSummaryDTO{
			LotID:     summary.LotID,
			Name:      summary.Name,
			Revenue:   summary.Revenue.StringFixed(2),
			Capacity:  summary.Capacity,
			Occupied:  summary.Occupied,
			Available: summary.Available,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, lotSummariesResponse{Lots: out})
}

type vehiclesResponse struct {
	Vehicles []vehicleDTO `json:"vehicles"`
}

type vehicleDTO struct {
	VehicleNumber string `json:"vehicle_number"`
	UserID        string `json:"user_id"`
	Brand         string `json:"brand,omitempty"`
	Model         string `json:"model,omitempty"`
	Color         string `json:"color,omitempty"`
	FuelType      string `json:"fuel_type,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func toVehicleDTO(vehicle application.Vehicle) vehicleDTO {
	return vehicleDTO{
		VehicleNumber: vehicle.VehicleNumber,
		UserID:        vehicle.UserID,
		Brand:         vehicle.Brand,
		Model:         vehicle.Model,
		Color:         vehicle.Color,
		FuelType:      vehicle.FuelType,
		CreatedAt:     formatTime(vehicle.CreatedAt),
	}
}

type lotSummariesResponse struct {
	Lots []lotSummaryDTO `json:"lots"`
}

type lotSummaryDTO struct {
	LotID     int64  `json:"lot_id"`
	Name      string `json:"name"`
	Revenue   string `json:"revenue"`
	Capacity  int    `json:"capacity"`
	Occupied  int    `json:"occupied"`
	Available int    `json:"available"`
}
