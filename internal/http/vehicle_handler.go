package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/parking-manager/internal/application"
)

type vehicleService interface {
	GetVehicle(ctx context.Context, principal application.Principal, number string) (application.Vehicle, error)
	RegisterVehicle(ctx context.Context, params application.RegisterVehicleParams) (application.Vehicle, error)
	UpdateVehicle(ctx context.Context, params application.UpdateVehicleParams) (application.Vehicle, error)
	DeleteVehicle(ctx context.Context, principal application.Principal, number string) error
}

type VehicleHandler struct {
	service   vehicleService
	responder responder
	logger    *slog.Logger
}

func NewVehicleHandler(service vehicleService, logger *slog.Logger) *VehicleHandler {
	base := defaultLogger(logger)
	return &VehicleHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *VehicleHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "VehicleHandler", operation, attrs...)
}

func (h *VehicleHandler) Register(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req vehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Register", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode vehicle", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Register", "principal_id", principal.UserID)
	vehicle, err := h.service.RegisterVehicle(r.Context(), application.RegisterVehicleParams{
		Principal: principal,
		UserID:    userID(req.UserID),
		Vehicle: application.VehicleInput{
			VehicleNumber: req.VehicleNumber,
			Brand:         req.Brand,
			Model:         req.Model,
			Color:         req.Color,
			FuelType:      req.FuelType,
		},
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "vehicle registration failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("vehicle_number", vehicle.VehicleNumber).InfoContext(r.Context(), "vehicle registered")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, vehicleResponse{Vehicle: toVehicleDTO(vehicle)})
}

func (h *VehicleHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	number, ok := pathVehicleNumber(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidVehicle)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	vehicle, err := h.service.GetVehicle(r.Context(), principal, number)
	if err != nil {
		h.log(r.Context(), "Get", "vehicle_number", number).ErrorContext(r.Context(), "vehicle lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, vehicleResponse{Vehicle: toVehicleDTO(vehicle)})
}

func (h *VehicleHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	number, ok := pathVehicleNumber(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidVehicle)
		return
	}

	var req updateVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "vehicle_number", number, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode vehicle update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if req.UserID != nil {
		owner := userID(*req.UserID)
		req.UserID = &owner
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "vehicle_number", number)
	vehicle, err := h.service.UpdateVehicle(r.Context(), application.UpdateVehicleParams{
		Principal:     principal,
		VehicleNumber: number,
		Update: application.VehicleUpdate{
			UserID:   req.UserID,
			Brand:    req.Brand,
			Model:    req.Model,
			Color:    req.Color,
			FuelType: req.FuelType,
		},
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "vehicle update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "vehicle updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, vehicleResponse{Vehicle: toVehicleDTO(vehicle)})
}

func (h *VehicleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	number, ok := pathVehicleNumber(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidVehicle)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "vehicle_number", number)
	if err := h.service.DeleteVehicle(r.Context(), principal, number); err != nil {
		logger.ErrorContext(r.Context(), "vehicle delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "vehicle deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func pathVehicleNumber(r *http.Request) (string, bool) {
	number := strings.TrimSpace(r.PathValue("number"))
	return number, number != ""
}

type vehicleRequest struct {
	VehicleNumber string `json:"vehicle_number"`
	UserID        string `json:"user_id"`
	Brand         string `json:"brand"`
	Model         string `json:"model"`
	Color         string `json:"color"`
	FuelType      string `json:"fuel_type"`
}

type updateVehicleRequest struct {
	UserID   *string `json:"user_id"`
	Brand    *string `json:"brand"`
	Model    *string `json:"model"`
	Color    *string `json:"color"`
	FuelType *string `json:"fuel_type"`
}

type vehicleResponse struct {
	Vehicle vehicleDTO `json:"vehicle"`
}
