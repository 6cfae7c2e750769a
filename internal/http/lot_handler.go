package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/example/parking-manager/internal/application"
)

type lotService interface {
	CreateLot(ctx context.Context, params application.CreateLotParams) (application.ParkingLot, error)
	UpdateLot(ctx context.Context, params application.UpdateLotParams) (application.ParkingLot, error)
	DeleteLot(ctx context.Context, principal application.Principal, lotID int64) error
	UpdateSpot(ctx context.Context, params application.UpdateSpotParams) (application.ParkingSpot, error)
	DeleteSpot(ctx context.Context, principal application.Principal, spotID int64) error
	GetLot(ctx context.Context, principal application.Principal, lotID int64) (application.ParkingLot, error)
	ListLots(ctx context.Context, principal application.Principal) ([]application.ParkingLot, error)
	ListSpots(ctx context.Context, principal application.Principal, lotID int64) ([]application.ParkingSpot, error)
	GetSpot(ctx context.Context, principal application.Principal, spotID int64) (application.ParkingSpot, error)
	Availability(ctx context.Context, lotID int64) (application.LotAvailability, error)
}

type lotSearch interface {
	FilterLots(ctx context.Context, principal application.Principal, query string) ([]application.ParkingLot, error)
}

type LotHandler struct {
	service   lotService
	search    lotSearch
	responder responder
	logger    *slog.Logger
}

func NewLotHandler(service lotService, search lotSearch, logger *slog.Logger) *LotHandler {
	base := defaultLogger(logger)
	return &LotHandler{service: service, search: search, responder: newResponder(base), logger: base}
}

func (h *LotHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "LotHandler", operation, attrs...)
}

func (h *LotHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	logger := h.log(r.Context(), "List", "principal_id", principal.UserID, "query", query)

	var (
		lots []application.ParkingLot
		err  error
	)
	if query != "" && h.search != nil {
		lots, err = h.search.FilterLots(r.Context(), principal, query)
	} else {
		lots, err = h.service.ListLots(r.Context(), principal)
	}
	if err != nil {
		logger.ErrorContext(r.Context(), "lot list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]lotDTO, 0, len(lots))
	for _, lot := range lots {
		out = append(out, toLotDTO(lot))
	}
	logger.With("result_count", len(out)).InfoContext(r.Context(), "lots listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listLotsResponse{Lots: out})
}

func (h *LotHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req createLotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode lot", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)
	lot, err := h.service.CreateLot(r.Context(), application.CreateLotParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "lot creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("lot_id", lot.ID).InfoContext(r.Context(), "lot created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, lotResponse{Lot: toLotDTO(lot)})
}

func (h *LotHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	lotID, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidLotID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Get", "lot_id", lotID)
	lot, err := h.service.GetLot(r.Context(), principal, lotID)
	if err != nil {
		logger.ErrorContext(r.Context(), "lot lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	availability, err := h.service.Availability(r.Context(), lotID)
	if err != nil {
		logger.ErrorContext(r.Context(), "availability lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := lotResponse{Lot: toLotDTO(lot)}
	avail := toAvailabilityDTO(availability)
	resp.Availability = &avail
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *LotHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	lotID, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidLotID)
		return
	}

	var req updateLotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "lot_id", lotID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode lot update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "lot_id", lotID)
	lot, err := h.service.UpdateLot(r.Context(), application.UpdateLotParams{
		Principal: principal,
		LotID:     lotID,
		Update: application.LotUpdate{
			PricePerHour: req.PricePerHour,
			OpenTime:     req.OpenTime,
			CloseTime:    req.CloseTime,
			ClearHours:   req.ClearHours,
			IsActive:     req.IsActive,
		},
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "lot update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "lot updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, lotResponse{Lot: toLotDTO(lot)})
}

func (h *LotHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	lotID, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidLotID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "lot_id", lotID)
	if err := h.service.DeleteLot(r.Context(), principal, lotID); err != nil {
		logger.ErrorContext(r.Context(), "lot delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "lot deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *LotHandler) ListSpots(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	lotID, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidLotID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	spots, err := h.service.ListSpots(r.Context(), principal, lotID)
	if err != nil {
		h.log(r.Context(), "ListSpots", "lot_id", lotID).ErrorContext(r.Context(), "spot list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]spotDTO, 0, len(spots))
	for _, spot := range spots {
		out = append(out, toSpotDTO(spot))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSpotsResponse{Spots: out})
}

func (h *LotHandler) GetSpot(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	spotID, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSpotID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	spot, err := h.service.GetSpot(r.Context(), principal, spotID)
	if err != nil {
		h.log(r.Context(), "GetSpot", "spot_id", spotID).ErrorContext(r.Context(), "spot lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, spotResponse{Spot: toSpotDTO(spot)})
}

func (h *LotHandler) UpdateSpot(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	spotID, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSpotID)
		return
	}

	var req updateSpotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "UpdateSpot", "spot_id", spotID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode spot update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "UpdateSpot", "principal_id", principal.UserID, "spot_id", spotID)
	spot, err := h.service.UpdateSpot(r.Context(), application.UpdateSpotParams{
		Principal: principal,
		SpotID:    spotID,
		Update:    application.SpotUpdate{SpotNumber: req.SpotNumber, IsCovered: req.IsCovered},
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "spot update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "spot updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, spotResponse{Spot: toSpotDTO(spot)})
}

func (h *LotHandler) DeleteSpot(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	spotID, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSpotID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "DeleteSpot", "principal_id", principal.UserID, "spot_id", spotID)
	if err := h.service.DeleteSpot(r.Context(), principal, spotID); err != nil {
		logger.ErrorContext(r.Context(), "spot delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "spot deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type createLotRequest struct {
	Name                 string          `json:"name"`
	PrimeLocationName    string          `json:"prime_location_name"`
	Address              string          `json:"address"`
	PinCode              string          `json:"pin_code"`
	City                 string          `json:"city"`
	State                string          `json:"state"`
	District             string          `json:"district"`
	FloorLevel           int             `json:"floor_level"`
	PricePerHour         decimal.Decimal `json:"price_per_hour"`
	MaximumNumberOfSpots int             `json:"maximum_number_of_spots"`
	OpenTime             *string         `json:"open_time"`
	CloseTime            *string         `json:"close_time"`
}

func (r createLotRequest) toInput() application.LotInput {
	return application.LotInput{
		Name:                 r.Name,
		PrimeLocationName:    r.PrimeLocationName,
		Address:              r.Address,
		PinCode:              r.PinCode,
		City:                 r.City,
		State:                r.State,
		District:             r.District,
		FloorLevel:           r.FloorLevel,
		PricePerHour:         r.PricePerHour,
		MaximumNumberOfSpots: r.MaximumNumberOfSpots,
		OpenTime:             r.OpenTime,
		CloseTime:            r.CloseTime,
	}
}

type updateLotRequest struct {
	PricePerHour *decimal.Decimal `json:"price_per_hour"`
	OpenTime     *string          `json:"open_time"`
	CloseTime    *string          `json:"close_time"`
	ClearHours   bool             `json:"clear_hours"`
	IsActive     *bool            `json:"is_active"`
}

type updateSpotRequest struct {
	SpotNumber *string `json:"spot_number"`
	IsCovered  *bool   `json:"is_covered"`
}

type lotResponse struct {
	Lot          lotDTO           `json:"lot"`
	Availability *availabilityDTO `json:"availability,omitempty"`
}

type listLotsResponse struct {
	Lots []lotDTO `json:"lots"`
}

type spotResponse struct {
	Spot spotDTO `json:"spot"`
}

type listSpotsResponse struct {
	Spots []spotDTO `json:"spots"`
}

type lotDTO struct {
	ID                   int64   `json:"id"`
	Name                 string  `json:"name"`
	PrimeLocationName    string  `json:"prime_location_name"`
	Address              string  `json:"address"`
	PinCode              string  `json:"pin_code"`
	City                 string  `json:"city"`
	State                string  `json:"state"`
	District             string  `json:"district"`
	FloorLevel           int     `json:"floor_level"`
	PricePerHour         string  `json:"price_per_hour"`
	MaximumNumberOfSpots int     `json:"maximum_number_of_spots"`
	Revenue              string  `json:"revenue"`
	IsActive             bool    `json:"is_active"`
	OpenTime             *string `json:"open_time,omitempty"`
	CloseTime            *string `json:"close_time,omitempty"`
	CreatedAt            string  `json:"created_at"`
	UpdatedAt            string  `json:"updated_at"`
}

func toLotDTO(lot application.ParkingLot) lotDTO {
	return lotDTO{
		ID:                   lot.ID,
		Name:                 lot.Name,
		PrimeLocationName:    lot.PrimeLocationName,
		Address:              lot.Address,
		PinCode:              lot.PinCode,
		City:                 lot.City,
		State:                lot.State,
		District:             lot.District,
		FloorLevel:           lot.FloorLevel,
		PricePerHour:         lot.PricePerHour.StringFixed(2),
		MaximumNumberOfSpots: lot.MaximumNumberOfSpots,
		Revenue:              lot.Revenue.StringFixed(2),
		IsActive:             lot.IsActive,
		OpenTime:             formatTimeOfDay(lot.Hours.Open),
		CloseTime:            formatTimeOfDay(lot.Hours.Close),
		CreatedAt:            formatTime(lot.CreatedAt),
		UpdatedAt:            formatTime(lot.UpdatedAt),
	}
}

func formatTimeOfDay(t *application.TimeOfDay) *string {
	if t == nil {
		return nil
	}
	value := t.String()
	return &value
}

type spotDTO struct {
	ID         int64  `json:"id"`
	LotID      int64  `json:"lot_id"`
	SpotNumber string `json:"spot_number"`
	Status     string `json:"status"`
	IsCovered  bool   `json:"is_covered"`
	Revenue    string `json:"revenue"`
}

func toSpotDTO(spot application.ParkingSpot) spotDTO {
	return spotDTO{
		ID:         spot.ID,
		LotID:      spot.LotID,
		SpotNumber: spot.SpotNumber,
		Status:     spot.Status.String(),
		IsCovered:  spot.IsCovered,
		Revenue:    spot.Revenue.StringFixed(2),
	}
}

type availabilityDTO struct {
	LotID     int64 `json:"lot_id"`
	Capacity  int   `json:"capacity"`
	Occupied  int   `json:"occupied"`
	Available int   `json:"available"`
}

func toAvailabilityDTO(a application.LotAvailability) availabilityDTO {
	return availabilityDTO(a)
}
