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

type reservationService interface {
	Reserve(ctx context.Context, params application.ReserveParams) (application.Reservation, error)
	GetReservation(ctx context.Context, principal application.Principal, reservationID int64) (application.Reservation, error)
	QuoteRelease(ctx context.Context, principal application.Principal, reservationID int64) (application.ReleaseQuote, error)
	CancelRelease(ctx context.Context, principal application.Principal, reservationID int64) error
	SettlePayment(ctx context.Context, params application.SettlePaymentParams) (application.Settlement, error)
}

type ReservationHandler struct {
	service   reservationService
	responder responder
	logger    *slog.Logger
}

func NewReservationHandler(service reservationService, logger *slog.Logger) *ReservationHandler {
	base := defaultLogger(logger)
	return &ReservationHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ReservationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ReservationHandler", operation, attrs...)
}

// Reserve parks a vehicle in the first free spot of the lot. The reservation belongs to the caller
// unless an admin names another user.
func (h *ReservationHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	lotID, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidLotID)
		return
	}

	var req reserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Reserve", "lot_id", lotID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode reservation", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	owner := userID(req.UserID)
	if owner == "" {
		owner = principal.UserID
	}

	logger := h.log(r.Context(), "Reserve", "principal_id", principal.UserID, "lot_id", lotID)
	reservation, err := h.service.Reserve(r.Context(), application.ReserveParams{
		Principal: principal,
		LotID:     lotID,
		UserID:    owner,
		Vehicle: application.VehicleInput{
			VehicleNumber: req.VehicleNumber,
			Brand:         req.Brand,
			Model:         req.Model,
			Color:         req.Color,
			FuelType:      req.FuelType,
		},
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "reservation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("reservation_id", reservation.ID).InfoContext(r.Context(), "spot reserved")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, reservationResponse{Reservation: toReservationDTO(reservation)})
}

func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	reservationID, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidReservation)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	reservation, err := h.service.GetReservation(r.Context(), principal, reservationID)
	if err != nil {
		h.log(r.Context(), "Get", "reservation_id", reservationID).ErrorContext(r.Context(), "reservation lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationResponse{Reservation: toReservationDTO(reservation)})
}

func (h *ReservationHandler) Quote(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	reservationID, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidReservation)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Quote", "principal_id", principal.UserID, "reservation_id", reservationID)
	quote, err := h.service.QuoteRelease(r.Context(), principal, reservationID)
	if err != nil {
		logger.ErrorContext(r.Context(), "quote failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "release quoted")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, quoteResponse{Quote: quoteDTO{
		Token:         quote.Token,
		ReservationID: quote.ReservationID,
		ParkingAt:     formatTime(quote.ParkingAt),
		LeavingAt:     formatTime(quote.LeavingAt),
		DurationHours: quote.DurationHours.StringFixed(2),
		CostPerHour:   quote.CostPerHour.StringFixed(2),
		EstimatedCost: quote.EstimatedCost.StringFixed(2),
		ExpiresAt:     formatTime(quote.ExpiresAt),
	}})
}

func (h *ReservationHandler) CancelQuote(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	reservationID, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidReservation)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "CancelQuote", "principal_id", principal.UserID, "reservation_id", reservationID)
	if err := h.service.CancelRelease(r.Context(), principal, reservationID); err != nil {
		logger.ErrorContext(r.Context(), "quote cancel failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "release quote cancelled")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *ReservationHandler) Settle(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	reservationID, ok := pathID(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidReservation)
		return
	}

	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Settle", "reservation_id", reservationID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode payment", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	// An unknown method is left as the zero value so the service reports it as a field error.
	method, _ := application.ParsePaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod)))
	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Settle", "principal_id", principal.UserID, "reservation_id", reservationID)
	settlement, err := h.service.SettlePayment(r.Context(), application.SettlePaymentParams{
		Principal:     principal,
		ReservationID: reservationID,
		Amount:        req.Amount,
		Method:        method,
		QuoteToken:    strings.TrimSpace(req.QuoteToken),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "settlement failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("payment_id", settlement.Payment.ID).InfoContext(r.Context(), "reservation settled")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, settlementResponse{
		Reservation: toReservationDTO(settlement.Reservation),
		Payment:     toPaymentDTO(settlement.Payment),
	})
}

type reserveRequest struct {
	UserID        string `json:"user_id"`
	VehicleNumber string `json:"vehicle_number"`
	Brand         string `json:"brand"`
	Model         string `json:"model"`
	Color         string `json:"color"`
	FuelType      string `json:"fuel_type"`
}

type settleRequest struct {
	Amount        decimal.NullDecimal `json:"amount"`
	PaymentMethod string              `json:"payment_method"`
	QuoteToken    string              `json:"quote_token"`
}

type reservationResponse struct {
	Reservation reservationDTO `json:"reservation"`
}

type quoteResponse struct {
	Quote quoteDTO `json:"quote"`
}

type settlementResponse struct {
	Reservation reservationDTO `json:"reservation"`
	Payment     paymentDTO     `json:"payment"`
}

type reservationDTO struct {
	ID            int64   `json:"id"`
	SpotID        *int64  `json:"spot_id"`
	UserID        string  `json:"user_id"`
	VehicleNumber string  `json:"vehicle_number"`
	ParkingAt     string  `json:"parking_at"`
	LeavingAt     *string `json:"leaving_at"`
	CostPerHour   string  `json:"cost_per_hour"`
	Status        string  `json:"status"`
}

func toReservationDTO(reservation application.Reservation) reservationDTO {
	return reservationDTO{
		ID:            reservation.ID,
		SpotID:        reservation.SpotID,
		UserID:        reservation.UserID,
		VehicleNumber: reservation.VehicleNumber,
		ParkingAt:     formatTime(reservation.ParkingAt),
		LeavingAt:     formatTimePtr(reservation.LeavingAt),
		CostPerHour:   reservation.CostPerHour.StringFixed(2),
		Status:        reservation.Status.String(),
	}
}

type paymentDTO struct {
	ID            int64  `json:"id"`
	ReservationID int64  `json:"reservation_id"`
	Amount        string `json:"amount"`
	Method        string `json:"payment_method"`
	Status        string `json:"status"`
	PaidAt        string `json:"paid_at"`
}

func toPaymentDTO(payment application.Payment) paymentDTO {
	return paymentDTO{
		ID:            payment.ID,
		ReservationID: payment.ReservationID,
		Amount:        payment.Amount.StringFixed(2),
		Method:        payment.Method.String(),
		Status:        payment.Status.String(),
		PaidAt:        formatTime(payment.PaidAt),
	}
}

type quoteDTO struct {
	Token         string `json:"token"`
	ReservationID int64  `json:"reservation_id"`
	ParkingAt     string `json:"parking_at"`
	LeavingAt     string `json:"leaving_at"`
	DurationHours string `json:"duration_hours"`
	CostPerHour   string `json:"cost_per_hour"`
	EstimatedCost string `json:"estimated_cost"`
	ExpiresAt     string `json:"expires_at"`
}
