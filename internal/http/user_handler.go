package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/parking-manager/internal/application"
)

type accountService interface {
	Register(ctx context.Context, params application.RegisterParams) (application.User, error)
	GetUser(ctx context.Context, principal application.Principal, userID string) (application.User, error)
	UpdateUser(ctx context.Context, params application.UpdateUserParams) (application.User, error)
	DeleteUser(ctx context.Context, principal application.Principal, userID string) error
	ListUsers(ctx context.Context, principal application.Principal) ([]application.User, error)
	GetProfile(ctx context.Context, principal application.Principal, userID string) (application.Profile, error)
	UpdateProfile(ctx context.Context, params application.UpdateProfileParams) (application.Profile, error)
	ScheduleDeletion(ctx context.Context, principal application.Principal, userID string) (application.User, error)
	CancelDeletion(ctx context.Context, principal application.Principal, userID string) (application.User, error)
}

type userReports interface {
	FilterUsers(ctx context.Context, principal application.Principal, query string) ([]application.User, error)
	UserReservationHistory(ctx context.Context, principal application.Principal, userID string) ([]application.ReservationHistoryEntry, error)
	UserSpendSummary(ctx context.Context, principal application.Principal, userID string) (application.UserSpend, error)
}

type UserHandler struct {
	service   accountService
	reports   userReports
	responder responder
	logger    *slog.Logger
}

func NewUserHandler(service accountService, reports userReports, logger *slog.Logger) *UserHandler {
	base := defaultLogger(logger)
	return &UserHandler{service: service, reports: reports, responder: newResponder(base), logger: base}
}

func (h *UserHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "UserHandler", operation, attrs...)
}

// target resolves the principal and the {id} path parameter, writing a 400 when the id is missing.
func (h *UserHandler) target(w http.ResponseWriter, r *http.Request, operation string) (application.Principal, string, bool) {
	principal, _ := PrincipalFromContext(r.Context())
	userID, ok := pathUserID(r)
	if !ok {
		h.log(r.Context(), operation, "error_kind", "bad_request").ErrorContext(r.Context(), "missing user id")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return principal, "", false
	}
	return principal, userID, true
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Register", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode registration", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Register")
	user, err := h.service.Register(r.Context(), application.RegisterParams{Input: req.toInput()})
	if err != nil {
		logger.ErrorContext(r.Context(), "registration failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("user_id", user.ID).InfoContext(r.Context(), "user registered")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, userResponse{User: toUserDTO(user)})
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	logger := h.log(r.Context(), "List", "principal_id", principal.UserID, "query", query)

	var (
		users []application.User
		err   error
	)
	if query != "" && h.reports != nil {
		users, err = h.reports.FilterUsers(r.Context(), principal, query)
	} else {
		users, err = h.service.ListUsers(r.Context(), principal)
	}
	if err != nil {
		logger.ErrorContext(r.Context(), "user list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(users)).InfoContext(r.Context(), "users listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listUsersResponse{Users: toUserDTOs(users)})
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	principal, userID, ok := h.target(w, r, "Get")
	if !ok {
		return
	}

	user, err := h.service.GetUser(r.Context(), principal, userID)
	if err != nil {
		h.log(r.Context(), "Get", "user_id", userID).ErrorContext(r.Context(), "user lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	principal, userID, ok := h.target(w, r, "Update")
	if !ok {
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "user_id", userID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode user update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "user_id", userID)
	user, err := h.service.UpdateUser(r.Context(), application.UpdateUserParams{
		Principal: principal,
		UserID:    userID,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "user update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "user updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	principal, userID, ok := h.target(w, r, "Delete")
	if !ok {
		return
	}

	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "user_id", userID)
	if err := h.service.DeleteUser(r.Context(), principal, userID); err != nil {
		logger.ErrorContext(r.Context(), "user delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "user deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	principal, userID, ok := h.target(w, r, "GetProfile")
	if !ok {
		return
	}

	profile, err := h.service.GetProfile(r.Context(), principal, userID)
	if err != nil {
		h.log(r.Context(), "GetProfile", "user_id", userID).ErrorContext(r.Context(), "profile lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, profileResponse{Profile: toProfileDTO(profile)})
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	principal, userID, ok := h.target(w, r, "UpdateProfile")
	if !ok {
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "UpdateProfile", "user_id", userID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode profile", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "UpdateProfile", "principal_id", principal.UserID, "user_id", userID)
	profile, err := h.service.UpdateProfile(r.Context(), application.UpdateProfileParams{
		Principal: principal,
		UserID:    userID,
		Bio:       req.Bio,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "profile update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "profile updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, profileResponse{Profile: toProfileDTO(profile)})
}

func (h *UserHandler) ScheduleDeletion(w http.ResponseWriter, r *http.Request) {
	h.changeDeletion(w, r, "ScheduleDeletion", h.service.ScheduleDeletion)
}

func (h *UserHandler) CancelDeletion(w http.ResponseWriter, r *http.Request) {
	h.changeDeletion(w, r, "CancelDeletion", h.service.CancelDeletion)
}

func (h *UserHandler) changeDeletion(w http.ResponseWriter, r *http.Request, operation string, apply func(context.Context, application.Principal, string) (application.User, error)) {
	principal, userID, ok := h.target(w, r, operation)
	if !ok {
		return
	}

	logger := h.log(r.Context(), operation, "principal_id", principal.UserID, "user_id", userID)
	user, err := apply(r.Context(), principal, userID)
	if err != nil {
		logger.ErrorContext(r.Context(), "deletion change failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "deletion schedule changed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

func (h *UserHandler) History(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.reports == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	principal, userID, ok := h.target(w, r, "History")
	if !ok {
		return
	}

	entries, err := h.reports.UserReservationHistory(r.Context(), principal, userID)
	if err != nil {
		h.log(r.Context(), "History", "user_id", userID).ErrorContext(r.Context(), "history lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]historyDTO, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toHistoryDTO(entry))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, historyResponse{Reservations: out})
}

func (h *UserHandler) Spend(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.reports == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	principal, userID, ok := h.target(w, r, "Spend")
	if !ok {
		return
	}

	spend, err := h.reports.UserSpendSummary(r.Context(), principal, userID)
	if err != nil {
		h.log(r.Context(), "Spend", "user_id", userID).ErrorContext(r.Context(), "spend lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, spendDTO{
		UserID:             spend.UserID,
		TotalPaid:          spend.TotalPaid.StringFixed(2),
		PaymentCount:       spend.PaymentCount,
		ActiveReservations: spend.ActiveReservations,
	})
}

type registerRequest struct {
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phone_number"`
	Address     string `json:"address"`
	PinCode     string `json:"pin_code"`
}

func (r registerRequest) toInput() application.RegisterInput {
	return application.RegisterInput{
		FullName:    r.FullName,
		Email:       r.Email,
		Password:    r.Password,
		PhoneNumber: r.PhoneNumber,
		Address:     r.Address,
		PinCode:     r.PinCode,
	}
}

type updateUserRequest struct {
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
	Address     string `json:"address"`
	PinCode     string `json:"pin_code"`
	Password    string `json:"password"`
}

func (r updateUserRequest) toInput() application.UserUpdate {
	return application.UserUpdate{
		FullName:    r.FullName,
		PhoneNumber: r.PhoneNumber,
		Address:     r.Address,
		PinCode:     r.PinCode,
		Password:    r.Password,
	}
}

type profileRequest struct {
	Bio       string `json:"bio"`
	AvatarURL string `json:"avatar_url"`
}

type userResponse struct {
	User userDTO `json:"user"`
}

type listUsersResponse struct {
	Users []userDTO `json:"users"`
}

type profileResponse struct {
	Profile profileDTO `json:"profile"`
}

type historyResponse struct {
	Reservations []historyDTO `json:"reservations"`
}

type userDTO struct {
	ID                string  `json:"id"`
	FullName          string  `json:"full_name"`
	Email             string  `json:"email"`
	PhoneNumber       string  `json:"phone_number,omitempty"`
	Address           string  `json:"address,omitempty"`
	PinCode           string  `json:"pin_code,omitempty"`
	Role              string  `json:"role"`
	IsActive          bool    `json:"is_active"`
	ScheduledDeleteAt *string `json:"scheduled_delete_at,omitempty"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

func toUserDTO(user application.User) userDTO {
	return userDTO{
		ID:                user.ID,
		FullName:          user.FullName,
		Email:             user.Email,
		PhoneNumber:       user.PhoneNumber,
		Address:           user.Address,
		PinCode:           user.PinCode,
		Role:              user.Role.String(),
		IsActive:          user.IsActive,
		ScheduledDeleteAt: formatTimePtr(user.ScheduledDeleteAt),
		CreatedAt:         formatTime(user.CreatedAt),
		UpdatedAt:         formatTime(user.UpdatedAt),
	}
}

func toUserDTOs(users []application.User) []userDTO {
	out := make([]userDTO, 0, len(users))
	for _, user := range users {
		out = append(out, toUserDTO(user))
	}
	return out
}

type profileDTO struct {
	UserID    string `json:"user_id"`
	Bio       string `json:"bio"`
	AvatarURL string `json:"avatar_url"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func toProfileDTO(profile application.Profile) profileDTO {
	return profileDTO{
		UserID:    profile.UserID,
		Bio:       profile.Bio,
		AvatarURL: profile.AvatarURL,
		UpdatedAt: formatTime(profile.UpdatedAt),
	}
}

type historyDTO struct {
	Reservation reservationDTO `json:"reservation"`
	SpotNumber  string         `json:"spot_number"`
	LotID       *int64         `json:"lot_id,omitempty"`
	LotName     string         `json:"lot_name,omitempty"`
	Payment     *paymentDTO    `json:"payment,omitempty"`
}

func toHistoryDTO(entry application.ReservationHistoryEntry) historyDTO {
	dto := historyDTO{
		Reservation: toReservationDTO(entry.Reservation),
		SpotNumber:  entry.SpotNumber,
		LotID:       entry.LotID,
		LotName:     entry.LotName,
	}
	if entry.Payment != nil {
		payment := toPaymentDTO(*entry.Payment)
		dto.Payment = &payment
	}
	return dto
}

type spendDTO struct {
	UserID             string `json:"user_id"`
	TotalPaid          string `json:"total_paid"`
	PaymentCount       int    `json:"payment_count"`
	ActiveReservations int    `json:"active_reservations"`
}
