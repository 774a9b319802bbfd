package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ghusn/apiserver/internal/autherr"
	"github.com/ghusn/apiserver/internal/services"
	"github.com/ghusn/apiserver/internal/store"
	"github.com/ghusn/apiserver/types"
	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation"
	"go.uber.org/zap"
)

// UserHandler serves changes to the current user's profile, email and
// password.
type UserHandler struct {
	accounts *services.AccountService
	logger   *zap.Logger
}

func NewUserHandler(accounts *services.AccountService, logger *zap.Logger) *UserHandler {
	return &UserHandler{accounts: accounts, logger: logger}
}

// UserRouter registers /users/me routes. Every route requires a session.
func UserRouter(r chi.Router, accounts *services.AccountService, logger *zap.Logger) {
	handler := NewUserHandler(accounts, logger)

	r.Use(RequireAuth(accounts, logger))
	r.Patch("/profile", handler.UpdateProfile)
	r.Post("/email", handler.UpdateEmailRequest)
	r.Post("/email/{token}", handler.UpdateEmail)
	r.Post("/password", handler.PasswordChangeRequest)
	r.Post("/password/{token}", handler.ChangePassword)
}

// UpdateProfile changes the username.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, ok := currentUser(w, r, h.accounts, h.logger)
	if !ok {
		return
	}

	if err := h.accounts.UpdateProfile(r.Context(), &user, req.Username); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateEmailRequest mails a change-email link to the new address.
func (h *UserHandler) UpdateEmailRequest(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, ok := currentUser(w, r, h.accounts, h.logger)
	if !ok {
		return
	}

	if err := h.accounts.UpdateEmailRequest(r.Context(), user, req.Email); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusAccepted, "an email with instructions to confirm your new address has been sent")
}

// UpdateEmail redeems a change-email token.
func (h *UserHandler) UpdateEmail(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.accounts, h.logger)
	if !ok {
		return
	}

	if err := h.accounts.UpdateEmail(r.Context(), &user, chi.URLParam(r, "token")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// PasswordChangeRequest mails a change-password link after checking the
// current password.
func (h *UserHandler) PasswordChangeRequest(w http.ResponseWriter, r *http.Request) {
	var req PasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, ok := currentUser(w, r, h.accounts, h.logger)
	if !ok {
		return
	}

	err := h.accounts.PasswordChangeRequest(r.Context(), user, req.Password)
	if errors.Is(err, autherr.ErrPasswordMismatch) {
		writeError(w, http.StatusForbidden, "current password is incorrect")
		return
	}
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusAccepted, "an email with instructions to change your password has been sent")
}

// ChangePassword redeems a change-password token.
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req PasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, ok := currentUser(w, r, h.accounts, h.logger)
	if !ok {
		return
	}

	if err := h.accounts.ChangePassword(r.Context(), &user, chi.URLParam(r, "token"), req.Password); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "your password has been updated")
}

// currentUser loads the user RequireAuth put in the context. It writes the
// error response itself when that fails.
func currentUser(w http.ResponseWriter, r *http.Request, accounts *services.AccountService, logger *zap.Logger) (types.User, bool) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return types.User{}, false
	}

	user, err := accounts.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return types.User{}, false
		}
		logger.Error("load current user failed", zap.Int("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return types.User{}, false
	}
	return user, true
}

type ProfileRequest struct {
	Username string `json:"username"`
}

func (req *ProfileRequest) Validate() error {
	req.Username = strings.TrimSpace(req.Username)
	return validation.ValidateStruct(req,
		validation.Field(&req.Username, services.UsernameRules...),
	)
}
