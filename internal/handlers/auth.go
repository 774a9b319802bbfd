package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ghusn/apiserver/internal/autherr"
	"github.com/ghusn/apiserver/internal/services"
	"github.com/ghusn/apiserver/types"
	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation"
	"go.uber.org/zap"
)

// AuthHandler serves registration, login, confirmation and password reset.
type AuthHandler struct {
	accounts *services.AccountService
	logger   *zap.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(accounts *services.AccountService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, logger: logger}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, accounts *services.AccountService, logger *zap.Logger) {
	handler := NewAuthHandler(accounts, logger)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/reset-password", handler.ResetPasswordRequest)
	r.Post("/reset-password/{token}", handler.ResetPassword)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(accounts, logger))
		r.Get("/me", handler.Me)
		r.Post("/confirm", handler.ResendConfirmation)
		r.Post("/confirm/{token}", handler.Confirm)
	})
}

// RequireAuth resolves the bearer session token and injects the user id
// into the request context.
func RequireAuth(accounts *services.AccountService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			user, err := accounts.SessionUser(r.Context(), tokenString)
			if err != nil {
				if autherr.IsAuth(err) {
					writeError(w, http.StatusUnauthorized, "unauthorized")
					return
				}
				logger.Error("resolve session failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), user.ID)))
		})
	}
}

// Register creates a new account, mails a confirmation link and returns a
// session token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.accounts.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.respondWithSession(w, r, http.StatusCreated, user)
}

// Login verifies credentials and returns a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.respondWithSession(w, r, http.StatusOK, user)
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.accounts, h.logger)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ResendConfirmation mails a fresh confirmation link.
func (h *AuthHandler) ResendConfirmation(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.accounts, h.logger)
	if !ok {
		return
	}
	if user.Confirmed {
		writeMessage(w, http.StatusOK, "account already confirmed")
		return
	}
	if err := h.accounts.SendConfirmationMail(r.Context(), user); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusAccepted, "a new confirmation email has been sent")
}

// Confirm redeems a confirmation token for the current user.
func (h *AuthHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.accounts, h.logger)
	if !ok {
		return
	}

	changed, err := h.accounts.ConfirmUser(r.Context(), &user, chi.URLParam(r, "token"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if !changed {
		writeMessage(w, http.StatusOK, "account already confirmed")
		return
	}
	writeMessage(w, http.StatusOK, "account confirmed")
}

// ResetPasswordRequest mails a reset link. The answer is the same whether
// or not the address belongs to an account.
func (h *AuthHandler) ResetPasswordRequest(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.accounts.ResetPasswordRequest(r.Context(), req.Email)
	if err != nil && !errors.Is(err, autherr.ErrUserNotFound) {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusAccepted, "check your inbox for instructions to reset your password")
}

// ResetPassword redeems a reset token.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req PasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.accounts.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "your password has been updated")
}

func (h *AuthHandler) respondWithSession(w http.ResponseWriter, r *http.Request, status int, user types.User) {
	token, err := h.accounts.IssueSession(user)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, status, AuthResponse{Token: token, User: user})
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (req *RegisterRequest) Validate() error {
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	return validation.ValidateStruct(req,
		validation.Field(&req.Email, services.EmailRules...),
		validation.Field(&req.Username, services.UsernameRules...),
		validation.Field(&req.Password, services.PasswordRules...),
	)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req *LoginRequest) Validate() error {
	req.Email = strings.TrimSpace(req.Email)
	return validation.ValidateStruct(req,
		validation.Field(&req.Email, validation.Required),
		validation.Field(&req.Password, validation.Required),
	)
}

type EmailRequest struct {
	Email string `json:"email"`
}

func (req *EmailRequest) Validate() error {
	req.Email = strings.TrimSpace(req.Email)
	return validation.ValidateStruct(req,
		validation.Field(&req.Email, services.EmailRules...),
	)
}

type PasswordRequest struct {
	Password string `json:"password"`
}

func (req *PasswordRequest) Validate() error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Password, services.PasswordRules...),
	)
}

type AuthResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}
