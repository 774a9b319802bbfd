package handlers

import (
	"errors"
	"net/http"

	"github.com/ghusn/apiserver/internal/autherr"
	"go.uber.org/zap"
)

const (
	msgInvalidCredentials = "invalid email or password"
	msgInvalidToken       = "invalid or expired token"
)

// writeServiceError maps an account error to a response. Login and token
// failures share one message per category so callers cannot tell which
// check failed. Anything outside the taxonomy is logged and hidden.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, autherr.ErrLogin):
		writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
	case errors.Is(err, autherr.ErrEmailAlreadyExists):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:  "email already registered",
			Fields: map[string]string{"email": "already registered"},
		})
	case errors.Is(err, autherr.ErrUsernameAlreadyExists):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:  "username already in use",
			Fields: map[string]string{"username": "already in use"},
		})
	case errors.Is(err, autherr.ErrToken):
		writeError(w, http.StatusBadRequest, msgInvalidToken)
	default:
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("route", routePattern(r)),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
