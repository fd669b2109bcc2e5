package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"creatorstudio/internal/llm"
	"creatorstudio/internal/middleware"
	"creatorstudio/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// requireUser writes 401 and returns "" when the request is unauthenticated.
func requireUser(w http.ResponseWriter, r *http.Request) string {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
	}
	return userID
}

// decode reads a JSON body into dst and validates it. It writes 400 and
// returns false on failure.
func decode(w http.ResponseWriter, r *http.Request, validate *validator.Validate, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, logger zerolog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Msg("failed to encode response")
	}
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrInvalidKind),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidAPIKey),
		errors.Is(err, service.ErrUnknownProvider):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrQuotaExceeded):
		return http.StatusPaymentRequired
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, service.ErrPaymentNotPending):
		return http.StatusConflict
	case errors.Is(err, llm.ErrInvalidJSON), errors.Is(err, llm.ErrEmptyResponse):
		return http.StatusBadGateway
	case errors.Is(err, llm.ErrProviderUnavailable), errors.Is(err, service.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail logs server errors and writes err with its mapped status. Client
// errors carry their message; server errors get a generic one.
func fail(w http.ResponseWriter, logger zerolog.Logger, err error, msg string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Msg(msg)
		http.Error(w, msg, status)
		return
	}
	logger.Debug().Err(err).Int("status", status).Msg(msg)
	http.Error(w, err.Error(), status)
}

// pageParams reads limit and offset query parameters; invalid values are 0.
func pageParams(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}
