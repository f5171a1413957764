package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/descriptor"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/service"
	"go.uber.org/zap"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a size-limited JSON request body into target.
func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadBytes)
	return json.NewDecoder(r.Body).Decode(target)
}

// statusForError maps service errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrMissingFields),
		errors.Is(err, service.ErrInvalidImage),
		errors.Is(err, service.ErrNoFaceDetected),
		errors.Is(err, descriptor.ErrInvalidDescriptor),
		errors.Is(err, ledger.ErrInvalidPeriod),
		errors.Is(err, ledger.ErrInvalidDate),
		errors.Is(err, ledger.ErrMissingSubject):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrDuplicateOwner):
		return http.StatusConflict
	case errors.Is(err, service.ErrOwnerNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrStorageUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError writes err with its mapped status. Server-side
// failures are logged and their details hidden from the client.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	status := statusForError(err)
	switch status {
	case http.StatusServiceUnavailable:
		logger.Error(op+" failed", zap.Error(err))
		respondError(w, status, "storage unavailable, try again later")
	case http.StatusInternalServerError:
		logger.Error(op+" failed", zap.Error(err))
		respondError(w, status, "internal error")
	default:
		respondError(w, status, err.Error())
	}
}
