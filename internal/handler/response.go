package handler

// Every JSON error body has one shape:
//
//	{"error": "not_found", "message": "place not found with id abc123"}
//
// The page shows message in its dismissible message box, whatever the status.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/park-places/internal/apperror"
	"github.com/sakif/park-places/internal/geo"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`         // Human-readable description
	Field   string `json:"field,omitempty"` // Form field at fault, for validation errors
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// You MUST set headers and status code BEFORE writing the body.
// Once you call w.Write() (which Encode does internally), the headers are sent.
// Any header changes after that are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// If encoding fails, the headers are already sent: we can only log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// decodeJSON reads a single JSON object from the body into dst.
// Failures come back as validation errors so writeError answers 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.ValidationFailed("body", "request body must not be empty")
		}
		return apperror.ValidationFailed("body", fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

// statusOf maps an error to its HTTP status and machine-readable type.
//
// ERROR MAPPING:
// This is where domain errors (from the service layer) get translated to HTTP.
// The service layer never knows about status codes.
//
// errors.Is() walks the whole chain, including both branches of an
// *apperror.OpError (the kind sentinel AND the backend cause).
func statusOf(err error) (int, string) {
	var geoErr *geo.Error
	switch {
	case errors.As(err, &geoErr):
		return http.StatusUnprocessableEntity, "geolocation_" + geoErr.Kind.String()
	case errors.Is(err, geo.ErrSuperseded):
		return http.StatusConflict, "superseded"
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrConfirmationRequired):
		return http.StatusPreconditionRequired, "confirmation_required"
	case errors.Is(err, apperror.ErrBusy):
		return http.StatusConflict, "busy"
	case errors.Is(err, apperror.ErrStore):
		return http.StatusServiceUnavailable, "store_error"
	case errors.Is(err, apperror.ErrList):
		return http.StatusServiceUnavailable, "list_error"
	case errors.Is(err, apperror.ErrDelete):
		return http.StatusServiceUnavailable, "delete_error"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// userMessages are what the user reads for collaborator failures.
// The backend cause is logged, never shown.
var userMessages = map[string]string{
	"store_error":    "Error saving data. Please try again.",
	"list_error":     "Error loading saved data.",
	"delete_error":   "Error deleting data. Please try again.",
	"superseded":     "A newer location request replaced this one.",
	"internal_error": "An internal error occurred",
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// Store/list/delete failures are checked BEFORE not-found: an OpError whose
// cause happens to be a NotFound is still a failed operation.
func writeError(w http.ResponseWriter, err error) {
	status, errorType := statusOf(err)

	resp := ErrorResponse{Error: errorType}
	if msg, ok := userMessages[errorType]; ok {
		// NEVER expose internal error details to the client: the raw message
		// might contain SQL, addresses or file paths.
		resp.Message = msg
	} else {
		resp.Message = err.Error()
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			resp.Message = appErr.Message
			resp.Field = appErr.Field
		}
	}

	writeJSON(w, status, resp)
}
