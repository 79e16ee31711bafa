package handler

// Every response body uses one envelope:
//
//	{"success": true,  "data": {...}}
//	{"success": true,  "message": "Logged out successfully"}
//	{"success": false, "error": "Invalid email or password"}
//
// WHY AN ENVELOPE?
// A client can branch on "success" before it knows which endpoint it called
// or what shape "data" has. Errors always carry a human readable "error"
// string, so a UI can show it as is without a per-endpoint error parser.
// The HTTP status still carries the machine readable outcome.
//
// writeError is the only place where application errors become HTTP
// statuses. Services return apperror values; handlers never pick status
// codes for failures themselves.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/neoori/profile-api/internal/apperror"
)

// Envelope is the JSON body of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// writeJSON sends v with the given status. Headers must be set before the
// status is written.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			// Headers are already sent; logging is all that is left.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{Success: true, Message: message})
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{Success: false, Error: message})
}

// writeError maps an application error to its HTTP status:
//
//	ErrValidation   → 400
//	ErrUnauthorized → 401
//	ErrForbidden    → 403
//	ErrNotFound     → 404
//	ErrConflict     → 409
//
// Anything else is logged and answered with a generic 500 so internal
// details never reach the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
		}
		if status != http.StatusInternalServerError {
			writeFailure(w, status, appErr.Message)
			return
		}
	}

	slog.ErrorContext(r.Context(), "request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeFailure(w, http.StatusInternalServerError, "Internal server error")
}
