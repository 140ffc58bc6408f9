// Package api contains the HTTP layer: routing, request binding, and response formatting.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// ─── Response envelope ────────────────────────────────────────────────────────

// envelope wraps every response body. Exactly one of Data and Error is set.
type envelope struct {
	Data  any       `json:"data,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

// apiError is the error half of the envelope. RequestID echoes chi's request
// ID so a failed call can be matched to its log line.
type apiError struct {
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	Missing   []string `json:"missing,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

// Error codes.
const (
	codeInvalidJSON     = "INVALID_JSON"
	codeValidation      = "VALIDATION_ERROR"
	codeInvalidParam    = "INVALID_PARAM"
	codeMissingFeatures = "MISSING_FEATURES"
	codeConflict        = "CONFLICT"
	codeInternal        = "INTERNAL_ERROR"
	codeUnavailable     = "UNAVAILABLE"
)

// ─── Writers ──────────────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Headers are already sent.
		slog.Warn("encode response", "status", status, "error", err)
	}
}

// respond writes a success envelope.
func respond(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Data: data})
}

// fail writes an error envelope tagged with the request ID.
func fail(w http.ResponseWriter, r *http.Request, status int, e apiError) {
	e.RequestID = middleware.GetReqID(r.Context())
	writeJSON(w, status, envelope{Error: &e})
}

// failInternal hides the cause from the client; callers log it.
func failInternal(w http.ResponseWriter, r *http.Request) {
	fail(w, r, http.StatusInternalServerError, apiError{Code: codeInternal, Message: "an unexpected error occurred"})
}
