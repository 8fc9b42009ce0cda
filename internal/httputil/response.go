// Package httputil holds JSON response helpers for the HTTP edge.
package httputil

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/tombee/opspilot/pkg/errors"
)

// MaxRequestBytes bounds request bodies accepted by DecodeJSON.
const MaxRequestBytes = 1 << 20

// WriteJSON writes a JSON response with the given status code and data.
// If encoding fails, it logs the error.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to write JSON response", slog.Any("error", err))
	}
}

// WriteError writes a JSON error response with the given status code and message.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{
		"error": message,
	})
}

// WriteErr writes err with the status its kind maps to.
func WriteErr(w http.ResponseWriter, err error) {
	WriteJSON(w, StatusFor(err), map[string]string{
		"error": err.Error(),
		"kind":  string(errors.KindOf(err)),
	})
}

// StatusFor maps an error to an HTTP status.
func StatusFor(err error) int {
	if errors.IsNotFound(err) {
		return http.StatusNotFound
	}
	switch errors.KindOf(err) {
	case errors.KindValidation:
		return http.StatusBadRequest
	case errors.KindAccess:
		return http.StatusForbidden
	case errors.KindTransport, errors.KindAPI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON decodes the request body into v. An empty body, malformed JSON
// or an oversized body is a *errors.ValidationError.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxRequestBytes+1))
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return &errors.ValidationError{Field: "body", Message: "request body is empty"}
		}
		return &errors.ValidationError{Field: "body", Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if dec.InputOffset() > MaxRequestBytes {
		return &errors.ValidationError{Field: "body", Message: "request body is too large"}
	}
	return nil
}
