package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ternarybob/claimlens/internal/interfaces"
)

type contextKey string

const identityContextKey contextKey = "claimlens.identity"

// WithIdentity attaches the verified caller identity to the request context
func WithIdentity(ctx context.Context, identity *interfaces.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFrom returns the caller identity the auth middleware attached,
// or nil when the request never passed through it
func IdentityFrom(ctx context.Context) *interfaces.Identity {
	identity, _ := ctx.Value(identityContextKey).(*interfaces.Identity)
	return identity
}

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes the standard failure envelope with a mapped status code.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// WriteServiceError maps service-layer sentinel errors onto HTTP status
// codes and writes the failure envelope
func WriteServiceError(w http.ResponseWriter, err error) error {
	return WriteError(w, StatusForError(err), err.Error())
}

// StatusForError translates the service error taxonomy into HTTP status codes
func StatusForError(err error) int {
	switch {
	case errors.Is(err, interfaces.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, interfaces.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, interfaces.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// QueryLimit reads an integer query parameter, falling back when absent
// or unparseable
func QueryLimit(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
