// Package handler contains the JSON HTTP handlers for the Hearth API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/hearth/internal/auth"
	"github.com/DukeRupert/hearth/internal/domain"
	"github.com/google/uuid"
)

// maxBodyBytes caps request bodies on every JSON endpoint.
const maxBodyBytes = 1 << 20

// writeJSON writes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a single JSON object from the request body into dst.
// Unknown fields and trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	const op = "handler.decode"

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return domain.Invalid(op, "request body is too large")
		}
		return domain.Invalid(op, fmt.Sprintf("malformed JSON body: %v", err))
	}
	if dec.More() {
		return domain.Invalid(op, "request body must contain a single JSON object")
	}
	return nil
}

// pathUUID parses a UUID path value.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, domain.Invalid("handler.path", fmt.Sprintf("%s must be a UUID", name))
	}
	return id, nil
}

// actor returns the user resolved by the identity middleware. Routes that
// call it are wrapped in RequireUser, so a missing user is answered with 401
// rather than a panic.
func actor(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*domain.User, bool) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, logger)
		return nil, false
	}
	return user, true
}
