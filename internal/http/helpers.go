package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"finny/internal/core"
)

// errorBody is the JSON shape for every non-2xx response.
type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

func writeFieldError(w http.ResponseWriter, field, message string) {
	writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: message, Field: field})
}

// validationField maps a domain validation error to the request field it
// concerns, so 422 responses can point at the offending input.
func validationField(err error) (string, bool) {
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		return "amount", true
	case errors.Is(err, core.ErrEmptyCategory):
		return "category", true
	case errors.Is(err, core.ErrEmptyUsername):
		return "name", true
	}
	return "", false
}

// decodeBody decodes a JSON request body into dst, rejecting unknown fields
// and trailing garbage.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected trailing data")
	}
	return nil
}

// parseAmount accepts both JSON numbers and decimal strings for money
// fields, converting to cents with half-up rounding.
func parseAmount(raw json.Number) (core.Money, error) {
	cents, err := core.ParseDecimalToCents(raw.String())
	if err != nil {
		return core.Money{}, err
	}
	return core.Money{Cents: cents}, nil
}

// userID resolves the caller identity: X-User-ID header when present,
// otherwise the configured default id.
func (s *Server) userID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return s.defaultUserID
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
