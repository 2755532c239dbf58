package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/georgemunganga/pos-backend/internal/apperr"
)

// ErrorBody is the payload of every rejected request.
type ErrorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func Respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// Error writes err with the status of its apperr kind.
func Error(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	Respond(w, apperr.HTTPStatus(kind), ErrorBody{Error: apperr.Message(err), Kind: kind.String()})
}

// Decode strictly decodes a JSON body into dst; unknown fields are rejected.
func Decode(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Invalid("invalid request body: %v", err)
	}
	return nil
}

// IDParam parses a positive integer URL parameter.
func IDParam(r *http.Request, name string) (int64, error) {
	return ParseID(chi.URLParam(r, name), name)
}

// ParseID parses a positive integer identifier.
func ParseID(raw, name string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("%s must be a positive integer", name)
	}
	return id, nil
}

// OptionalID parses a query parameter, returning 0 when it is absent.
func OptionalID(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	return ParseID(raw, name)
}

// OptionalInt parses a non-negative query parameter, returning def when absent.
func OptionalInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Invalid("%s must be a non-negative integer", name)
	}
	return n, nil
}

// OptionalTime parses an RFC 3339 timestamp or a plain date (midnight UTC)
// from the query string, returning nil when it is absent.
func OptionalTime(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, apperr.Invalid("%s must be an RFC 3339 time or YYYY-MM-DD date", name)
}

// Bearer extracts the token from an "Authorization: Bearer <token>" header.
func Bearer(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		return "", apperr.Unauthorized("missing bearer token")
	}
	return h[len(prefix):], nil
}
