package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"message": message})
}

// respondError maps the core failure taxonomy onto status codes. Anything
// outside the taxonomy is a 500 with the given fallback message; the detail
// goes to the log, not the client.
func respondError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, core.ErrValidation):
		respondMessage(w, http.StatusBadRequest, "Invalid input data")
	case errors.Is(err, core.ErrAuth):
		respondMessage(w, http.StatusUnauthorized, "Invalid username or password")
	case errors.Is(err, core.ErrConflict):
		respondMessage(w, http.StatusConflict, "Username already exists")
	case errors.Is(err, core.ErrNotFound):
		respondMessage(w, http.StatusNotFound, "Not found")
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), fallback, log.FieldError, err)
		respondMessage(w, http.StatusInternalServerError, fallback)
	}
}

// decodeJSON rejects malformed or oversized bodies with core.ErrValidation so
// handlers fold decode failures into the 400 path.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return core.Validationf("malformed request body")
	}
	return nil
}
