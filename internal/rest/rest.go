package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/finbot-app/finbot/internal/apperr"
	log "github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteJSON encodes body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}

// WriteError translates err into a status code following the apperr taxonomy.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	response := ErrorResponse{Error: http.StatusText(status), Details: err.Error()}

	var validationErr *apperr.ValidationError
	if errors.As(err, &validationErr) {
		response.Error = "Invalid " + validationErr.Field
		response.Details = validationErr.Reason
	}
	if status == http.StatusInternalServerError {
		log.Errorf("request failed: %v", err)
	}
	WriteJSON(w, status, response)
}

// BadRequest writes a 400 with a short message and details.
func BadRequest(w http.ResponseWriter, message, details string) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Details: details})
}

func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

const DateLayout = "2006-01-02"

// ParseDate accepts a calendar date or an RFC 3339 timestamp. Failures are validation errors
// on field.
func ParseDate(field, value string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, apperr.Invalid(field, "must be a date in YYYY-MM-DD or RFC 3339 format")
	}
	return t, nil
}

// QueryInt reads an optional integer query parameter, returning def when it is absent.
func QueryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Invalid(name, "must be an integer")
	}
	return v, nil
}
