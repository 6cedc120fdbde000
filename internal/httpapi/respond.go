package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/chanjin5212/myfarm-sub001/internal/storeerr"
)

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Retryable tells clients whether the same request may be retried as-is.
	// Validation and conflict rejections are final; infrastructure failures
	// are safe to retry.
	Retryable bool `json:"retryable"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string, retryable bool) {
	respondJSON(w, status, errorResponse{Error: errorBody{
		Code:      code,
		Message:   message,
		Retryable: retryable,
	}})
}

// respondServiceError maps the error taxonomy onto HTTP statuses. The
// boundary contract: validation and conflict mean "fix your request or
// refresh your state", external gateway failures mean "the charge did not
// happen", persistence failures mean "try again".
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storeerr.ErrValidation):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error(), false)
	case errors.Is(err, storeerr.ErrConflict):
		respondError(w, http.StatusConflict, "conflict", err.Error(), false)
	case errors.Is(err, storeerr.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error(), false)
	case errors.Is(err, storeerr.ErrExternal):
		respondError(w, http.StatusBadGateway, "external_service_error", err.Error(), false)
	case errors.Is(err, storeerr.ErrPersistence):
		respondError(w, http.StatusInternalServerError, "internal_error", "temporary failure, please retry", true)
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "unexpected failure", true)
	}
}
