package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"tableserve/internal/order"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Msg("write response failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps the lifecycle error taxonomy onto HTTP statuses.
// 409 for illegal transitions keeps "exists but can't do that" distinct
// from 404.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, order.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, order.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		logger.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
