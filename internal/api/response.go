package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"mkrew_service/internal/domain/model"
)

type errorResponse struct {
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage"`
	RequestID    string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, errorResponse{
		ErrorMessage: message,
		RequestID:    requestIDFromContext(r.Context()),
	})
}

// writeDomainError переводит ошибки сервисов в HTTP-статус.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrSourceNotFound),
		errors.Is(err, model.ErrForecastNotFound),
		errors.Is(err, model.ErrLocationNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidInput),
		errors.Is(err, model.ErrSourceDisabled),
		errors.Is(err, model.ErrNoActiveModel):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrRequestNotClaimable):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
