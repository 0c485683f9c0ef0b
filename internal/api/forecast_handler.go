package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"mkrew_service/internal/core"
	"mkrew_service/internal/domain/model"
)

type CreateForecastRequest struct {
	SourceCode          string `json:"sourceCode"`
	ModelType           string `json:"modelType"`
	BloodType           string `json:"bloodType,omitempty"`
	ForecastHorizonDays int    `json:"forecastHorizonDays"`
	StartDate           string `json:"startDate,omitempty"` // YYYY-MM-DD или RFC 3339
	EndDate             string `json:"endDate,omitempty"`
	RequestedBy         string `json:"requestedBy,omitempty"`
}

func (req CreateForecastRequest) toInput() (core.CreateForecastInput, error) {
	in := core.CreateForecastInput{
		SourceCode:  req.SourceCode,
		ModelKind:   req.ModelType,
		HorizonDays: req.ForecastHorizonDays,
	}
	if req.BloodType != "" {
		bt, err := model.ParseBloodType(req.BloodType)
		if err != nil {
			return in, err
		}
		in.BloodType = &bt
	}
	var err error
	if in.WindowStart, err = parseDate(req.StartDate); err != nil {
		return in, fmt.Errorf("%w: startDate: %v", model.ErrInvalidInput, err)
	}
	if in.WindowEnd, err = parseDate(req.EndDate); err != nil {
		return in, fmt.Errorf("%w: endDate: %v", model.ErrInvalidInput, err)
	}
	if by := strings.TrimSpace(req.RequestedBy); by != "" {
		in.RequestedBy = &by
	}
	return in, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func (h *Handler) CreateForecast(w http.ResponseWriter, r *http.Request) {
	var body CreateForecastRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	in, err := body.toInput()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	req, err := h.forecasts.CreateRequest(r.Context(), in)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	status := http.StatusCreated
	if !req.Status.Terminal() {
		status = http.StatusAccepted
	}
	writeJSON(w, status, req)
}

func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	id, ok := forecastID(w, r)
	if !ok {
		return
	}
	req, err := h.forecasts.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) ListForecasts(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.forecasts.ListAll(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(reqs))
}

func (h *Handler) ListForecastsBySource(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.forecasts.ListBySource(r.Context(), sourceParam(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(reqs))
}

func (h *Handler) DeleteForecast(w http.ResponseWriter, r *http.Request) {
	id, ok := forecastID(w, r)
	if !ok {
		return
	}
	if err := h.forecasts.Delete(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.forecasts.ListModels(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(models))
}

// PredictorModels проксирует каталог моделей сервиса прогнозирования.
func (h *Handler) PredictorModels(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeError(w, r, http.StatusNotFound, "predictor catalog is not configured")
		return
	}
	models, err := h.catalog.Models(r.Context())
	if err != nil {
		writeError(w, r, http.StatusBadGateway, fmt.Sprintf("Error getting models: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, nonNil(models))
}

func forecastID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "forecast id must be a positive integer")
		return 0, false
	}
	return id, true
}
