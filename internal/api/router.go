package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"mkrew_service/internal/metrics"
)

// NewRouter собирает HTTP-маршруты сервиса. m может быть nil, тогда /metrics не публикуется.
func NewRouter(h *Handler, m *metrics.Metrics, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(accessLog(logger, m))
	r.Use(middleware.Recoverer)

	r.Get("/api/health", h.Health)
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Route("/api/scraper", func(r chi.Router) {
		r.Post("/trigger-all", h.TriggerAll)
		r.Post("/trigger/{code}", h.TriggerOne)
		r.Get("/runs", h.Runs)
	})

	r.Route("/api/blood-inventory", func(r chi.Router) {
		r.Get("/current", h.CurrentAll)
		r.Get("/current/{code}", h.CurrentBySource)
		r.Get("/history/{code}", h.History)
	})

	r.Route("/api/sources", func(r chi.Router) {
		r.Get("/", h.ListSources)
		r.Get("/nearest", h.NearestSources)
		r.Post("/{code}/locate", h.LocateSource)
	})

	r.Route("/api/forecast", func(r chi.Router) {
		r.Post("/create", h.CreateForecast)
		r.Get("/all", h.ListForecasts)
		r.Get("/models", h.ListModels)
		r.Get("/models/predictor", h.PredictorModels)
		r.Get("/source/{code}", h.ListForecastsBySource)
		r.Get("/{id}", h.GetForecast)
		r.Delete("/{id}", h.DeleteForecast)
	})

	return r
}
