// Package metrics provides Prometheus metrics for the ingestion and forecast pipelines.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	// Ingestion metrics
	IngestionRuns     *prometheus.CounterVec
	SnapshotsSaved    *prometheus.CounterVec
	SnapshotsFailed   *prometheus.CounterVec
	RowsSkipped       *prometheus.CounterVec
	IngestionDuration *prometheus.HistogramVec

	// Forecast metrics
	ForecastOutcomes  *prometheus.CounterVec
	PredictorDuration prometheus.Histogram
	ForecastQueueSize prometheus.Gauge

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
}

// New registers collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		IngestionRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mkrew_ingestion_runs_total",
			Help: "Ingestion runs by source and outcome",
		}, []string{"source", "outcome"}),
		SnapshotsSaved: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mkrew_snapshots_saved_total",
			Help: "Inventory snapshots persisted",
		}, []string{"source"}),
		SnapshotsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mkrew_snapshots_failed_total",
			Help: "Inventory snapshots that could not be persisted",
		}, []string{"source"}),
		RowsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mkrew_scrape_rows_skipped_total",
			Help: "Page rows skipped during parsing",
		}, []string{"source", "reason"}),
		IngestionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mkrew_ingestion_duration_seconds",
			Help:    "Duration of a single source ingestion",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"source"}),
		ForecastOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mkrew_forecast_requests_total",
			Help: "Forecast requests by terminal status",
		}, []string{"status"}),
		PredictorDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mkrew_predictor_duration_seconds",
			Help:    "Predictor call latency",
			Buckets: prometheus.DefBuckets,
		}),
		ForecastQueueSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "mkrew_forecast_queue_size",
			Help: "Forecast requests waiting for a worker",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mkrew_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"method", "route", "code"}),
	}
}

// RowSkipped matches scraper.Options.OnRowSkipped.
func (m *Metrics) RowSkipped(source, reason string) {
	m.RowsSkipped.WithLabelValues(source, reason).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
