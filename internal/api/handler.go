package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"mkrew_service/internal/core"
	"mkrew_service/internal/domain/model"
)

type IngestionAPI interface {
	IngestOne(ctx context.Context, code string) (model.IngestionRun, error)
	IngestAll(ctx context.Context) ([]model.IngestionRun, error)
	RecentRuns(ctx context.Context, code string, limit int) ([]model.IngestionRun, error)
}

type InventoryAPI interface {
	CurrentAll(ctx context.Context) ([]model.InventorySnapshot, error)
	CurrentBySource(ctx context.Context, code string) ([]model.InventorySnapshot, error)
	History(ctx context.Context, code string, bloodType *model.BloodType, days int) ([]model.InventorySnapshot, error)
}

type SourceAPI interface {
	ListSources(ctx context.Context) ([]core.SourceView, error)
	Locate(ctx context.Context, code string) (model.Source, error)
	Nearest(ctx context.Context, lat, lon float64) ([]core.SourceDistance, error)
}

type ForecastAPI interface {
	CreateRequest(ctx context.Context, in core.CreateForecastInput) (model.ForecastRequest, error)
	GetByID(ctx context.Context, id int64) (model.ForecastRequest, error)
	ListAll(ctx context.Context) ([]model.ForecastRequest, error)
	ListBySource(ctx context.Context, code string) ([]model.ForecastRequest, error)
	Delete(ctx context.Context, id int64) error
	ListModels(ctx context.Context) ([]model.ForecastModel, error)
}

// PredictorCatalog: модели, которые объявляет сам сервис прогнозирования.
type PredictorCatalog interface {
	Models(ctx context.Context) ([]model.ModelInfo, error)
}

// ScheduleControl: планировщик сбора. Ручной запуск идёт через него, чтобы
// совпадать с плановым.
type ScheduleControl interface {
	Next() time.Time
	TriggerNow(ctx context.Context) ([]model.IngestionRun, error)
}

type Handler struct {
	ingestion IngestionAPI
	inventory InventoryAPI
	sources   SourceAPI
	forecasts ForecastAPI
	scheduler ScheduleControl
	catalog   PredictorCatalog
}

func NewHandler(ingestion IngestionAPI, inventory InventoryAPI, sources SourceAPI, forecasts ForecastAPI) *Handler {
	return &Handler{
		ingestion: ingestion,
		inventory: inventory,
		sources:   sources,
		forecasts: forecasts,
	}
}

// WithScheduler добавляет в /api/health время следующего сбора и направляет
// trigger-all через планировщик.
func (h *Handler) WithScheduler(s ScheduleControl) *Handler {
	h.scheduler = s
	return h
}

func (h *Handler) WithPredictorCatalog(c PredictorCatalog) *Handler {
	h.catalog = c
	return h
}

type healthResponse struct {
	Status        string     `json:"status"`
	NextScheduled *time.Time `json:"nextScheduledRun,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "UP"}
	if h.scheduler != nil {
		if next := h.scheduler.Next(); !next.IsZero() {
			resp.NextScheduled = &next
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type triggerAllResponse struct {
	Runs      []model.IngestionRun `json:"runs"`
	Succeeded int                  `json:"succeeded"`
	Partial   int                  `json:"partial"`
	Failed    int                  `json:"failed"`
}

func (h *Handler) TriggerAll(w http.ResponseWriter, r *http.Request) {
	trigger := h.ingestion.IngestAll
	if h.scheduler != nil {
		trigger = h.scheduler.TriggerNow
	}
	runs, err := trigger(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	resp := triggerAllResponse{Runs: runs}
	for _, run := range runs {
		switch run.Outcome {
		case model.RunSuccess:
			resp.Succeeded++
		case model.RunPartial:
			resp.Partial++
		default:
			resp.Failed++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) TriggerOne(w http.ResponseWriter, r *http.Request) {
	run, err := h.ingestion.IngestOne(r.Context(), sourceParam(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 0)
	if err != nil || limit < 0 {
		writeError(w, r, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	code := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("source")))
	runs, err := h.ingestion.RecentRuns(r.Context(), code, limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// inventoryView: наблюдение с отображаемыми полями группы крови и статуса.
type inventoryView struct {
	model.InventorySnapshot
	BloodTypeSymbol   string `json:"bloodTypeSymbol"`
	StatusLevel       int    `json:"statusLevel"`
	StatusDisplayName string `json:"statusDisplayName"`
}

func toInventoryViews(snaps []model.InventorySnapshot) []inventoryView {
	out := make([]inventoryView, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, inventoryView{
			InventorySnapshot: s,
			BloodTypeSymbol:   s.BloodType.Symbol(),
			StatusLevel:       s.Status.Level(),
			StatusDisplayName: s.Status.DisplayName(),
		})
	}
	return out
}

func (h *Handler) CurrentAll(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.inventory.CurrentAll(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInventoryViews(snaps))
}

func (h *Handler) CurrentBySource(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.inventory.CurrentBySource(r.Context(), sourceParam(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInventoryViews(snaps))
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	days, err := intQuery(r, "days", 0)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "days must be an integer")
		return
	}
	var bt *model.BloodType
	// "A+" в query без кодирования приходит как "A ".
	if raw := strings.ReplaceAll(r.URL.Query().Get("bloodType"), " ", "+"); raw != "" {
		parsed, err := model.ParseBloodType(raw)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		bt = &parsed
	}
	snaps, err := h.inventory.History(r.Context(), sourceParam(r), bt, days)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInventoryViews(snaps))
}

func (h *Handler) ListSources(w http.ResponseWriter, r *http.Request) {
	views, err := h.sources.ListSources(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(views))
}

func (h *Handler) LocateSource(w http.ResponseWriter, r *http.Request) {
	src, err := h.sources.Locate(r.Context(), sourceParam(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, src)
}

func (h *Handler) NearestSources(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil {
		writeError(w, r, http.StatusBadRequest, "lat and lon are required")
		return
	}
	ranked, err := h.sources.Nearest(r.Context(), lat, lon)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(ranked))
}

func sourceParam(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "code")))
}

func intQuery(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// nonNil: пустой список кодируется как [], а не null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
