package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"mkrew_service/internal/domain/model"
)

type fakeSources struct {
	sources map[string]model.Source
	listErr error
}

func newFakeSources(sources ...model.Source) *fakeSources {
	m := make(map[string]model.Source, len(sources))
	for _, s := range sources {
		m[s.Code] = s
	}
	return &fakeSources{sources: m}
}

func (f *fakeSources) GetByCode(_ context.Context, code string) (model.Source, error) {
	s, ok := f.sources[code]
	if !ok {
		return model.Source{}, fmt.Errorf("%w: %s", model.ErrSourceNotFound, code)
	}
	return s, nil
}

func (f *fakeSources) ListAll(_ context.Context) ([]model.Source, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]model.Source, 0, len(f.sources))
	for _, s := range f.sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (f *fakeSources) ListEnabled(ctx context.Context) ([]model.Source, error) {
	all, err := f.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Source
	for _, s := range all {
		if s.ScrapingEnabled {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSources) UpdateLocation(_ context.Context, code string, lat, lon float64) error {
	s, ok := f.sources[code]
	if !ok {
		return model.ErrSourceNotFound
	}
	s.Lat, s.Lon = &lat, &lon
	f.sources[code] = s
	return nil
}

type fakeSnapshots struct {
	mu      sync.Mutex
	saved   []model.InventorySnapshot
	failFor map[model.BloodType]bool
	window  []model.InventorySnapshot
	winErr  error
	nextID  int64
}

func (f *fakeSnapshots) Save(_ context.Context, snap *model.InventorySnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[snap.BloodType] {
		return errors.New("constraint violation")
	}
	f.nextID++
	snap.ID = f.nextID
	f.saved = append(f.saved, *snap)
	return nil
}

func (f *fakeSnapshots) ListWindow(_ context.Context, code string, bt *model.BloodType, from, to time.Time) ([]model.InventorySnapshot, error) {
	if f.winErr != nil {
		return nil, f.winErr
	}
	var out []model.InventorySnapshot
	for _, s := range f.window {
		if s.SourceCode != code || (bt != nil && s.BloodType != *bt) {
			continue
		}
		if s.ObservedAt.Before(from) || !s.ObservedAt.Before(to) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSnapshots) Latest(_ context.Context, code string) ([]model.InventorySnapshot, error) {
	var out []model.InventorySnapshot
	for _, s := range f.window {
		if s.SourceCode == code {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSnapshots) LatestAll(_ context.Context) ([]model.InventorySnapshot, error) {
	return f.window, nil
}

type fakeRuns struct {
	mu   sync.Mutex
	runs []model.IngestionRun
	err  error
}

func (f *fakeRuns) RecordRun(_ context.Context, run *model.IngestionRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	run.ID = int64(len(f.runs) + 1)
	f.runs = append(f.runs, *run)
	return nil
}

func (f *fakeRuns) RecentRuns(_ context.Context, code string, limit int) ([]model.IngestionRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.IngestionRun
	for i := len(f.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if code == "" || f.runs[i].SourceCode == code {
			out = append(out, f.runs[i])
		}
	}
	return out, nil
}

func (f *fakeRuns) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}

type fakeAdapter struct {
	code  string
	snaps []model.InventorySnapshot
	err   error
	panic bool
}

func (a *fakeAdapter) SourceCode() string { return a.code }
func (a *fakeAdapter) SiteURL() string    { return "https://" + a.code + ".example" }

func (a *fakeAdapter) Scrape(_ context.Context) ([]model.InventorySnapshot, error) {
	if a.panic {
		panic("unexpected markup")
	}
	if a.err != nil {
		return nil, a.err
	}
	return a.snaps, nil
}

type fakeRegistry map[string]model.SourceAdapter

func (r fakeRegistry) Lookup(code string) (model.SourceAdapter, bool) {
	a, ok := r[code]
	return a, ok
}

type fakePredictor struct {
	mu      sync.Mutex
	result  model.PredictionResult
	calls   int
	lastReq model.PredictionRequest
}

func (p *fakePredictor) Predict(_ context.Context, req model.PredictionRequest) model.PredictionResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastReq = req
	return p.result
}

func (p *fakePredictor) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// fakeForecastStore повторяет условные переходы статусов Postgres-хранилища.
type fakeForecastStore struct {
	mu          sync.Mutex
	models      []model.ForecastModel
	requests    map[int64]model.ForecastRequest
	points      map[int64][]model.ForecastPoint
	nextID      int64
	completeErr error
	claims      int
}

func newFakeForecastStore(models ...model.ForecastModel) *fakeForecastStore {
	return &fakeForecastStore{
		models:   models,
		requests: make(map[int64]model.ForecastRequest),
		points:   make(map[int64][]model.ForecastPoint),
	}
}

func (f *fakeForecastStore) ActiveModel(_ context.Context, kind string) (model.ForecastModel, error) {
	for _, m := range f.models {
		if m.Kind == kind && m.Active {
			return m, nil
		}
	}
	return model.ForecastModel{}, fmt.Errorf("%w for type %s", model.ErrNoActiveModel, kind)
}

func (f *fakeForecastStore) ListModels(_ context.Context) ([]model.ForecastModel, error) {
	return f.models, nil
}

func (f *fakeForecastStore) CreateRequest(_ context.Context, req *model.ForecastRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	req.ID = f.nextID
	f.requests[req.ID] = *req
	return nil
}

func (f *fakeForecastStore) GetRequest(_ context.Context, id int64) (model.ForecastRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return model.ForecastRequest{}, fmt.Errorf("%w: %d", model.ErrForecastNotFound, id)
	}
	return req, nil
}

func (f *fakeForecastStore) list(filter func(model.ForecastRequest) bool) []model.ForecastRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ForecastRequest
	for _, r := range f.requests {
		if filter(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (f *fakeForecastStore) ListRequests(_ context.Context) ([]model.ForecastRequest, error) {
	return f.list(func(model.ForecastRequest) bool { return true }), nil
}

func (f *fakeForecastStore) ListRequestsBySource(_ context.Context, code string) ([]model.ForecastRequest, error) {
	return f.list(func(r model.ForecastRequest) bool { return r.SourceCode == code }), nil
}

func (f *fakeForecastStore) ListPendingIDs(_ context.Context) ([]int64, error) {
	reqs := f.list(func(r model.ForecastRequest) bool { return r.Status == model.ForecastPending })
	ids := make([]int64, 0, len(reqs))
	for i := len(reqs) - 1; i >= 0; i-- {
		ids = append(ids, reqs[i].ID)
	}
	return ids, nil
}

func (f *fakeForecastStore) DeleteRequest(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.requests[id]; !ok {
		return model.ErrForecastNotFound
	}
	delete(f.requests, id)
	delete(f.points, id)
	return nil
}

func (f *fakeForecastStore) Claim(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claims++
	req, ok := f.requests[id]
	if !ok || req.Status != model.ForecastPending {
		return model.ErrRequestNotClaimable
	}
	req.Status = model.ForecastProcessing
	f.requests[id] = req
	return nil
}

func (f *fakeForecastStore) finish(id int64, status model.ForecastStatus, msg *string, at time.Time) error {
	req, ok := f.requests[id]
	if !ok || !req.Status.CanTransitionTo(status) {
		return model.ErrRequestNotClaimable
	}
	req.Status = status
	req.ErrorMessage = msg
	req.CompletedAt = &at
	f.requests[id] = req
	return nil
}

func (f *fakeForecastStore) Complete(_ context.Context, id int64, points []model.ForecastPoint, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completeErr != nil {
		return f.completeErr
	}
	if err := f.finish(id, model.ForecastCompleted, nil, at); err != nil {
		return err
	}
	// хранилище отдаёт точки в порядке вставки; сортировка на чтении
	f.points[id] = append([]model.ForecastPoint(nil), points...)
	return nil
}

func (f *fakeForecastStore) Fail(_ context.Context, id int64, message string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.points, id)
	return f.finish(id, model.ForecastFailed, &message, at)
}

func (f *fakeForecastStore) Points(_ context.Context, id int64) ([]model.ForecastPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ForecastPoint(nil), f.points[id]...), nil
}

func (f *fakeForecastStore) FailProcessing(_ context.Context, message string, at time.Time) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for id, req := range f.requests {
		if req.Status != model.ForecastProcessing {
			continue
		}
		msg := message
		req.Status, req.ErrorMessage, req.CompletedAt = model.ForecastFailed, &msg, &at
		f.requests[id] = req
		delete(f.points, id)
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeForecastStore) claimCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.claims
}

func (f *fakeForecastStore) pointCount(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.points[id])
}
