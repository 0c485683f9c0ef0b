package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mkrew_service/internal/domain/model"
	"mkrew_service/internal/domain/repository"
	"mkrew_service/internal/metrics"
)

const (
	maxHorizonDays      = 365
	defaultWindowDays   = 90
	outcomeWriteTimeout = 5 * time.Second
)

type CreateForecastInput struct {
	SourceCode  string
	ModelKind   string
	BloodType   *model.BloodType
	HorizonDays int
	// Пустое окно: последние 90 дней.
	WindowStart time.Time
	WindowEnd   time.Time
	RequestedBy *string
}

// Enqueuer принимает id запроса для фоновой обработки; false: очередь заполнена.
type Enqueuer interface {
	Enqueue(id int64) bool
}

// ForecastService ведёт жизненный цикл запроса прогноза:
// PENDING → PROCESSING → COMPLETED | FAILED.
type ForecastService struct {
	sources   repository.SourceStore
	snapshots repository.SnapshotStore
	store     repository.ForecastStore
	predictor model.Predictor
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	queue     Enqueuer
	now       func() time.Time
}

func NewForecastService(
	sources repository.SourceStore,
	snapshots repository.SnapshotStore,
	store repository.ForecastStore,
	predictor model.Predictor,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *ForecastService {
	return &ForecastService{
		sources:   sources,
		snapshots: snapshots,
		store:     store,
		predictor: predictor,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// UseQueue включает асинхронный режим: CreateRequest возвращает PENDING.
func (s *ForecastService) UseQueue(q Enqueuer) {
	s.queue = q
}

func (s *ForecastService) CreateRequest(ctx context.Context, in CreateForecastInput) (model.ForecastRequest, error) {
	if err := s.normalize(&in); err != nil {
		return model.ForecastRequest{}, err
	}
	if _, err := s.sources.GetByCode(ctx, in.SourceCode); err != nil {
		return model.ForecastRequest{}, err
	}
	fm, err := s.store.ActiveModel(ctx, in.ModelKind)
	if err != nil {
		return model.ForecastRequest{}, err
	}

	req := model.ForecastRequest{
		SourceCode:  in.SourceCode,
		ModelID:     fm.ID,
		ModelKind:   fm.Kind,
		BloodType:   in.BloodType,
		HorizonDays: in.HorizonDays,
		WindowStart: in.WindowStart,
		WindowEnd:   in.WindowEnd,
		Status:      model.ForecastPending,
		RequestedBy: in.RequestedBy,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateRequest(ctx, &req); err != nil {
		return model.ForecastRequest{}, err
	}
	s.logger.Info().Int64("request_id", req.ID).Str("source", req.SourceCode).Str("model", req.ModelKind).Msg("forecast request created")

	if s.queue != nil {
		if s.queue.Enqueue(req.ID) {
			return req, nil
		}
		s.logger.Warn().Int64("request_id", req.ID).Msg("forecast queue full, processing inline")
	}
	return s.Process(ctx, req), nil
}

func (s *ForecastService) normalize(in *CreateForecastInput) error {
	in.SourceCode = strings.ToUpper(strings.TrimSpace(in.SourceCode))
	in.ModelKind = strings.ToUpper(strings.TrimSpace(in.ModelKind))
	if in.SourceCode == "" {
		return fmt.Errorf("%w: source code is required", model.ErrInvalidInput)
	}
	if in.ModelKind == "" {
		return fmt.Errorf("%w: model type is required", model.ErrInvalidInput)
	}
	if in.HorizonDays < 1 || in.HorizonDays > maxHorizonDays {
		return fmt.Errorf("%w: forecast horizon must be between 1 and %d days", model.ErrInvalidInput, maxHorizonDays)
	}
	if in.BloodType != nil && !in.BloodType.Valid() {
		return fmt.Errorf("%w: unknown blood type %q", model.ErrInvalidInput, *in.BloodType)
	}
	if in.WindowEnd.IsZero() {
		in.WindowEnd = s.now()
	}
	if in.WindowStart.IsZero() {
		in.WindowStart = in.WindowEnd.AddDate(0, 0, -defaultWindowDays)
	}
	if !in.WindowStart.Before(in.WindowEnd) {
		return fmt.Errorf("%w: data window start must be before end", model.ErrInvalidInput)
	}
	return nil
}

// Process выполняет прогноз по запросу в статусе PENDING. Ошибок не возвращает:
// любой сбой фиксируется в самом запросе как FAILED.
func (s *ForecastService) Process(ctx context.Context, req model.ForecastRequest) model.ForecastRequest {
	log := s.logger.With().Int64("request_id", req.ID).Logger()

	if !req.Status.CanTransitionTo(model.ForecastProcessing) {
		return s.current(ctx, req)
	}
	if err := s.store.Claim(ctx, req.ID); err != nil {
		if !errors.Is(err, model.ErrRequestNotClaimable) {
			log.Error().Err(err).Msg("failed to claim forecast request")
		}
		return s.current(ctx, req)
	}
	req.Status = model.ForecastProcessing

	snaps, err := s.snapshots.ListWindow(ctx, req.SourceCode, req.BloodType, req.WindowStart, req.WindowEnd)
	if err != nil {
		return s.markFailed(ctx, log, req, fmt.Sprintf("Error processing forecast: %v", err))
	}

	start := time.Now()
	result := s.predictor.Predict(ctx, model.PredictionRequest{
		ModelKind:   req.ModelKind,
		BloodType:   req.BloodType,
		HorizonDays: req.HorizonDays,
		History:     BuildHistory(snaps),
	})
	s.metrics.PredictorDuration.Observe(time.Since(start).Seconds())

	if !result.Success {
		return s.markFailed(ctx, log, req, result.ErrorMessage)
	}
	if len(result.Predictions) == 0 {
		return s.markFailed(ctx, log, req, "predictor returned no predictions")
	}
	points, err := ToForecastPoints(req.ID, result.Predictions)
	if err != nil {
		return s.markFailed(ctx, log, req, fmt.Sprintf("invalid prediction: %v", err))
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), outcomeWriteTimeout)
	defer cancel()
	at := s.now()
	if err := s.store.Complete(wctx, req.ID, points, at); err != nil {
		log.Error().Err(err).Msg("failed to store forecast results")
		return s.markFailed(ctx, log, req, fmt.Sprintf("Error processing forecast: %v", err))
	}

	sortPoints(points)
	if err := advance(&req, model.ForecastCompleted); err != nil {
		log.Error().Err(err).Msg("unexpected forecast state")
	}
	req.CompletedAt = &at
	req.ErrorMessage = nil
	req.Points = points
	s.metrics.ForecastOutcomes.WithLabelValues(string(model.ForecastCompleted)).Inc()
	log.Info().Int("points", len(points)).Msg("forecast completed")
	return req
}

func (s *ForecastService) markFailed(ctx context.Context, log zerolog.Logger, req model.ForecastRequest, msg string) model.ForecastRequest {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), outcomeWriteTimeout)
	defer cancel()

	at := s.now()
	if err := s.store.Fail(wctx, req.ID, msg, at); err != nil {
		log.Error().Err(err).Msg("failed to mark forecast request as failed")
	}
	if err := advance(&req, model.ForecastFailed); err != nil {
		log.Error().Err(err).Msg("unexpected forecast state")
	}
	req.CompletedAt = &at
	req.ErrorMessage = &msg
	req.Points = nil
	s.metrics.ForecastOutcomes.WithLabelValues(string(model.ForecastFailed)).Inc()
	log.Warn().Str("error", msg).Msg("forecast failed")
	return req
}

// interruptedMessage ставится запросам, обработка которых оборвалась вместе с процессом.
const interruptedMessage = "Error processing forecast: interrupted by service restart"

// FailInterrupted закрывает запросы, оставшиеся в PROCESSING после остановки процесса.
// Вызывается при старте, до приёма новых запросов.
func (s *ForecastService) FailInterrupted(ctx context.Context) (int, error) {
	ids, err := s.store.FailProcessing(ctx, interruptedMessage, s.now())
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		s.metrics.ForecastOutcomes.WithLabelValues(string(model.ForecastFailed)).Inc()
		s.logger.Warn().Int64("request_id", id).Msg("forecast request interrupted, marked failed")
	}
	return len(ids), nil
}

// current перечитывает запрос, который нельзя взять в работу.
func (s *ForecastService) current(ctx context.Context, req model.ForecastRequest) model.ForecastRequest {
	if cur, err := s.GetByID(ctx, req.ID); err == nil {
		return cur
	}
	return req
}

// advance меняет статус в памяти только по разрешённому переходу.
func advance(req *model.ForecastRequest, next model.ForecastStatus) error {
	if !req.Status.CanTransitionTo(next) {
		return fmt.Errorf("forecast request %d: illegal transition %s -> %s", req.ID, req.Status, next)
	}
	req.Status = next
	return nil
}

// GetByID возвращает запрос; точки прогноза есть только у COMPLETED.
func (s *ForecastService) GetByID(ctx context.Context, id int64) (model.ForecastRequest, error) {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return model.ForecastRequest{}, err
	}
	if err := s.attachPoints(ctx, &req); err != nil {
		return model.ForecastRequest{}, err
	}
	return req, nil
}

func (s *ForecastService) ListAll(ctx context.Context) ([]model.ForecastRequest, error) {
	reqs, err := s.store.ListRequests(ctx)
	if err != nil {
		return nil, err
	}
	return s.withPoints(ctx, reqs)
}

func (s *ForecastService) ListBySource(ctx context.Context, code string) ([]model.ForecastRequest, error) {
	if _, err := s.sources.GetByCode(ctx, code); err != nil {
		return nil, err
	}
	reqs, err := s.store.ListRequestsBySource(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.withPoints(ctx, reqs)
}

func (s *ForecastService) Delete(ctx context.Context, id int64) error {
	return s.store.DeleteRequest(ctx, id)
}

func (s *ForecastService) ListModels(ctx context.Context) ([]model.ForecastModel, error) {
	return s.store.ListModels(ctx)
}

func (s *ForecastService) withPoints(ctx context.Context, reqs []model.ForecastRequest) ([]model.ForecastRequest, error) {
	for i := range reqs {
		if err := s.attachPoints(ctx, &reqs[i]); err != nil {
			return nil, err
		}
	}
	return reqs, nil
}

func (s *ForecastService) attachPoints(ctx context.Context, req *model.ForecastRequest) error {
	req.Points = nil
	if req.Status != model.ForecastCompleted {
		return nil
	}
	points, err := s.store.Points(ctx, req.ID)
	if err != nil {
		return err
	}
	sortPoints(points)
	req.Points = points
	return nil
}

func sortPoints(points []model.ForecastPoint) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].ForecastDate.Before(points[j].ForecastDate)
	})
}
