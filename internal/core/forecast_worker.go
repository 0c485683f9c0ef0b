package core

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"mkrew_service/internal/domain/model"
	"mkrew_service/internal/domain/repository"
	"mkrew_service/internal/metrics"
)

// ForecastWorker обрабатывает запросы прогноза в фоне. Один запрос не будет
// обработан дважды: захват PENDING → PROCESSING выполняется условным UPDATE.
type ForecastWorker struct {
	service *ForecastService
	store   repository.ForecastStore
	queue   chan int64
	workers int
	metrics *metrics.Metrics
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

func NewForecastWorker(
	service *ForecastService,
	store repository.ForecastStore,
	workers, queueSize int,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *ForecastWorker {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &ForecastWorker{
		service: service,
		store:   store,
		queue:   make(chan int64, queueSize),
		workers: workers,
		metrics: m,
		logger:  logger,
	}
}

func (w *ForecastWorker) Enqueue(id int64) bool {
	select {
	case w.queue <- id:
		w.metrics.ForecastQueueSize.Inc()
		return true
	default:
		return false
	}
}

// Start запускает обработчики и возвращает в очередь запросы, оставшиеся в PENDING
// после предыдущего запуска. Обработчики завершаются с отменой ctx.
func (w *ForecastWorker) Start(ctx context.Context) error {
	pending, err := w.store.ListPendingIDs(ctx)
	if err != nil {
		return err
	}

	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.loop(ctx)
		}()
	}

	if len(pending) > 0 {
		w.logger.Info().Int("pending", len(pending)).Msg("resuming pending forecast requests")
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for _, id := range pending {
				select {
				case w.queue <- id:
					w.metrics.ForecastQueueSize.Inc()
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	return nil
}

// Wait blocks until all goroutines started by Start have returned.
func (w *ForecastWorker) Wait() {
	w.wg.Wait()
}

func (w *ForecastWorker) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-w.queue:
			w.metrics.ForecastQueueSize.Dec()
			w.handle(ctx, id)
		}
	}
}

func (w *ForecastWorker) handle(ctx context.Context, id int64) {
	req, err := w.store.GetRequest(ctx, id)
	if err != nil {
		w.logger.Error().Err(err).Int64("request_id", id).Msg("failed to load queued forecast request")
		return
	}
	if req.Status != model.ForecastPending {
		return
	}
	w.service.Process(ctx, req)
}
