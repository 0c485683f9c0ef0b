package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"mkrew_service/internal/domain/model"
	"mkrew_service/internal/domain/repository"
	"mkrew_service/internal/metrics"
)

// AdapterRegistry: источник адаптеров по коду.
type AdapterRegistry interface {
	Lookup(code string) (model.SourceAdapter, bool)
}

const runRecordTimeout = 5 * time.Second

// IngestionService оркестрирует сбор: одна попытка на источник, один журнал на попытку.
type IngestionService struct {
	sources     repository.SourceStore
	snapshots   repository.SnapshotStore
	runs        repository.RunRecorder
	registry    AdapterRegistry
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	concurrency int
	now         func() time.Time
}

func NewIngestionService(
	sources repository.SourceStore,
	snapshots repository.SnapshotStore,
	runs repository.RunRecorder,
	registry AdapterRegistry,
	m *metrics.Metrics,
	logger zerolog.Logger,
	concurrency int,
) *IngestionService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &IngestionService{
		sources:     sources,
		snapshots:   snapshots,
		runs:        runs,
		registry:    registry,
		metrics:     m,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// IngestOne собирает данные одного источника. Неизвестный или отключённый источник
// возвращает ошибку без записи в журнал; все прочие исходы записываются ровно один раз.
func (s *IngestionService) IngestOne(ctx context.Context, code string) (model.IngestionRun, error) {
	src, err := s.sources.GetByCode(ctx, code)
	if err != nil {
		return model.IngestionRun{}, err
	}
	if !src.ScrapingEnabled {
		return model.IngestionRun{}, fmt.Errorf("%w: %s", model.ErrSourceDisabled, code)
	}
	return s.ingest(ctx, src)
}

// IngestAll обходит все включённые источники; сбой одного не влияет на остальные.
// Результаты идут в порядке источников.
func (s *IngestionService) IngestAll(ctx context.Context) ([]model.IngestionRun, error) {
	sources, err := s.sources.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled sources: %w", err)
	}

	runs := make([]model.IngestionRun, len(sources))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, src := range sources {
		g.Go(func() error {
			run, err := s.ingest(ctx, src)
			if err != nil {
				s.logger.Error().Err(err).Str("source", src.Code).Msg("ingestion run not recorded")
			}
			runs[i] = run
			return nil
		})
	}
	_ = g.Wait()

	var failed int
	for _, r := range runs {
		if r.Outcome == model.RunFailed {
			failed++
		}
	}
	s.logger.Info().Int("sources", len(runs)).Int("failed", failed).Msg("ingestion finished")
	return runs, nil
}

func (s *IngestionService) RecentRuns(ctx context.Context, code string, limit int) ([]model.IngestionRun, error) {
	return s.runs.RecentRuns(ctx, code, limit)
}

func (s *IngestionService) ingest(ctx context.Context, src model.Source) (model.IngestionRun, error) {
	log := s.logger.With().Str("source", src.Code).Logger()
	started := s.now()
	run := model.IngestionRun{SourceCode: src.Code, StartedAt: started}

	adapter, ok := s.registry.Lookup(src.Code)
	if !ok {
		s.fail(&run, fmt.Sprintf("no source adapter registered for %s", src.Code))
	} else if snaps, err := scrape(ctx, adapter); err != nil {
		s.fail(&run, err.Error())
	} else {
		run.RecordsSaved = s.persist(ctx, log, snaps)
		run.Outcome = model.RunSuccess
		if run.RecordsSaved < len(snaps) {
			run.Outcome = model.RunPartial
		}
	}
	elapsed := s.now().Sub(started)
	run.DurationMs = elapsed.Milliseconds()

	s.metrics.IngestionRuns.WithLabelValues(src.Code, string(run.Outcome)).Inc()
	s.metrics.IngestionDuration.WithLabelValues(src.Code).Observe(elapsed.Seconds())

	// журнал пишется и после отмены контекста сбора
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), runRecordTimeout)
	defer cancel()
	if err := s.runs.RecordRun(recCtx, &run); err != nil {
		return run, fmt.Errorf("failed to record ingestion run for %s: %w", src.Code, err)
	}

	ev := log.Info()
	if run.Outcome == model.RunFailed {
		ev = log.Warn().Str("error", *run.ErrorMessage)
	}
	ev.Str("outcome", string(run.Outcome)).Int("saved", run.RecordsSaved).Int64("duration_ms", run.DurationMs).Msg("ingestion run")
	return run, nil
}

func (s *IngestionService) fail(run *model.IngestionRun, msg string) {
	run.Outcome = model.RunFailed
	run.RecordsSaved = 0
	run.ErrorMessage = &msg
}

// persist сохраняет наблюдения по одному; ошибка записи пропускает только эту строку.
func (s *IngestionService) persist(ctx context.Context, log zerolog.Logger, snaps []model.InventorySnapshot) int {
	saved := 0
	var last time.Time
	for i := range snaps {
		snap := snaps[i]
		scrapedAt := s.now()
		if scrapedAt.Before(last) {
			scrapedAt = last
		}
		last = scrapedAt
		snap.ScrapedAt = scrapedAt

		if err := s.snapshots.Save(ctx, &snap); err != nil {
			log.Error().Err(err).Str("blood_type", string(snap.BloodType)).Msg("failed to save snapshot")
			s.metrics.SnapshotsFailed.WithLabelValues(snap.SourceCode).Inc()
			continue
		}
		s.metrics.SnapshotsSaved.WithLabelValues(snap.SourceCode).Inc()
		saved++
	}
	return saved
}

func scrape(ctx context.Context, a model.SourceAdapter) (snaps []model.InventorySnapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("source adapter %s panicked: %v", a.SourceCode(), r)
		}
	}()
	return a.Scrape(ctx)
}
