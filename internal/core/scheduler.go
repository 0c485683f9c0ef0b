package core

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"mkrew_service/internal/domain/model"
)

// Ingestor: единая точка входа для плановых и ручных запусков.
type Ingestor interface {
	IngestAll(ctx context.Context) ([]model.IngestionRun, error)
}

type Scheduler struct {
	cron       *cron.Cron
	ingestor   Ingestor
	jobTimeout time.Duration
	logger     zerolog.Logger
	schedule   cron.Schedule
	loc        *time.Location
}

// NewScheduler регистрирует ежедневный сбор. Пропускает тик, если предыдущий ещё идёт.
func NewScheduler(ingestor Ingestor, spec, timezone string, jobTimeout time.Duration, logger zerolog.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", timezone, err)
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	cl := cronLogger{l: logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		ingestor:   ingestor,
		jobTimeout: jobTimeout,
		logger:     logger,
		schedule:   schedule,
		loc:        loc,
	}
	s.cron.Schedule(schedule, cron.FuncJob(s.run))
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Time("next_run", s.Next()).Msg("scheduler started")
}

// Stop останавливает планировщик; контекст завершается, когда текущий запуск закончен.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) Next() time.Time {
	return s.schedule.Next(time.Now().In(s.loc))
}

// TriggerNow: ручной запуск того же сбора, что и по расписанию.
func (s *Scheduler) TriggerNow(ctx context.Context) ([]model.IngestionRun, error) {
	return s.ingestor.IngestAll(ctx)
}

func (s *Scheduler) run() {
	ctx := context.Background()
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}
	if _, err := s.ingestor.IngestAll(ctx); err != nil {
		s.logger.Error().Err(err).Msg("scheduled ingestion failed")
	}
}

// cronLogger направляет сообщения cron в zerolog.
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
