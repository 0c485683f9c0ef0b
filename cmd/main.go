package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"mkrew_service/internal/api"
	"mkrew_service/internal/config"
	"mkrew_service/internal/core"
	"mkrew_service/internal/domain/repository"
	"mkrew_service/internal/infrastructure/mlclient"
	"mkrew_service/internal/infrastructure/scraper"
	"mkrew_service/internal/logger"
	"mkrew_service/internal/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: configs/mkrew.yaml if present)")
	once := flag.Bool("once", false, "run ingestion for all enabled sources and exit")
	flag.Parse()

	cfg, log, err := bootstrap(*configPath, os.Stdout)
	if err != nil {
		// логгер ещё не настроен
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *once); err != nil {
		log.Fatal().Err(err).Msg("service stopped with error")
	}
}

func bootstrap(configPath string, out io.Writer) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger.New(cfg.Log.Level, cfg.Log.Format, out), nil
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger, once bool) error {
	// Инициализация репозиториев
	db, err := repository.Connect(cfg.Database.URL, cfg.Database.MaxOpenConns)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.MigrateOnStart {
		if err := repository.Migrate(db); err != nil {
			return err
		}
		log.Info().Msg("database migrations applied")
	}

	sources := repository.NewPostgresSourceRepository(db)
	snapshots := repository.NewPostgresSnapshotRepository(db)
	runs := repository.NewPostgresRunRecorder(db)
	forecasts := repository.NewPostgresForecastRepository(db)
	overpassRepo := repository.NewOverpassRepository(cfg.Overpass.URL, cfg.Overpass.Timeout)

	m := metrics.New()

	registry, err := scraper.NewRegistry(scraper.DefaultAdapters(scraper.Options{
		Timeout:      cfg.Scraper.Timeout,
		BaseURLs:     cfg.Scraper.BaseURLs,
		Logger:       logger.Component(log, "scraper"),
		OnRowSkipped: m.RowSkipped,
	})...)
	if err != nil {
		return err
	}
	log.Info().Strs("adapters", registry.Codes()).Msg("source adapters registered")

	predictor := mlclient.NewHTTPPredictor(cfg.Predictor.URL, cfg.Predictor.APIKey, cfg.Predictor.Timeout,
		mlclient.WithLogger(logger.Component(log, "predictor")))

	ingestion := core.NewIngestionService(sources, snapshots, runs, registry, m,
		logger.Component(log, "ingestion"), cfg.Ingestion.Concurrency)

	if once {
		results, err := ingestion.IngestAll(ctx)
		if err != nil {
			return err
		}
		for _, r := range results {
			log.Info().Str("source", r.SourceCode).Str("outcome", string(r.Outcome)).
				Int("records", r.RecordsSaved).Msg("ingestion result")
		}
		return nil
	}

	forecastService := core.NewForecastService(sources, snapshots, forecasts, predictor, m,
		logger.Component(log, "forecast"))

	if n, err := forecastService.FailInterrupted(ctx); err != nil {
		return err
	} else if n > 0 {
		log.Warn().Int("requests", n).Msg("interrupted forecast requests marked failed")
	}

	var worker *core.ForecastWorker
	if cfg.Forecast.Async {
		worker = core.NewForecastWorker(forecastService, forecasts, cfg.Forecast.Workers, cfg.Forecast.QueueSize, m,
			logger.Component(log, "forecast-worker"))
		forecastService.UseQueue(worker)
		if err := worker.Start(ctx); err != nil {
			return err
		}
	}

	handler := api.NewHandler(
		ingestion,
		core.NewInventoryService(sources, snapshots),
		core.NewSourceService(sources, overpassRepo, registry, logger.Component(log, "sources")),
		forecastService,
	).WithPredictorCatalog(predictor)

	var scheduler *core.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler, err = core.NewScheduler(ingestion, cfg.Scheduler.Cron, cfg.Scheduler.Timezone,
			cfg.Scheduler.JobTimeout, logger.Component(log, "scheduler"))
		if err != nil {
			return err
		}
		scheduler.Start()
		handler.WithScheduler(scheduler)
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.NewRouter(handler, m, logger.Component(log, "http")),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if scheduler != nil {
		select {
		case <-scheduler.Stop().Done():
		case <-shutdownCtx.Done():
			log.Warn().Msg("scheduled ingestion still running at shutdown")
		}
	}
	if worker != nil {
		// воркеры выходят по отмене ctx
		worker.Wait()
	}
	return nil
}
