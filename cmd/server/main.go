// Command server runs the stock screener API.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/clientdata"
	"github.com/aristath/screener/internal/clients/fmp"
	"github.com/aristath/screener/internal/config"
	"github.com/aristath/screener/internal/database"
	"github.com/aristath/screener/internal/events"
	"github.com/aristath/screener/internal/modules/universe"
	"github.com/aristath/screener/internal/modules/valuation"
	"github.com/aristath/screener/internal/pipeline"
	"github.com/aristath/screener/internal/retry"
	"github.com/aristath/screener/internal/scheduler"
	"github.com/aristath/screener/internal/server"
	"github.com/aristath/screener/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not configured yet; write plainly and exit
		fallback := zerolog.New(os.Stderr)
		fallback.Error().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	logger.SetGlobalLogger(log)

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	// Cache database
	cacheDB, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "client_data.db"),
		Name: "client_data",
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := cacheDB.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close cache database")
		}
	}()

	if err := clientdata.EnsureSchema(cacheDB.Conn()); err != nil {
		return err
	}
	cache := clientdata.NewRepository(cacheDB.Conn())

	// FMP client
	fmpClient := fmp.NewClient(cfg.FMPAPIKey, fmp.Config{
		Timeout: cfg.RequestTimeout,
		Retry: retry.Config{
			Attempts:  cfg.RetryAttempts,
			BaseDelay: cfg.RetryBaseDelay,
			MaxDelay:  30 * time.Second,
		},
	}, log)

	// Pipeline stages
	fetcher := universe.NewBatchFetcher(fmpClient, cache, log).
		WithMaxWorkers(cfg.ScreenerWorkers).
		WithMemoTTL(cfg.ScreenerCacheTTL)

	var strategy valuation.Strategy
	switch valuation.StrategyName(cfg.EnrichStrategy) {
	case valuation.StrategyBulk:
		strategy = valuation.NewBulkStrategy(fmpClient, cache, log)
	default:
		strategy = valuation.NewPerSymbolStrategy(fmpClient, cache, valuation.PerSymbolConfig{
			Workers:       cfg.EnrichWorkers,
			ThrottleEvery: cfg.ThrottleEvery,
			ThrottleDelay: cfg.ThrottleDelay,
		}, log)
	}
	enricher := valuation.NewEnricher(strategy, log)

	bus := events.NewBus()
	svc := pipeline.NewService(fetcher, enricher, strategy.Name(), bus, log)

	// HTTP server
	srv := server.New(server.Config{
		Log:      log,
		Config:   cfg,
		Pipeline: svc,
		EventBus: bus,
		CacheDB:  cacheDB,
	})

	// Background jobs
	sched := scheduler.New(log)
	defaultQuery := universe.Query{
		Exchanges:              cfg.Screener.Exchanges,
		Country:                cfg.Screener.Country,
		MinMarketCap:           cfg.Screener.MinMarketCap,
		MinVolume:              cfg.Screener.MinVolume,
		Limit:                  cfg.Screener.Limit,
		IncludeAllShareClasses: cfg.Screener.IncludeAllShareClasses,
	}

	if cfg.RefreshSchedule != "" {
		refreshJob := scheduler.NewRefreshJob(svc, defaultQuery, 5*time.Minute, log)
		if err := sched.AddJob(cfg.RefreshSchedule, refreshJob); err != nil {
			return err
		}
	}
	cleanupJob := scheduler.NewCleanupJob(cache, log)
	if err := sched.AddJob("0 0 * * * *", cleanupJob); err != nil {
		return err
	}

	sched.Start()
	defer sched.Stop()

	// Run the server until interrupted
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
