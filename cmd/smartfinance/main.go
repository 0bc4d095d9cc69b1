package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"smartfinance/internal/amqp"
	"smartfinance/internal/analysis"
	"smartfinance/internal/backend"
	"smartfinance/internal/cache"
	"smartfinance/internal/cli"
	"smartfinance/internal/guard"
	apphttp "smartfinance/internal/http"
	"smartfinance/internal/ledger"
	applog "smartfinance/internal/log"
	"smartfinance/internal/middleware/ratelimit"
	"smartfinance/internal/services"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentApp)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	store, err := backend.Open(backendCfg, logger)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer store.Close()

	var publisher services.Publisher
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPFeedbackQueue, cfg.AMQPExportQueue)
		if err != nil {
			// Feedback falls back to direct delivery.
			logger.Warn("AMQP unavailable, continuing without queues", applog.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	registry := ledger.NewRegistry(nil)
	svc := services.NewTransactionService(
		registry,
		analysis.New(cfg.AnalysisBaseURL, cfg.AdvisoryTimeout),
		store.Store,
		publisher,
		services.Options{
			AdvisoryThreshold: cfg.AdvisoryThreshold,
			AdvisoryTimeout:   cfg.AdvisoryTimeout,
			FeedbackTimeout:   cfg.FeedbackTimeout,
			ScoreCacheSize:    cfg.ScoreCacheSize,
			ScoreCacheTTL:     cfg.ScoreCacheTTL,
		},
		logger,
	)

	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMin})

	caches := cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
	caches.Register("advisory_scores", svc.ScoreCache())
	caches.Register("rate_limit", limiter)
	caches.Register("sessions", cache.CleanerFunc(func() int {
		return registry.Expire(cfg.SessionTTL)
	}))
	caches.StartCleanup(cfg.CacheSweepEvery)
	defer caches.Stop()

	deps := apphttp.Deps{
		Ledger:  svc,
		Guard:   guard.NewMonitor(nil, cfg.GuardMaxEvents),
		Limiter: limiter,
		Logger:  logger,
	}
	if store.Ready != nil {
		deps.Ready = store.Ready
	}
	srv := apphttp.NewServer(":"+cfg.Port, deps)

	ctx, stop := cli.SignalContext()
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting smartfinance server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
