package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"smartfinance/internal/amqp"
	"smartfinance/internal/analysis"
	"smartfinance/internal/backend"
	"smartfinance/internal/cli"
	applog "smartfinance/internal/log"
	"smartfinance/internal/ports"
	gsheet "smartfinance/internal/sheets/google"
	"smartfinance/internal/worker"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentWorker)
	logger.Info("Starting smartfinance-worker")

	ctx, stop := cli.SignalContext()
	defer stop()

	// The outbox is only visible to this process through a shared backend.
	var outbox ports.FeedbackOutbox
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	if backendCfg.Type.Shared() {
		store, err := backend.Open(backendCfg, logger)
		if err != nil {
			logger.Error("Failed to initialize backend", applog.FieldError, err, "backend", cfg.DataBackend)
			os.Exit(1)
		}
		defer store.Close()
		outbox = store.Store
	} else {
		logger.Warn("Outbox sweep disabled - backend is not shared with the API", "backend", cfg.DataBackend)
	}

	var exporter ports.TransactionExporter
	if cfg.GoogleSpreadsheetID != "" {
		sheetsCfg := gsheet.ConfigFromEnv()
		sheetsCfg.SpreadsheetID = cfg.GoogleSpreadsheetID
		sheetsCfg.SheetName = cfg.GoogleSheetName
		e, err := gsheet.New(ctx, sheetsCfg, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets exporter", applog.FieldError, err)
			os.Exit(1)
		}
		exporter = e
		logger.Info("Google Sheets exporter initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	w := worker.NewDeliveryWorker(
		analysis.New(cfg.AnalysisBaseURL, cfg.FeedbackTimeout),
		outbox,
		exporter,
		cfg.SweepBatchSize,
		logger,
	)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPFeedbackQueue, cfg.AMQPExportQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()

		g.Go(func() error { return client.ConsumeFeedback(gctx, w.HandleFeedbackMessage) })
		g.Go(func() error { return client.ConsumeExports(gctx, w.HandleExportMessage) })
	} else {
		logger.Info("Skipping AMQP message consumption - no AMQP_URL provided")
	}

	if outbox != nil {
		g.Go(func() error { return w.RunSweeps(gctx, cfg.WorkerSweepSchedule) })
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down worker")
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
