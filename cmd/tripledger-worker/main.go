package main

import (
	"context"
	"os"

	"tripledger/internal/backend"
	"tripledger/internal/cli"
	applog "tripledger/internal/log"
	"tripledger/internal/services"
	"tripledger/internal/worker"
)

func main() {
	bootstrap := applog.New(applog.DefaultConfig())
	if err := cli.LoadEnvFile(); err != nil {
		bootstrap.Warn("Failed to load .env file", applog.FieldError, err)
	}
	cfg := cli.LoadAndValidateConfig(bootstrap, nil)
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)
	logger.Info("Starting tripledger-worker")

	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	factory := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger)
	be, err := factory.CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to create backend", applog.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()
	if !be.Persistent {
		// The API server drains a memory outbox itself.
		logger.Error("The sync worker needs the sqlite backend", "backend", cfg.DataBackend)
		os.Exit(1)
	}

	exporter, err := factory.CreateExporter(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to create exporter", applog.FieldError, err)
		os.Exit(1)
	}

	pc := services.DefaultSyncProcessorConfig()
	pc.BatchSize = cfg.SyncBatchSize
	pc.PollInterval = cfg.SyncInterval
	pc.MaxRetries = cfg.SyncMaxRetries
	processor := services.NewSyncProcessor(be.Store, be.Store, exporter, be.ReceiptPurger(), pc)

	var consumer worker.WakeConsumer
	if be.Broker != nil {
		consumer = be.Broker
	}
	syncWorker := worker.NewSyncWorker(processor, consumer, logger)

	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", applog.FieldError, err)
	}

	if err := syncWorker.Run(ctx); err != nil {
		logger.Error("Sync worker failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete", "wakeups", syncWorker.Wakeups())
}
