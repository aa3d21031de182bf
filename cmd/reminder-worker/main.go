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
	logger := cli.SetupLogger(cfg, applog.ComponentReminder)
	logger.Info("Starting reminder-worker")

	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	be, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateBackend(ctx, backendCfg)
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
		logger.Error("The reminder worker needs the sqlite backend", "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if be.Notifier() == nil {
		logger.Error("The reminder worker needs a reachable broker to deliver notifications")
		os.Exit(1)
	}

	policy, err := services.NewReminderPolicy(cfg.ReminderInterval, cfg.Location())
	if err != nil {
		logger.Error("Invalid reminder policy", applog.FieldError, err)
		os.Exit(1)
	}
	processor := services.NewReminderProcessor(be.Store, be.Store, be.Notifier(), policy, cfg.Location())

	logger.Info("Reminder processor configured",
		"check_interval", cfg.ReminderCheckInterval,
		"reminder_interval", cfg.ReminderInterval,
		"backend", cfg.DataBackend)

	if err := worker.NewReminderWorker(processor, cfg.ReminderCheckInterval, logger).Run(ctx); err != nil {
		logger.Error("Reminder worker failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Reminder-worker shutdown complete")
}
