package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"tripledger/internal/backend"
	"tripledger/internal/cli"
	"tripledger/internal/config"
	apphttp "tripledger/internal/http"
	applog "tripledger/internal/log"
	"tripledger/internal/services"
	"tripledger/internal/sheets"
	memsheets "tripledger/internal/sheets/memory"
)

func main() {
	bootstrap := applog.New(applog.DefaultConfig())
	if err := cli.LoadEnvFile(); err != nil {
		bootstrap.Warn("Failed to load .env file", applog.FieldError, err)
	}
	cfg := cli.LoadAndValidateConfig(bootstrap, (*config.Config).ValidateServer)
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

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
		logger.Error("Failed to create backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	loc := cfg.Location()
	trips := services.NewTripService(be.Store, be.WakePublisher(), loc)
	expenses := services.NewExpenseService(be.Store, trips, be.WakePublisher())

	// The memory store lives in this process, so nothing else can drain
	// its outbox.
	var processor *services.SyncProcessor
	if !be.Persistent {
		exporter, err := factory.CreateExporter(ctx, backendCfg)
		if err != nil {
			logger.Error("Failed to create exporter", applog.FieldError, err)
			os.Exit(1)
		}
		if exporter == nil {
			exporter = memsheets.New(loc)
		}
		processor = newProcessor(cfg.SyncBatchSize, cfg.SyncInterval, cfg.SyncMaxRetries, be, exporter)
	}

	auth, err := apphttp.NewAuthenticator(cfg.AuthJWTSecret, cfg.AuthJWTIssuer)
	if err != nil {
		logger.Error("Failed to configure authentication", applog.FieldError, err)
		os.Exit(1)
	}

	srv, err := apphttp.NewServer(apphttp.ServerConfig{
		Addr:               ":" + cfg.Port,
		Trips:              trips,
		Expenses:           expenses,
		Auth:               auth,
		Ready:              be.Store.Ping,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})
	if err != nil {
		logger.Error("Failed to create server", applog.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	if processor != nil {
		if err := processor.Start(gctx); err != nil {
			logger.Error("Failed to start sync processor", applog.FieldError, err)
			os.Exit(1)
		}
	}

	g.Go(func() error {
		logger.Info("Starting tripledger server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"in_process_sync", processor != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if processor != nil {
			if err := processor.Stop(shutdownCtx); err != nil {
				logger.Error("Sync processor shutdown error", applog.FieldError, err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func newProcessor(batch int, poll time.Duration, retries int, be *backend.BackendResult, exporter sheets.ExpenseExporter) *services.SyncProcessor {
	pc := services.DefaultSyncProcessorConfig()
	pc.BatchSize = batch
	pc.PollInterval = poll
	pc.MaxRetries = retries
	return services.NewSyncProcessor(be.Store, be.Store, exporter, be.ReceiptPurger(), pc)
}
