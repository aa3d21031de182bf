package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"tripledger/internal/amqp"
	applog "tripledger/internal/log"
	"tripledger/internal/storage"
)

// OutboxDrainer is the part of services.SyncProcessor the worker drives.
type OutboxDrainer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Wake()
	ProcessOnce(ctx context.Context) (int, error)
	Stats(ctx context.Context) (storage.OutboxStats, error)
}

// WakeConsumer delivers outbox wake-ups until ctx is done or the
// subscription breaks.
type WakeConsumer interface {
	ConsumeOutboxWake(ctx context.Context, handler func(*amqp.OutboxWakeMessage) error) error
}

// SyncWorker runs the outbox drainer and nudges it whenever the API
// publishes a wake-up. Without a consumer it relies on polling alone.
type SyncWorker struct {
	drainer  OutboxDrainer
	consumer WakeConsumer
	logger   *applog.Logger

	minBackoff time.Duration
	maxBackoff time.Duration

	wakeups atomic.Int64
}

func NewSyncWorker(drainer OutboxDrainer, consumer WakeConsumer, logger *applog.Logger) *SyncWorker {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &SyncWorker{
		drainer:    drainer,
		consumer:   consumer,
		logger:     logger.WithComponent(applog.ComponentWorker),
		minBackoff: time.Second,
		maxBackoff: time.Minute,
	}
}

// HandleWake is the consumer callback. It never fails: the drainer picks
// up whatever is due, so the message itself carries no work.
func (w *SyncWorker) HandleWake(msg *amqp.OutboxWakeMessage) error {
	w.wakeups.Add(1)
	w.logger.Debug("Outbox wake-up received",
		"reason", msg.Reason,
		applog.FieldTripID, msg.TripID)
	w.drainer.Wake()
	return nil
}

// Wakeups returns the number of wake-ups handled so far.
func (w *SyncWorker) Wakeups() int64 {
	return w.wakeups.Load()
}

// StartupSyncCheck drains anything left over from a previous run and logs
// the outbox state.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	n, err := w.drainer.ProcessOnce(ctx)
	if err != nil {
		return fmt.Errorf("startup sync: %w", err)
	}
	stats, err := w.drainer.Stats(ctx)
	if err != nil {
		return fmt.Errorf("outbox stats: %w", err)
	}
	w.logger.InfoContext(ctx, "Startup sync check complete",
		"processed", n,
		"pending", stats.Pending,
		"failed", stats.Failed)
	return nil
}

// Run starts the drainer and consumes wake-ups until ctx is cancelled,
// resubscribing with exponential backoff when the broker drops us.
func (w *SyncWorker) Run(ctx context.Context) error {
	if err := w.drainer.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := w.drainer.Stop(stopCtx); err != nil {
			w.logger.Error("Failed to stop sync processor", applog.FieldError, err)
		}
	}()

	if w.consumer == nil {
		w.logger.InfoContext(ctx, "No broker configured, relying on outbox polling")
		<-ctx.Done()
		return nil
	}

	backoff := w.minBackoff
	for {
		started := time.Now()
		err := w.consumer.ConsumeOutboxWake(ctx, w.HandleWake)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = errors.New("consumer returned")
		}
		// A subscription that stayed up for a while resets the backoff.
		if time.Since(started) > w.maxBackoff {
			backoff = w.minBackoff
		}
		w.logger.WarnContext(ctx, "Wake-up consumption interrupted, resubscribing",
			applog.FieldError, err,
			"retry_in", backoff)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, w.maxBackoff)
	}
}
