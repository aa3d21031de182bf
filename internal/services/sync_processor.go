package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tripledger/internal/sheets"
	"tripledger/internal/storage"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to check for pending items (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of items to process per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the maximum retry attempts before marking as failed (default: 3)
	MaxRetries int

	// RetryBackoff is the delay before the first retry; it doubles per attempt (default: 30s)
	RetryBackoff time.Duration

	// MaxBackoff caps the retry delay (default: 30m)
	MaxBackoff time.Duration

	// CleanupInterval is how often to clean up completed items (default: 1h)
	CleanupInterval time.Duration

	// CleanupAge is how old completed items must be before cleanup (default: 24h)
	CleanupAge time.Duration
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval:    10 * time.Second,
		BatchSize:       10,
		MaxRetries:      3,
		RetryBackoff:    30 * time.Second,
		MaxBackoff:      30 * time.Minute,
		CleanupInterval: 1 * time.Hour,
		CleanupAge:      24 * time.Hour,
	}
}

// SyncProcessor drains the outbox: sheet export and removal, receipt purge.
type SyncProcessor struct {
	outbox   storage.Outbox
	repo     Repository
	exporter sheets.ExpenseExporter
	purger   ReceiptPurger
	config   SyncProcessorConfig
	now      func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	wakeCh  chan struct{}
}

// NewSyncProcessor creates a new sync processor. exporter and purger may be
// nil; their items are then completed without side effects.
func NewSyncProcessor(
	outbox storage.Outbox,
	repo Repository,
	exporter sheets.ExpenseExporter,
	purger ReceiptPurger,
	config SyncProcessorConfig,
) *SyncProcessor {
	return &SyncProcessor{
		outbox:   outbox,
		repo:     repo,
		exporter: exporter,
		purger:   purger,
		config:   config,
		now:      time.Now,
		wakeCh:   make(chan struct{}, 1),
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	// Items left in processing by a crash are retried
	if err := p.outbox.ResetStaleProcessing(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to reset stale processing items", "error", err)
	}

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize,
		"sheets_enabled", p.exporter != nil)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Wake schedules an immediate batch. It never blocks.
func (p *SyncProcessor) Wake() {
	select {
	case p.wakeCh <- struct{}{}:
	default:
	}
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(p.config.CleanupInterval)
	defer cleanupTicker.Stop()

	p.processBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.processBatch(ctx)
		case <-p.wakeCh:
			p.processBatch(ctx)
		case <-cleanupTicker.C:
			p.cleanupCompleted(ctx)
		}
	}
}

func (p *SyncProcessor) stopping(ctx context.Context) bool {
	select {
	case <-p.stopCh:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (p *SyncProcessor) processBatch(ctx context.Context) {
	if _, err := p.ProcessOnce(ctx); err != nil {
		slog.ErrorContext(ctx, "Failed to dequeue outbox batch", "error", err)
	}
}

// ProcessOnce handles one batch of due items and returns how many were
// attempted.
func (p *SyncProcessor) ProcessOnce(ctx context.Context) (int, error) {
	items, err := p.outbox.DequeueOutboxBatch(ctx, p.config.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	slog.DebugContext(ctx, "Processing outbox batch", "count", len(items))

	done := 0
	for _, item := range items {
		if p.stopping(ctx) {
			break
		}

		if err := p.outbox.MarkOutboxProcessing(ctx, item.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mark item as processing",
				"outbox_id", item.ID, "error", err)
			continue
		}

		var processErr error
		switch item.Kind {
		case storage.OutboxExport:
			processErr = p.processExport(ctx, item)
		case storage.OutboxUnexport:
			processErr = p.processUnexport(ctx, item)
		case storage.OutboxReceiptPurge:
			processErr = p.processReceiptPurge(ctx, item)
		default:
			processErr = fmt.Errorf("unknown outbox kind: %s", item.Kind)
		}

		if processErr != nil {
			p.handleFailure(ctx, item, processErr)
		} else {
			p.handleSuccess(ctx, item)
		}
		done++
	}
	return done, nil
}

// processExport upserts the current state of the expense in the sheet.
func (p *SyncProcessor) processExport(ctx context.Context, item storage.OutboxItem) error {
	if p.exporter == nil {
		slog.DebugContext(ctx, "No sheet exporter configured, skipping export", "expense_id", item.ExpenseID)
		return nil
	}

	expense, err := p.repo.GetExpense(ctx, item.ExpenseID)
	if storage.IsNotFound(err) {
		// deleted meanwhile; the unexport item queued with the delete wins
		slog.DebugContext(ctx, "Expense gone before export", "expense_id", item.ExpenseID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get expense %s: %w", item.ExpenseID, err)
	}
	trip, err := p.repo.GetTrip(ctx, expense.TripID)
	if storage.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get trip %s: %w", expense.TripID, err)
	}

	ref, err := p.exporter.ExportExpense(ctx, trip, expense)
	if err != nil {
		return fmt.Errorf("export to sheets: %w", err)
	}

	slog.InfoContext(ctx, "Exported expense to Google Sheets",
		"expense_id", item.ExpenseID,
		"trip_id", trip.ID,
		"sheets_ref", ref)
	return nil
}

func (p *SyncProcessor) processUnexport(ctx context.Context, item storage.OutboxItem) error {
	if p.exporter == nil {
		slog.DebugContext(ctx, "No sheet exporter configured, skipping removal", "expense_id", item.ExpenseID)
		return nil
	}
	if err := p.exporter.RemoveExpense(ctx, item.ExpenseID); err != nil {
		return fmt.Errorf("remove from sheets: %w", err)
	}
	slog.InfoContext(ctx, "Removed expense from Google Sheets", "expense_id", item.ExpenseID)
	return nil
}

func (p *SyncProcessor) processReceiptPurge(ctx context.Context, item storage.OutboxItem) error {
	if p.purger == nil {
		slog.WarnContext(ctx, "No receipt purger configured, skipping purge",
			"expense_id", item.ExpenseID,
			"image_url", item.ImageURL)
		return nil
	}
	if err := p.purger.PurgeReceipt(ctx, item.ExpenseID, item.ImageURL); err != nil {
		return fmt.Errorf("purge receipt: %w", err)
	}
	return nil
}

func (p *SyncProcessor) handleSuccess(ctx context.Context, item storage.OutboxItem) {
	if err := p.outbox.MarkOutboxComplete(ctx, item.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark outbox item complete",
			"outbox_id", item.ID, "error", err)
	}
}

// handleFailure retries with exponential backoff until MaxRetries, then
// parks the item as failed for RetryFailed.
func (p *SyncProcessor) handleFailure(ctx context.Context, item storage.OutboxItem, processErr error) {
	attempt := item.Attempts + 1
	slog.WarnContext(ctx, "Outbox processing failed",
		"outbox_id", item.ID,
		"outbox_kind", item.Kind,
		"attempt", attempt,
		"error", processErr)

	if attempt >= int64(p.config.MaxRetries) {
		if err := p.outbox.MarkOutboxFailed(ctx, item.ID, processErr.Error()); err != nil {
			slog.ErrorContext(ctx, "Failed to mark outbox item as failed",
				"outbox_id", item.ID, "error", err)
		}
		slog.ErrorContext(ctx, "Outbox item failed permanently after max retries",
			"outbox_id", item.ID,
			"expense_id", item.ExpenseID,
			"attempts", attempt)
		return
	}

	next := p.now().Add(p.retryDelay(item.Attempts))
	if err := p.outbox.IncrementOutboxAttempt(ctx, item.ID, processErr.Error(), next); err != nil {
		slog.ErrorContext(ctx, "Failed to schedule outbox retry",
			"outbox_id", item.ID, "error", err)
	}
}

// retryDelay is RetryBackoff doubled per previous attempt, capped at MaxBackoff.
func (p *SyncProcessor) retryDelay(attempts int64) time.Duration {
	d := p.config.RetryBackoff
	for i := int64(0); i < attempts; i++ {
		d *= 2
		if p.config.MaxBackoff > 0 && d >= p.config.MaxBackoff {
			return p.config.MaxBackoff
		}
	}
	return d
}

func (p *SyncProcessor) cleanupCompleted(ctx context.Context) {
	cutoff := p.now().Add(-p.config.CleanupAge)
	if err := p.outbox.CleanupCompletedOutbox(ctx, cutoff); err != nil {
		slog.ErrorContext(ctx, "Failed to cleanup completed outbox items", "error", err)
	}
}

// Stats returns current queue statistics
func (p *SyncProcessor) Stats(ctx context.Context) (storage.OutboxStats, error) {
	return p.outbox.OutboxStats(ctx)
}

// RetryFailed resets all failed items for retry
func (p *SyncProcessor) RetryFailed(ctx context.Context) error {
	return p.outbox.RetryFailedOutbox(ctx)
}
