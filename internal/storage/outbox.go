package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func enqueue(ctx context.Context, ex execer, item OutboxItem, now time.Time) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO outbox (kind, trip_id, expense_id, image_url, status, attempts, next_attempt_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 'pending', 0, ?, ?, ?)`,
		string(item.Kind), item.TripID, item.ExpenseID, item.ImageURL,
		toMillis(now), toMillis(now), toMillis(now))
	if err != nil {
		return fmt.Errorf("enqueue %s for expense %s: %w", item.Kind, item.ExpenseID, err)
	}
	return nil
}

const outboxColumns = `id, kind, trip_id, expense_id, image_url, status, attempts, last_error, next_attempt_at, created_at`

func (r *SQLiteRepository) DequeueOutboxBatch(ctx context.Context, limit int) ([]OutboxItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+outboxColumns+` FROM outbox
		 WHERE status = 'pending' AND next_attempt_at <= ?
		 ORDER BY id LIMIT ?`,
		toMillis(r.now()), limit)
	if err != nil {
		return nil, fmt.Errorf("dequeue outbox: %w", err)
	}
	defer rows.Close()

	var items []OutboxItem
	for rows.Next() {
		var (
			it              OutboxItem
			kind, status    string
			next, createdAt int64
		)
		if err := rows.Scan(&it.ID, &kind, &it.TripID, &it.ExpenseID, &it.ImageURL, &status,
			&it.Attempts, &it.LastError, &next, &createdAt); err != nil {
			return nil, fmt.Errorf("scan outbox item: %w", err)
		}
		it.Kind = OutboxKind(kind)
		it.Status = OutboxStatus(status)
		it.NextAttemptAt = fromMillis(next)
		it.CreatedAt = fromMillis(createdAt)
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *SQLiteRepository) setOutboxStatus(ctx context.Context, id int64, from, to OutboxStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), toMillis(r.now()), id, string(from))
	if err != nil {
		return fmt.Errorf("mark outbox %d %s: %w", id, to, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("outbox item %d is not %s", id, from)
	}
	return nil
}

func (r *SQLiteRepository) MarkOutboxProcessing(ctx context.Context, id int64) error {
	return r.setOutboxStatus(ctx, id, OutboxPending, OutboxProcessing)
}

func (r *SQLiteRepository) MarkOutboxComplete(ctx context.Context, id int64) error {
	return r.setOutboxStatus(ctx, id, OutboxProcessing, OutboxCompleted)
}

func (r *SQLiteRepository) MarkOutboxFailed(ctx context.Context, id int64, lastError string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET status = 'failed', attempts = attempts + 1, last_error = ?, updated_at = ? WHERE id = ?`,
		lastError, toMillis(r.now()), id)
	if err != nil {
		return fmt.Errorf("mark outbox %d failed: %w", id, err)
	}
	slog.WarnContext(ctx, "Outbox item marked as failed", "outbox_id", id)
	return nil
}

func (r *SQLiteRepository) IncrementOutboxAttempt(ctx context.Context, id int64, lastError string, next time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET status = 'pending', attempts = attempts + 1, last_error = ?, next_attempt_at = ?, updated_at = ?
		 WHERE id = ?`,
		lastError, toMillis(next), toMillis(r.now()), id)
	if err != nil {
		return fmt.Errorf("increment outbox %d attempt: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) ResetStaleProcessing(ctx context.Context) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET status = 'pending', updated_at = ? WHERE status = 'processing'`, toMillis(r.now()))
	if err != nil {
		return fmt.Errorf("reset stale outbox items: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.InfoContext(ctx, "Reset stale outbox items", "count", n)
	}
	return nil
}

func (r *SQLiteRepository) CleanupCompletedOutbox(ctx context.Context, before time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM outbox WHERE status = 'completed' AND updated_at < ?`, toMillis(before))
	if err != nil {
		return fmt.Errorf("cleanup outbox: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) OutboxStats(ctx context.Context) (OutboxStats, error) {
	var s OutboxStats
	err := r.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'processing' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		 FROM outbox`).Scan(&s.Pending, &s.Processing, &s.Completed, &s.Failed)
	if err != nil {
		return s, fmt.Errorf("outbox stats: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) RetryFailedOutbox(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET status = 'pending', attempts = 0, next_attempt_at = ?, updated_at = ? WHERE status = 'failed'`,
		toMillis(r.now()), toMillis(r.now()))
	if err != nil {
		return fmt.Errorf("retry failed outbox items: %w", err)
	}
	return nil
}
