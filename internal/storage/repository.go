package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"tripledger/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteRepository)(nil)

// DSN builds a modernc sqlite data source name with the pragmas the
// repository relies on.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// --- trips ---

const tripColumns = `id, user_id, name, destination, start_date, end_date, budget_cents, time_zone, created_at`

func (r *SQLiteRepository) CreateTrip(ctx context.Context, t core.Trip) (core.Trip, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = r.now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO trips (`+tripColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Name, t.Destination,
		toMillis(t.StartDate), toMillis(t.EndDate), budgetArg(t.Budget), t.TimeZone,
		toMillis(t.CreatedAt))
	if err != nil {
		return core.Trip{}, fmt.Errorf("insert trip: %w", err)
	}

	slog.InfoContext(ctx, "Trip saved to SQLite", "trip_id", t.ID, "user_id", t.UserID)
	return normalizeTrip(t), nil
}

func (r *SQLiteRepository) GetTrip(ctx context.Context, id string) (core.Trip, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = ?`, id)
	t, err := scanTrip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Trip{}, fmt.Errorf("get trip %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Trip{}, fmt.Errorf("get trip %s: %w", id, err)
	}
	return t, nil
}

func (r *SQLiteRepository) ListTrips(ctx context.Context, userID string) ([]core.Trip, error) {
	return r.queryTrips(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
}

func (r *SQLiteRepository) ListTripsOverlapping(ctx context.Context, from, to time.Time) ([]core.Trip, error) {
	return r.queryTrips(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE start_date <= ? AND end_date >= ? ORDER BY start_date, id`,
		toMillis(to), toMillis(from))
}

func (r *SQLiteRepository) queryTrips(ctx context.Context, query string, args ...any) ([]core.Trip, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trips: %w", err)
	}
	defer rows.Close()

	trips := []core.Trip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

func (r *SQLiteRepository) UpdateTrip(ctx context.Context, t core.Trip) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE trips SET name = ?, destination = ?, start_date = ?, end_date = ?, budget_cents = ?, time_zone = ?
		 WHERE id = ?`,
		t.Name, t.Destination, toMillis(t.StartDate), toMillis(t.EndDate), budgetArg(t.Budget), t.TimeZone, t.ID)
	if err != nil {
		return fmt.Errorf("update trip %s: %w", t.ID, err)
	}
	return expectOneRow(res, "trip", t.ID)
}

// DeleteTrip removes the trip and its expenses in one transaction. Sheet
// rows and receipt images live outside the database, so their removal is
// queued in the same transaction and retried by the outbox processor.
func (r *SQLiteRepository) DeleteTrip(ctx context.Context, id string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete trip: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id, image_url FROM expenses WHERE trip_id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("list trip expenses: %w", err)
	}
	type ref struct{ id, image string }
	var refs []ref
	for rows.Next() {
		var x ref
		if err := rows.Scan(&x.id, &x.image); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan expense ref: %w", err)
		}
		refs = append(refs, x)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("list trip expenses: %w", err)
	}

	now := r.now()
	for _, x := range refs {
		if err := enqueue(ctx, tx, OutboxItem{Kind: OutboxUnexport, TripID: id, ExpenseID: x.id}, now); err != nil {
			return 0, err
		}
		if x.image != "" {
			if err := enqueue(ctx, tx, OutboxItem{Kind: OutboxReceiptPurge, TripID: id, ExpenseID: x.id, ImageURL: x.image}, now); err != nil {
				return 0, err
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE trip_id = ?`, id); err != nil {
		return 0, fmt.Errorf("delete trip expenses: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM reminders WHERE trip_id = ?`, id); err != nil {
		return 0, fmt.Errorf("delete trip reminders: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM trips WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("delete trip %s: %w", id, err)
	}
	if err := expectOneRow(res, "trip", id); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete trip: %w", err)
	}

	slog.InfoContext(ctx, "Trip deleted with expenses", "trip_id", id, "expenses", len(refs))
	return len(refs), nil
}

// --- expenses ---

const expenseColumns = `id, trip_id, user_id, amount_cents, category, date, latitude, longitude, location_name, notes, image_url, created_at`

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin create expense: %w", err)
	}
	defer tx.Rollback()

	lat, lng, name := locationArgs(e.Location)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TripID, e.UserID, e.Amount.Cents, string(e.Category), toMillis(e.Date),
		lat, lng, name, e.Notes, e.ImageURL, toMillis(e.CreatedAt))
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	if err := enqueue(ctx, tx, OutboxItem{Kind: OutboxExport, TripID: e.TripID, ExpenseID: e.ID}, r.now()); err != nil {
		return core.Expense{}, err
	}
	if err := tx.Commit(); err != nil {
		return core.Expense{}, fmt.Errorf("commit create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"expense_id", e.ID,
		"trip_id", e.TripID,
		"amount_cents", e.Amount.Cents,
		"category", e.Category)

	return normalizeExpense(e), nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("get expense %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %s: %w", id, err)
	}
	return e, nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, tripID string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE trip_id = ? ORDER BY date DESC, created_at DESC, id`, tripID)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update expense: %w", err)
	}
	defer tx.Rollback()

	var oldImage string
	err = tx.QueryRowContext(ctx, `SELECT image_url FROM expenses WHERE id = ?`, e.ID).Scan(&oldImage)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update expense %s: %w", e.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update expense %s: %w", e.ID, err)
	}

	lat, lng, name := locationArgs(e.Location)
	_, err = tx.ExecContext(ctx,
		`UPDATE expenses SET amount_cents = ?, category = ?, date = ?, latitude = ?, longitude = ?,
		 location_name = ?, notes = ?, image_url = ? WHERE id = ?`,
		e.Amount.Cents, string(e.Category), toMillis(e.Date), lat, lng, name, e.Notes, e.ImageURL, e.ID)
	if err != nil {
		return fmt.Errorf("update expense %s: %w", e.ID, err)
	}

	now := r.now()
	if err := enqueue(ctx, tx, OutboxItem{Kind: OutboxExport, TripID: e.TripID, ExpenseID: e.ID}, now); err != nil {
		return err
	}
	if oldImage != "" && oldImage != e.ImageURL {
		if err := enqueue(ctx, tx, OutboxItem{Kind: OutboxReceiptPurge, TripID: e.TripID, ExpenseID: e.ID, ImageURL: oldImage}, now); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update expense: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete expense: %w", err)
	}
	defer tx.Rollback()

	var tripID, image string
	err = tx.QueryRowContext(ctx, `SELECT trip_id, image_url FROM expenses WHERE id = ?`, id).Scan(&tripID, &image)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("delete expense %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}

	now := r.now()
	if err := enqueue(ctx, tx, OutboxItem{Kind: OutboxUnexport, TripID: tripID, ExpenseID: id}, now); err != nil {
		return err
	}
	if image != "" {
		if err := enqueue(ctx, tx, OutboxItem{Kind: OutboxReceiptPurge, TripID: tripID, ExpenseID: id, ImageURL: image}, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// --- reminders ---

func (r *SQLiteRepository) GetReminder(ctx context.Context, tripID, kind string) (ReminderRecord, error) {
	rec := ReminderRecord{TripID: tripID, Kind: kind}
	var sent int64
	err := r.db.QueryRowContext(ctx,
		`SELECT sent_at, state FROM reminders WHERE trip_id = ? AND kind = ?`, tripID, kind).Scan(&sent, &rec.State)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, nil
	}
	if err != nil {
		return rec, fmt.Errorf("get reminder: %w", err)
	}
	rec.SentAt = fromMillis(sent)
	return rec, nil
}

func (r *SQLiteRepository) SaveReminder(ctx context.Context, rec ReminderRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reminders (trip_id, kind, sent_at, state) VALUES (?, ?, ?, ?)
		 ON CONFLICT (trip_id, kind) DO UPDATE SET sent_at = excluded.sent_at, state = excluded.state`,
		rec.TripID, rec.Kind, toMillis(rec.SentAt), rec.State)
	if err != nil {
		return fmt.Errorf("save reminder: %w", err)
	}
	return nil
}

// --- helpers ---

type scanner interface {
	Scan(dest ...any) error
}

func scanTrip(s scanner) (core.Trip, error) {
	var (
		t                     core.Trip
		start, end, createdAt int64
		budget                sql.NullInt64
	)
	if err := s.Scan(&t.ID, &t.UserID, &t.Name, &t.Destination, &start, &end, &budget, &t.TimeZone, &createdAt); err != nil {
		return core.Trip{}, err
	}
	t.StartDate = fromMillis(start)
	t.EndDate = fromMillis(end)
	t.CreatedAt = fromMillis(createdAt)
	if budget.Valid {
		t.Budget = &core.Money{Cents: budget.Int64}
	}
	return t, nil
}

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e               core.Expense
		category        string
		date, createdAt int64
		lat, lng        sql.NullFloat64
		locationName    string
	)
	if err := s.Scan(&e.ID, &e.TripID, &e.UserID, &e.Amount.Cents, &category, &date,
		&lat, &lng, &locationName, &e.Notes, &e.ImageURL, &createdAt); err != nil {
		return core.Expense{}, err
	}
	e.Category = core.Category(category)
	e.Date = fromMillis(date)
	e.CreatedAt = fromMillis(createdAt)
	if lat.Valid && lng.Valid {
		e.Location = &core.Location{Latitude: lat.Float64, Longitude: lng.Float64, Name: locationName}
	}
	return e, nil
}

func budgetArg(b *core.Money) any {
	if b == nil {
		return nil
	}
	return b.Cents
}

func locationArgs(l *core.Location) (any, any, string) {
	if l == nil {
		return nil, nil, ""
	}
	return l.Latitude, l.Longitude, strings.TrimSpace(l.Name)
}

func expectOneRow(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s rows affected: %w", what, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return nil
}

// normalizeTrip rounds timestamps to the precision the store keeps.
func normalizeTrip(t core.Trip) core.Trip {
	t.StartDate = fromMillis(toMillis(t.StartDate))
	t.EndDate = fromMillis(toMillis(t.EndDate))
	t.CreatedAt = fromMillis(toMillis(t.CreatedAt))
	return t
}

func normalizeExpense(e core.Expense) core.Expense {
	e.Date = fromMillis(toMillis(e.Date))
	e.CreatedAt = fromMillis(toMillis(e.CreatedAt))
	if e.Location != nil {
		l := *e.Location
		l.Name = strings.TrimSpace(l.Name)
		e.Location = &l
	}
	return e
}
