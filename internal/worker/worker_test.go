package worker

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripledger/internal/amqp"
	applog "tripledger/internal/log"
	"tripledger/internal/services"
	"tripledger/internal/storage"
)

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Output: &bytes.Buffer{}})
}

type fakeDrainer struct {
	mu        sync.Mutex
	started   int
	stopped   int
	wakes     int
	processed int
	err       error
}

func (d *fakeDrainer) Start(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started++
	return nil
}

func (d *fakeDrainer) Stop(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped++
	return nil
}

func (d *fakeDrainer) Wake() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.wakes++
}

func (d *fakeDrainer) ProcessOnce(context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return 0, d.err
	}
	d.processed++
	return 2, nil
}

func (d *fakeDrainer) Stats(context.Context) (storage.OutboxStats, error) {
	return storage.OutboxStats{Pending: 1}, nil
}

func (d *fakeDrainer) counts() (started, stopped, wakes int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started, d.stopped, d.wakes
}

// flakyConsumer fails its first subscription, then delivers two wake-ups
// and blocks until cancelled.
type flakyConsumer struct {
	calls atomic.Int32
}

func (c *flakyConsumer) ConsumeOutboxWake(ctx context.Context, handler func(*amqp.OutboxWakeMessage) error) error {
	if c.calls.Add(1) == 1 {
		return errors.New("channel closed")
	}
	_ = handler(amqp.NewOutboxWakeMessage("expense_created", "t1"))
	_ = handler(amqp.NewOutboxWakeMessage("trip_deleted", "t2"))
	<-ctx.Done()
	return ctx.Err()
}

func TestSyncWorker_HandleWake(t *testing.T) {
	d := &fakeDrainer{}
	w := NewSyncWorker(d, nil, quietLogger())

	require.NoError(t, w.HandleWake(amqp.NewOutboxWakeMessage("expense_created", "t1")))
	_, _, wakes := d.counts()
	assert.Equal(t, 1, wakes)
	assert.Equal(t, int64(1), w.Wakeups())
}

func TestSyncWorker_StartupSyncCheck(t *testing.T) {
	d := &fakeDrainer{}
	w := NewSyncWorker(d, nil, quietLogger())
	require.NoError(t, w.StartupSyncCheck(context.Background()))
	assert.Equal(t, 1, d.processed)

	d.err = errors.New("db locked")
	assert.ErrorContains(t, w.StartupSyncCheck(context.Background()), "db locked")
}

func TestSyncWorker_RunResubscribes(t *testing.T) {
	d := &fakeDrainer{}
	c := &flakyConsumer{}
	w := NewSyncWorker(d, c, quietLogger())
	w.minBackoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return w.Wakeups() == 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	started, stopped, wakes := d.counts()
	assert.Equal(t, 1, started)
	assert.Equal(t, 1, stopped)
	assert.Equal(t, 2, wakes)
	assert.Equal(t, int32(2), c.calls.Load())
}

func TestSyncWorker_RunWithoutConsumer(t *testing.T) {
	d := &fakeDrainer{}
	w := NewSyncWorker(d, nil, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.NoError(t, w.Run(ctx))

	started, stopped, _ := d.counts()
	assert.Equal(t, 1, started)
	assert.Equal(t, 1, stopped)
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
}

func (r *fakeRunner) ProcessDue(_ context.Context, now time.Time) (services.ReminderResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, now)
	return services.ReminderResult{ActiveTrips: 1, Reminders: 1}, r.err
}

func (r *fakeRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestReminderWorker_RunOnce(t *testing.T) {
	r := &fakeRunner{}
	w := NewReminderWorker(r, time.Minute, quietLogger())
	fixed := time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	res, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reminders)
	require.Len(t, r.calls, 1)
	assert.True(t, r.calls[0].Equal(fixed))

	r.err = errors.New("boom")
	_, err = w.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestReminderWorker_RunTicksUntilCancelled(t *testing.T) {
	r := &fakeRunner{err: errors.New("transient")}
	w := NewReminderWorker(r, 5*time.Millisecond, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Failures do not stop the loop.
	require.Eventually(t, func() bool { return r.count() >= 3 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestNewReminderWorkerDefaultsInterval(t *testing.T) {
	w := NewReminderWorker(&fakeRunner{}, 0, nil)
	assert.Equal(t, 15*time.Minute, w.interval)
}
