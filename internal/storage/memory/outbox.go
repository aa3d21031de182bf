package memory

import (
	"context"
	"fmt"
	"time"

	"tripledger/internal/storage"
)

func (s *Store) enqueueLocked(item storage.OutboxItem, now time.Time) {
	s.nextID++
	item.ID = s.nextID
	item.Status = storage.OutboxPending
	item.NextAttemptAt = truncate(now)
	item.CreatedAt = truncate(now)
	s.outbox = append(s.outbox, item)
}

func (s *Store) find(id int64) (*storage.OutboxItem, error) {
	for i := range s.outbox {
		if s.outbox[i].ID == id {
			return &s.outbox[i], nil
		}
	}
	return nil, fmt.Errorf("outbox item %d: %w", id, storage.ErrNotFound)
}

func (s *Store) DequeueOutboxBatch(_ context.Context, limit int) ([]storage.OutboxItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var out []storage.OutboxItem
	for _, it := range s.outbox {
		if len(out) >= limit {
			break
		}
		if it.Status == storage.OutboxPending && !it.NextAttemptAt.After(now) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *Store) transition(id int64, from, to storage.OutboxStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, err := s.find(id)
	if err != nil {
		return err
	}
	if it.Status != from {
		return fmt.Errorf("outbox item %d is not %s", id, from)
	}
	it.Status = to
	return nil
}

func (s *Store) MarkOutboxProcessing(_ context.Context, id int64) error {
	return s.transition(id, storage.OutboxPending, storage.OutboxProcessing)
}

func (s *Store) MarkOutboxComplete(_ context.Context, id int64) error {
	if err := s.transition(id, storage.OutboxProcessing, storage.OutboxCompleted); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if it, err := s.find(id); err == nil {
		it.NextAttemptAt = truncate(s.now()) // completion time, used by cleanup
	}
	return nil
}

func (s *Store) MarkOutboxFailed(_ context.Context, id int64, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, err := s.find(id)
	if err != nil {
		return err
	}
	it.Status = storage.OutboxFailed
	it.Attempts++
	it.LastError = lastError
	return nil
}

func (s *Store) IncrementOutboxAttempt(_ context.Context, id int64, lastError string, next time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, err := s.find(id)
	if err != nil {
		return err
	}
	it.Status = storage.OutboxPending
	it.Attempts++
	it.LastError = lastError
	it.NextAttemptAt = truncate(next)
	return nil
}

func (s *Store) ResetStaleProcessing(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if s.outbox[i].Status == storage.OutboxProcessing {
			s.outbox[i].Status = storage.OutboxPending
		}
	}
	return nil
}

func (s *Store) CleanupCompletedOutbox(_ context.Context, before time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.outbox[:0]
	for _, it := range s.outbox {
		if it.Status == storage.OutboxCompleted && it.NextAttemptAt.Before(before) {
			continue
		}
		kept = append(kept, it)
	}
	s.outbox = kept
	return nil
}

func (s *Store) OutboxStats(context.Context) (storage.OutboxStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st storage.OutboxStats
	for _, it := range s.outbox {
		switch it.Status {
		case storage.OutboxPending:
			st.Pending++
		case storage.OutboxProcessing:
			st.Processing++
		case storage.OutboxCompleted:
			st.Completed++
		case storage.OutboxFailed:
			st.Failed++
		}
	}
	return st, nil
}

func (s *Store) RetryFailedOutbox(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := truncate(s.now())
	for i := range s.outbox {
		if s.outbox[i].Status == storage.OutboxFailed {
			s.outbox[i].Status = storage.OutboxPending
			s.outbox[i].Attempts = 0
			s.outbox[i].NextAttemptAt = now
		}
	}
	return nil
}
