package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"smartfinance/internal/core"
	"smartfinance/internal/ports"
)

// Store keeps transactions and the feedback outbox in process. It is the
// default backend and the one used by tests.
type Store struct {
	mu       sync.Mutex
	sessions map[string][]core.TransactionRecord
	analysis map[string]ports.SessionData
	outbox   []ports.OutboxItem
	nextID   int64
	now      func() time.Time
}

func New() *Store {
	return &Store{
		sessions: make(map[string][]core.TransactionRecord),
		analysis: make(map[string]ports.SessionData),
		now:      time.Now,
	}
}

func (s *Store) SaveTransaction(_ context.Context, sessionID string, r core.TransactionRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Newest first, same order as the ledger.
	s.sessions[sessionID] = append([]core.TransactionRecord{r}, s.sessions[sessionID]...)
	return nil
}

func (s *Store) UpdateTransaction(_ context.Context, sessionID string, r core.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.sessions[sessionID] {
		if existing.ID == r.ID {
			s.sessions[sessionID][i] = r
			return nil
		}
	}
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, sessionID, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txs := s.sessions[sessionID]
	for i, existing := range txs {
		if existing.ID == id {
			s.sessions[sessionID] = append(txs[:i:i], txs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListTransactions(_ context.Context, sessionID string) ([]core.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.TransactionRecord(nil), s.sessions[sessionID]...), nil
}

func (s *Store) ReplaceSession(_ context.Context, sessionID string, d ports.SessionData) error {
	for _, r := range d.Transactions {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("replace session %s: %w", sessionID, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append([]core.TransactionRecord(nil), d.Transactions...)
	s.analysis[sessionID] = ports.SessionData{
		Categories: append([]core.CategoryBudget(nil), d.Categories...),
		Insights:   append([]core.InsightNote(nil), d.Insights...),
	}
	return nil
}

func (s *Store) LoadSession(_ context.Context, sessionID string) (ports.SessionData, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.analysis[sessionID]
	if !ok {
		return ports.SessionData{}, false, nil
	}
	return ports.SessionData{
		Categories:   append([]core.CategoryBudget(nil), a.Categories...),
		Insights:     append([]core.InsightNote(nil), a.Insights...),
		Transactions: append([]core.TransactionRecord(nil), s.sessions[sessionID]...),
	}, true, nil
}

func (s *Store) EnqueueFeedback(_ context.Context, e core.FeedbackEntry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.outbox = append(s.outbox, ports.OutboxItem{
		ID:        s.nextID,
		Entry:     e,
		Status:    ports.OutboxPending,
		CreatedAt: s.now(),
	})
	return s.nextID, nil
}

func (s *Store) PendingFeedback(_ context.Context, limit int) ([]ports.OutboxItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var out []ports.OutboxItem
	for _, it := range s.outbox {
		if it.Status != ports.OutboxPending || now.Before(it.LeaseUntil) {
			continue
		}
		out = append(out, it)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ClaimFeedback(_ context.Context, id int64, lease time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for i := range s.outbox {
		it := &s.outbox[i]
		if it.ID != id {
			continue
		}
		if it.Status != ports.OutboxPending || now.Before(it.LeaseUntil) {
			return false, nil
		}
		it.LeaseUntil = now.Add(lease)
		return true, nil
	}
	return false, fmt.Errorf("outbox item %d not found", id)
}

func (s *Store) MarkDelivered(_ context.Context, id int64) error {
	return s.update(id, func(it *ports.OutboxItem) {
		it.Status = ports.OutboxDelivered
	})
}

func (s *Store) MarkFailed(_ context.Context, id int64) error {
	return s.update(id, func(it *ports.OutboxItem) {
		it.Attempts++
		it.LeaseUntil = time.Time{}
		if it.Attempts >= ports.MaxOutboxAttempts {
			it.Status = ports.OutboxFailed
		}
	})
}

func (s *Store) update(id int64, fn func(*ports.OutboxItem)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if s.outbox[i].ID == id {
			fn(&s.outbox[i])
			return nil
		}
	}
	return fmt.Errorf("outbox item %d not found", id)
}

func (s *Store) Close() error { return nil }
