package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemStore is a mutex-guarded Store for tests and broker-less runs.
type MemStore struct {
	mu      sync.Mutex
	nextID  int64
	records []*Record
}

func NewMemStore() *MemStore {
	return &MemStore{nextID: 1}
}

func (s *MemStore) Insert(ctx context.Context, eventID, topic, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, &Record{
		ID:        s.nextID,
		EventID:   eventID,
		Topic:     topic,
		Key:       key,
		Payload:   data,
		CreatedAt: time.Now().UTC(),
	})
	s.nextID++
	return nil
}

func (s *MemStore) FetchPending(ctx context.Context, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, rec := range s.records {
		if rec.SentAt != nil {
			continue
		}
		out = append(out, *rec)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemStore) MarkSent(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.find(id)
	if rec == nil {
		return fmt.Errorf("outbox record %d not found", id)
	}
	now := time.Now().UTC()
	rec.SentAt = &now
	return nil
}

func (s *MemStore) MarkFailed(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.find(id)
	if rec == nil {
		return fmt.Errorf("outbox record %d not found", id)
	}
	rec.Attempts++
	return nil
}

func (s *MemStore) Pending(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rec := range s.records {
		if rec.SentAt == nil {
			n++
		}
	}
	return n, nil
}

func (s *MemStore) find(id int64) *Record {
	for _, rec := range s.records {
		if rec.ID == id {
			return rec
		}
	}
	return nil
}
