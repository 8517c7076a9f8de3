package memory

import (
	"context"
	"sync"
	"time"

	"homestay/internal/app/middleware"
)

// IdempotencyStore keeps replayable reservation answers in process. Records
// older than TTL are pruned on every Save; a zero TTL keeps them all.
type IdempotencyStore struct {
	TTL time.Duration

	mu      sync.Mutex
	records map[string]middleware.IdempotencyRecord
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{TTL: ttl, records: map[string]middleware.IdempotencyRecord{}}
}

func (s *IdempotencyStore) Get(_ context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if ok && s.expired(rec, time.Now()) {
		delete(s.records, key)
		return middleware.IdempotencyRecord{}, false, nil
	}
	return rec, ok, nil
}

func (s *IdempotencyStore) Save(_ context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for key, old := range s.records {
		if s.expired(old, now) {
			delete(s.records, key)
		}
	}
	rec.Payload = append([]byte(nil), rec.Payload...)
	s.records[rec.Key] = rec
	return nil
}

// Len reports how many records are held, expired ones included.
func (s *IdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *IdempotencyStore) expired(rec middleware.IdempotencyRecord, now time.Time) bool {
	return s.TTL > 0 && now.Sub(rec.OccurredAt) >= s.TTL
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
