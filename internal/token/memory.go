package token

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ Store = &MemoryStore{}

// MemoryStore is an in-memory credential store for development and tests.
// Retention is applied lazily: reads skip records older than the window, so
// the observable behavior matches the TTL-swept Mongo store.
type MemoryStore struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	recs   []Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(window time.Duration) *MemoryStore {
	return &MemoryStore{
		window: window,
		now:    time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) expired(rec *Record) bool {
	return rec.RetentionExpiry(s.window).Before(s.now())
}

func (s *MemoryStore) Insert(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	s.recs = append(s.recs, *rec)
	return nil
}

func (s *MemoryStore) Latest(_ context.Context, principalID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *Record
	for i := range s.recs {
		rec := &s.recs[i]
		if rec.PrincipalID != principalID || s.expired(rec) {
			continue
		}
		if latest == nil || rec.CreatedAt.After(latest.CreatedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, ErrNoToken
	}
	out := *latest
	return &out, nil
}

func (s *MemoryStore) List(_ context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for i := range s.recs {
		if s.expired(&s.recs[i]) {
			continue
		}
		out = append(out, s.recs[i])
	}
	// Newest first, matching the Mongo store's sort.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.recs {
		if s.recs[i].ID == id {
			s.recs = append(s.recs[:i], s.recs[i+1:]...)
			return nil
		}
	}
	return ErrNoToken
}

func (s *MemoryStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recs = nil
	return nil
}
