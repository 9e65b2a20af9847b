package meeting

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps meetings in memory. Used for tests and local
// development without MongoDB.
type MemoryStore struct {
	mu       sync.Mutex
	meetings map[string]*Meeting
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{meetings: make(map[string]*Meeting)}
}

func (s *MemoryStore) Insert(ctx context.Context, m *Meeting) (*Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.meetings {
		if existing.CourseID == m.CourseID && existing.Start.Equal(m.Start) {
			return nil, ErrDuplicate
		}
	}

	stored := *m
	stored.ID = uuid.NewString()
	s.meetings[stored.ID] = &stored

	out := stored
	return &out, nil
}

func (s *MemoryStore) List(ctx context.Context, courseID string) ([]*Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var meetings []*Meeting
	for _, m := range s.meetings {
		if courseID != "" && m.CourseID != courseID {
			continue
		}
		cp := *m
		meetings = append(meetings, &cp)
	}
	sort.Slice(meetings, func(i, j int) bool {
		return meetings[i].Start.Before(meetings[j].Start)
	})
	return meetings, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.meetings[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, in UpdateInput) (*Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.meetings[id]
	if !ok {
		return nil, ErrNotFound
	}

	if in.Subject != "" {
		m.Subject = in.Subject
	}
	if in.Description != "" {
		m.Description = in.Description
	}
	if in.Instructor != "" {
		m.Instructor = in.Instructor
	}
	if in.RoomNumber != "" {
		m.RoomNumber = in.RoomNumber
	}
	if in.Color != "" {
		m.Color = in.Color
	}

	cp := *m
	return &cp, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.meetings[id]; !ok {
		return ErrNotFound
	}
	delete(s.meetings, id)
	return nil
}
