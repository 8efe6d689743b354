package student

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store used in tests and as a local fallback.
type MemoryStore struct {
	mu     sync.Mutex
	byID   map[string]Student
	byRoll map[string]string // roll number -> student id
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]Student),
		byRoll: make(map[string]string),
	}
}

// Insert writes a new profile, enforcing roll number uniqueness.
func (m *MemoryStore) Insert(_ context.Context, s Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byRoll[s.RollNumber]; taken {
		return ErrRollNumberTaken
	}
	m.byID[s.ID] = s
	m.byRoll[s.RollNumber] = s.ID
	return nil
}

// GetByID returns one profile.
func (m *MemoryStore) GetByID(_ context.Context, id string) (Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return Student{}, ErrNotFound
	}
	return s, nil
}

// GetByRoll returns the profile holding a roll number.
func (m *MemoryStore) GetByRoll(_ context.Context, rollNumber string) (Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byRoll[rollNumber]
	if !ok {
		return Student{}, ErrNotFound
	}
	return m.byID[id], nil
}

// Update replaces every mutable field, keeping roll number uniqueness.
func (m *MemoryStore) Update(_ context.Context, s Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.byID[s.ID]
	if !ok {
		return ErrNotFound
	}
	if id, taken := m.byRoll[s.RollNumber]; taken && id != s.ID {
		return ErrRollNumberTaken
	}
	delete(m.byRoll, prev.RollNumber)
	m.byID[s.ID] = s
	m.byRoll[s.RollNumber] = s.ID
	return nil
}

// List returns all profiles ordered by roll number.
func (m *MemoryStore) List(_ context.Context) ([]Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Student, 0, len(m.byID))
	for _, s := range m.byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RollNumber < out[j].RollNumber })
	return out, nil
}
