package ledger

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a mutex-guarded in-memory Store. It backs the local mirror
// tier when the primary store is unreachable and doubles as the test double.
type MemoryStore struct {
	mu     sync.Mutex
	byID   map[string]Record
	byDate map[string]string // studentID+"|"+date -> record id
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]Record),
		byDate: make(map[string]string),
	}
}

func dateKey(studentID, date string) string { return studentID + "|" + date }

// InsertIfAbsent inserts under the lock, so the admission check and the write
// are a single critical section per (student, date) key.
func (m *MemoryStore) InsertIfAbsent(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := dateKey(rec.StudentID, rec.Date)
	if _, exists := m.byDate[key]; exists {
		return ErrDuplicateCheckIn
	}
	m.byDate[key] = rec.ID
	m.byID[rec.ID] = rec
	return nil
}

// GetByDate returns the record for a (student, date) pair.
func (m *MemoryStore) GetByDate(_ context.Context, studentID, date string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byDate[dateKey(studentID, date)]
	if !ok {
		return Record{}, ErrNotFound
	}
	return m.byID[id], nil
}

// ListByStudent returns the student's records, newest date first.
func (m *MemoryStore) ListByStudent(_ context.Context, studentID string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var recs []Record
	for _, rec := range m.byID {
		if rec.StudentID == studentID {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Date > recs[j].Date })
	return recs, nil
}

// Delete removes one record by id.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	delete(m.byDate, dateKey(rec.StudentID, rec.Date))
	return nil
}

// CountByStatus aggregates the student's records by status.
func (m *MemoryStore) CountByStatus(_ context.Context, studentID string) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var st Stats
	for _, rec := range m.byID {
		if rec.StudentID != studentID {
			continue
		}
		st.Total++
		switch rec.Status {
		case StatusPresent:
			st.Present++
		case StatusLate:
			st.Late++
		}
	}
	return st, nil
}
