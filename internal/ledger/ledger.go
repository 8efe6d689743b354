package ledger

import (
	"context"
	"errors"
	"time"
)

// DateLayout is the calendar-day key format used for the one-check-in-per-day rule.
const DateLayout = "2006-01-02"

// Status is the recorded outcome of a check-in. Absent days produce no record
// at all, so "absent" is never a stored value.
type Status string

const (
	StatusPresent Status = "present"
	StatusLate    Status = "late"
)

// Record is one attendance check-in. Date and Status are fixed at check-in
// time; there is no in-place edit, only delete.
type Record struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	Date        string    `json:"date"`
	CheckInTime string    `json:"check_in_time"`
	Status      Status    `json:"status"`
	Subject     *string   `json:"subject,omitempty"`
	Notes       *string   `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Stats aggregates a student's records by status. Present+Late always equals
// Total.
type Stats struct {
	Total   int `json:"total"`
	Present int `json:"present"`
	Late    int `json:"late"`
}

var (
	// ErrDuplicateCheckIn means a record already exists for the (student, date) pair.
	ErrDuplicateCheckIn = errors.New("already checked in today")
	// ErrNotFound means no record matched the id or date.
	ErrNotFound = errors.New("attendance record not found")
	// ErrStorageUnavailable wraps transport/timeout failures from a store tier.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Store is the persistence surface the ledger needs. InsertIfAbsent must be
// atomic for a given (student, date) key: the admission check and the write
// happen as one conditional insert, never as a separate check then insert.
type Store interface {
	InsertIfAbsent(ctx context.Context, rec Record) error
	GetByDate(ctx context.Context, studentID, date string) (Record, error)
	ListByStudent(ctx context.Context, studentID string) ([]Record, error)
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context, studentID string) (Stats, error)
}
