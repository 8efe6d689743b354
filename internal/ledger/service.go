package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultLateCutoffHour is the hour-of-day at which a check-in flips from
// present to late. Nominal class start is 9:00; the cutoff includes a one-hour
// grace window, so anything before 10:00 counts as present.
const DefaultLateCutoffHour = 10

const defaultStoreTimeout = 3 * time.Second

// Service enforces the daily admission rule and derives check-in status.
type Service struct {
	store        Store
	cutoffHour   int
	storeTimeout time.Duration
	logger       *slog.Logger
}

// NewService creates the ledger service. cutoffHour <= 0 falls back to the
// default grace-window cutoff; storeTimeout bounds every store call.
func NewService(store Store, cutoffHour int, storeTimeout time.Duration, logger *slog.Logger) *Service {
	if cutoffHour <= 0 || cutoffHour > 23 {
		cutoffHour = DefaultLateCutoffHour
	}
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, cutoffHour: cutoffHour, storeTimeout: storeTimeout, logger: logger}
}

// StatusAt derives the check-in status from the local hour-of-day.
func (s *Service) StatusAt(at time.Time) Status {
	if at.Hour() < s.cutoffHour {
		return StatusPresent
	}
	return StatusLate
}

// CheckIn records today's attendance for a student. At most one record may
// exist per (student, calendar date); a second attempt for the same day
// returns ErrDuplicateCheckIn and leaves the first record untouched.
func (s *Service) CheckIn(ctx context.Context, studentID string, at time.Time, subject, notes *string) (Record, error) {
	rec := Record{
		ID:          uuid.NewString(),
		StudentID:   studentID,
		Date:        at.Format(DateLayout),
		CheckInTime: at.Format("3:04:05 PM"),
		Status:      s.StatusAt(at),
		Subject:     subject,
		Notes:       notes,
		CreatedAt:   time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.store.InsertIfAbsent(ctx, rec); err != nil {
		return Record{}, err
	}
	s.logger.InfoContext(ctx, "check-in recorded",
		"student_id", studentID, "date", rec.Date, "status", rec.Status)
	return rec, nil
}

// FindByDate returns the record for a (student, date) pair, or ErrNotFound.
func (s *Service) FindByDate(ctx context.Context, studentID, date string) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.GetByDate(ctx, studentID, date)
}

// ListByStudent returns all of a student's records, newest date first.
func (s *Service) ListByStudent(ctx context.Context, studentID string) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.ListByStudent(ctx, studentID)
}

// Delete removes one record by id.
func (s *Service) Delete(ctx context.Context, recordID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.Delete(ctx, recordID)
}

// Stats aggregates a student's records by status.
func (s *Service) Stats(ctx context.Context, studentID string) (Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.CountByStatus(ctx, studentID)
}
