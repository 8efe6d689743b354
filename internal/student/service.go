package student

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service owns profile lifecycle: create once, full-field update, never
// deleted in normal flow.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates the student service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Create registers a new profile, assigning a fresh id.
func (s *Service) Create(ctx context.Context, st Student) (Student, error) {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}
	if err := s.store.Insert(ctx, st); err != nil {
		return Student{}, err
	}
	s.logger.InfoContext(ctx, "student created", "student_id", st.ID, "roll_number", st.RollNumber)
	return st, nil
}

// GetByID returns one profile.
func (s *Service) GetByID(ctx context.Context, id string) (Student, error) {
	return s.store.GetByID(ctx, id)
}

// GetByRoll returns the profile holding a roll number.
func (s *Service) GetByRoll(ctx context.Context, rollNumber string) (Student, error) {
	return s.store.GetByRoll(ctx, rollNumber)
}

// Update replaces every mutable field of the profile; the id never changes.
func (s *Service) Update(ctx context.Context, st Student) error {
	return s.store.Update(ctx, st)
}

// List returns all profiles ordered by roll number.
func (s *Service) List(ctx context.Context) ([]Student, error) {
	return s.store.List(ctx)
}
