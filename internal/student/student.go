package student

import (
	"context"
	"errors"
	"time"
)

// Student is the single profile the tracker revolves around. ID is immutable
// once created; RollNumber is unique across all students.
type Student struct {
	ID         string    `json:"id"`
	Name       string    `json:"name" binding:"required"`
	RollNumber string    `json:"roll_number" binding:"required"`
	Course     string    `json:"course" binding:"required"`
	Semester   string    `json:"semester" binding:"required"`
	Email      string    `json:"email" binding:"required" validate:"email"`
	CreatedAt  time.Time `json:"created_at"`
}

var (
	// ErrNotFound means no student matched the id or roll number.
	ErrNotFound = errors.New("student not found")
	// ErrRollNumberTaken means another student already holds the roll number.
	ErrRollNumberTaken = errors.New("roll number already exists")
)

// Store is the persistence surface for student profiles.
type Store interface {
	Insert(ctx context.Context, s Student) error
	GetByID(ctx context.Context, id string) (Student, error)
	GetByRoll(ctx context.Context, rollNumber string) (Student, error)
	Update(ctx context.Context, s Student) error
	List(ctx context.Context) ([]Student, error)
}
