package student

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the Postgres error code for a unique constraint breach.
const uniqueViolation = "23505"

// PostgresStore persists student profiles in Postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store over an open connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Insert writes a new profile; a roll number collision is reported as
// ErrRollNumberTaken.
func (p *PostgresStore) Insert(ctx context.Context, s Student) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO students (id, name, roll_number, course, semester, email, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.ID, s.Name, s.RollNumber, s.Course, s.Semester, s.Email, s.CreatedAt)
	return mapErr("insert student", err)
}

// GetByID returns one profile.
func (p *PostgresStore) GetByID(ctx context.Context, id string) (Student, error) {
	return p.getBy(ctx, "id", id)
}

// GetByRoll returns the profile holding a roll number.
func (p *PostgresStore) GetByRoll(ctx context.Context, rollNumber string) (Student, error) {
	return p.getBy(ctx, "roll_number", rollNumber)
}

func (p *PostgresStore) getBy(ctx context.Context, column, value string) (Student, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, name, roll_number, course, semester, email, created_at
		FROM students WHERE `+column+` = $1
	`, value)
	var s Student
	err := row.Scan(&s.ID, &s.Name, &s.RollNumber, &s.Course, &s.Semester, &s.Email, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, ErrNotFound
		}
		return Student{}, mapErr("get student", err)
	}
	return s, nil
}

// Update replaces every mutable field of the profile.
func (p *PostgresStore) Update(ctx context.Context, s Student) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE students
		SET name = $2, roll_number = $3, course = $4, semester = $5, email = $6
		WHERE id = $1
	`, s.ID, s.Name, s.RollNumber, s.Course, s.Semester, s.Email)
	if err != nil {
		return mapErr("update student", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr("update student", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all profiles ordered by roll number.
func (p *PostgresStore) List(ctx context.Context) ([]Student, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, roll_number, course, semester, email, created_at
		FROM students ORDER BY roll_number
	`)
	if err != nil {
		return nil, mapErr("list students", err)
	}
	defer rows.Close()

	var out []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.Name, &s.RollNumber, &s.Course, &s.Semester, &s.Email, &s.CreatedAt); err != nil {
			return nil, mapErr("scan student", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrRollNumberTaken
	}
	return fmt.Errorf("%s: %w", op, err)
}
