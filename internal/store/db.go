package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane pool defaults and applies the
// schema.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(context.Background()); err != nil {
		return &DB{Client: db}, err
	}
	if err := migrate(db); err != nil {
		return &DB{Client: db}, fmt.Errorf("migrate: %w", err)
	}
	return &DB{Client: db}, nil
}

// migrate applies the schema. The unique index on (student_id, date) is what
// makes the conditional insert race-free.
func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS students (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		roll_number  TEXT UNIQUE NOT NULL,
		course       TEXT NOT NULL,
		semester     TEXT NOT NULL,
		email        TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS attendance_records (
		id             TEXT PRIMARY KEY,
		student_id     TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
		date           TEXT NOT NULL,
		check_in_time  TEXT NOT NULL,
		status         TEXT NOT NULL,
		subject        TEXT,
		notes          TEXT,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (student_id, date)
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_student_date
		ON attendance_records (student_id, date);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
