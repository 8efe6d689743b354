package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresStore persists attendance records in Postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store over an open connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// InsertIfAbsent writes the record unless one already exists for the
// (student, date) pair. The uniqueness check rides on the unique index, so
// two near-simultaneous check-ins cannot both land.
func (p *PostgresStore) InsertIfAbsent(ctx context.Context, rec Record) error {
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, student_id, date, check_in_time, status, subject, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (student_id, date) DO NOTHING
	`, rec.ID, rec.StudentID, rec.Date, rec.CheckInTime, rec.Status, rec.Subject, rec.Notes, rec.CreatedAt)
	if err != nil {
		return storageErr("insert record", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("insert record", err)
	}
	if n == 0 {
		return ErrDuplicateCheckIn
	}
	return nil
}

// GetByDate returns the record for a (student, date) pair.
func (p *PostgresStore) GetByDate(ctx context.Context, studentID, date string) (Record, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, student_id, date, check_in_time, status, subject, notes, created_at
		FROM attendance_records
		WHERE student_id = $1 AND date = $2
	`, studentID, date)
	return scanRecord(row)
}

// ListByStudent returns all records for a student, newest date first.
func (p *PostgresStore) ListByStudent(ctx context.Context, studentID string) ([]Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, student_id, date, check_in_time, status, subject, notes, created_at
		FROM attendance_records
		WHERE student_id = $1
		ORDER BY date DESC, created_at DESC
	`, studentID)
	if err != nil {
		return nil, storageErr("list records", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.Date, &rec.CheckInTime, &rec.Status, &rec.Subject, &rec.Notes, &rec.CreatedAt); err != nil {
			return nil, storageErr("scan record", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list records", err)
	}
	return recs, nil
}

// Delete removes one record by id.
func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM attendance_records WHERE id = $1`, id)
	if err != nil {
		return storageErr("delete record", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("delete record", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByStatus aggregates a student's records by status in one query.
func (p *PostgresStore) CountByStatus(ctx context.Context, studentID string) (Stats, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'present' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'late' THEN 1 ELSE 0 END), 0)
		FROM attendance_records
		WHERE student_id = $1
	`, studentID)
	var st Stats
	if err := row.Scan(&st.Total, &st.Present, &st.Late); err != nil {
		return Stats{}, storageErr("count records", err)
	}
	return st, nil
}

func scanRecord(row *sql.Row) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.StudentID, &rec.Date, &rec.CheckInTime, &rec.Status, &rec.Subject, &rec.Notes, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, storageErr("get record", err)
	}
	return rec, nil
}

// storageErr tags infrastructure failures so callers can match
// ErrStorageUnavailable and fall back to the mirror tier.
func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}
