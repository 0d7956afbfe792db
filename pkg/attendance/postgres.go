package attendance

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps records in the attendance_records table.
type PostgresStore struct {
	pool     *pgxpool.Pool
	withKind bool
}

// NewPostgresStore connects, pings and migrates.
func NewPostgresStore(ctx context.Context, url string, withKind bool) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{pool: pool, withKind: withKind}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the table if needed.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS attendance_records (
			id           BIGSERIAL PRIMARY KEY,
			employee_id  TEXT NOT NULL,
			name         TEXT NOT NULL,
			date         TEXT NOT NULL,
			time         TEXT NOT NULL,
			recorded_at  TEXT NOT NULL,
			kind         TEXT NOT NULL DEFAULT 'normal',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create attendance_records table: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS idx_attendance_records_employee ON attendance_records (employee_id)
	`)
	if err != nil {
		return fmt.Errorf("failed to create attendance index: %w", err)
	}
	return nil
}

// Append implements Store.
func (s *PostgresStore) Append(ctx context.Context, r Record) error {
	kind := r.Kind
	if kind == "" {
		kind = KindNormal
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO attendance_records (employee_id, name, date, time, recorded_at, kind)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.EmployeeID, r.Name, r.Date, r.Time, r.Timestamp, kind)
	if err != nil {
		return fmt.Errorf("failed to insert attendance record: %w", err)
	}
	return nil
}

// Records implements Store.
func (s *PostgresStore) Records(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT employee_id, name, date, time, recorded_at, kind
		FROM attendance_records
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.EmployeeID, &r.Name, &r.Date, &r.Time, &r.Timestamp, &r.Kind); err != nil {
			return nil, fmt.Errorf("failed to scan attendance record: %w", err)
		}
		if !s.withKind {
			r.Kind = ""
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Dump implements Store. An empty table dumps nothing, like a missing file.
func (s *PostgresStore) Dump(ctx context.Context, w io.Writer) error {
	records, err := s.Records(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	return WriteCSV(w, records, s.withKind)
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
