package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// AttendanceRepository provides PostgreSQL-backed attendance storage
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new AttendanceRepository
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// UpsertAttendance inserts the record or updates subject and time of the
// existing one in a single statement. xmax is 0 only for freshly inserted rows.
func (r *AttendanceRepository) UpsertAttendance(ctx context.Context, rec *database.AttendanceRecord) (bool, error) {
	if rec.ID == "" {
		rec.ID = newID()
	}

	var inserted bool
	err := r.pool.QueryRow(ctx, `
		INSERT INTO attendance (id, owner_id, date, period, subject, time)
		VALUES ($1, $2, $3::date, $4, $5, $6::time)
		ON CONFLICT (owner_id, date, period) DO UPDATE
			SET subject = EXCLUDED.subject, time = EXCLUDED.time, updated_at = NOW()
		RETURNING id, created_at, updated_at, (xmax = 0)`,
		rec.ID, rec.OwnerID, rec.Date, rec.Period, rec.Subject, rec.Time).
		Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt, &inserted)
	if err != nil {
		return false, fmt.Errorf("upsert attendance: %w", err)
	}
	return inserted, nil
}

func (r *AttendanceRepository) ListAttendanceByDate(ctx context.Context, date string, period int) ([]database.AttendanceRecord, error) {
	query := `SELECT id, owner_id, to_char(date, 'YYYY-MM-DD'), period, subject, to_char(time, 'HH24:MI:SS'), created_at, updated_at
		FROM attendance WHERE date = $1::date`
	args := []any{date}
	if period > 0 {
		query += ` AND period = $2`
		args = append(args, period)
	}
	query += ` ORDER BY period, time, id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var records []database.AttendanceRecord
	for rows.Next() {
		var rec database.AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.Date, &rec.Period, &rec.Subject, &rec.Time,
			&rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return records, nil
}

func (r *AttendanceRepository) CountAttendanceByOwner(ctx context.Context, from, to string) (map[string]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT owner_id, COUNT(*) FROM attendance WHERE date BETWEEN $1::date AND $2::date GROUP BY owner_id`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("count attendance: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var ownerID string
		var n int
		if err := rows.Scan(&ownerID, &n); err != nil {
			return nil, fmt.Errorf("scan attendance count: %w", err)
		}
		counts[ownerID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance counts: %w", err)
	}
	return counts, nil
}
