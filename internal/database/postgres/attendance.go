package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/kozaktomas/face-attendance/internal/database"
)

const foreignKeyViolation = "23503"

// AttendanceRepository provides the PostgreSQL-backed attendance ledger.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// MostRecent returns the latest event for an identity, or nil if it has none.
func (r *AttendanceRepository) MostRecent(ctx context.Context, identityID int64) (*database.AttendanceEvent, error) {
	var e database.AttendanceEvent
	var status string
	err := r.pool.QueryRow(ctx, `
		SELECT id, identity_id, recorded_at, status
		FROM attendance
		WHERE identity_id = $1
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1
	`, identityID).Scan(&e.ID, &e.IdentityID, &e.Timestamp, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get most recent attendance: %w", err)
	}
	e.Status = database.AttendanceStatus(status)
	return &e, nil
}

// Append stores a new event and fills in its ID.
func (r *AttendanceRepository) Append(ctx context.Context, event *database.AttendanceEvent) error {
	if !event.Status.Valid() {
		return fmt.Errorf("invalid attendance status %q", event.Status)
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO attendance (identity_id, recorded_at, status)
		VALUES ($1, $2, $3)
		RETURNING id
	`, event.IdentityID, event.Timestamp, string(event.Status)).Scan(&event.ID)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		return fmt.Errorf("identity %d: %w", event.IdentityID, database.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("insert attendance: %w", err)
	}
	return nil
}

// List returns events matching the filter joined with identity names, newest first.
func (r *AttendanceRepository) List(ctx context.Context, filter database.AttendanceFilter) ([]database.AttendanceRecord, error) {
	var conditions []string
	var args []any
	if filter.IdentityID != 0 {
		args = append(args, filter.IdentityID)
		conditions = append(conditions, fmt.Sprintf("a.identity_id = $%d", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		conditions = append(conditions, fmt.Sprintf("a.recorded_at >= $%d", len(args)))
	}
	if !filter.Until.IsZero() {
		args = append(args, filter.Until)
		conditions = append(conditions, fmt.Sprintf("a.recorded_at < $%d", len(args)))
	}

	query := `
		SELECT a.id, a.identity_id, a.recorded_at, a.status, i.display_name
		FROM attendance a
		JOIN identities i ON i.id = a.identity_id`
	if len(conditions) > 0 {
		query += "\n\t\tWHERE " + strings.Join(conditions, " AND ")
	}
	query += "\n\t\tORDER BY a.recorded_at DESC, a.id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var records []database.AttendanceRecord
	for rows.Next() {
		var rec database.AttendanceRecord
		var status string
		if err := rows.Scan(&rec.ID, &rec.IdentityID, &rec.Timestamp, &status, &rec.DisplayName); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		rec.Status = database.AttendanceStatus(status)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return records, nil
}

// Count returns the total number of events stored.
func (r *AttendanceRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM attendance").Scan(&count); err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return count, nil
}

// DeleteBefore purges events older than cutoff.
func (r *AttendanceRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, "DELETE FROM attendance WHERE recorded_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge attendance: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge attendance: %w", err)
	}
	return n, nil
}

var _ database.LedgerWriter = (*AttendanceRepository)(nil)
