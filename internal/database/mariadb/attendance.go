package mariadb

import (
	"context"
	"errors"
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// erNoReferencedRow is ER_NO_REFERENCED_ROW_2, a foreign key failure on insert.
const erNoReferencedRow = 1452

// AttendanceRepository provides the MariaDB-backed attendance ledger.
type AttendanceRepository struct {
	db *gorm.DB
}

// NewAttendanceRepository creates a new MariaDB attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{db: pool.db}
}

// MostRecent returns the latest event for an identity, or nil if it has none.
func (r *AttendanceRepository) MostRecent(ctx context.Context, identityID int64) (*database.AttendanceEvent, error) {
	var m attendanceModel
	err := r.db.WithContext(ctx).
		Where("identity_id = ?", identityID).
		Order("recorded_at DESC, id DESC").
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get most recent attendance: %w", err)
	}
	e := m.toEvent()
	return &e, nil
}

// Append stores a new event and fills in its ID.
func (r *AttendanceRepository) Append(ctx context.Context, event *database.AttendanceEvent) error {
	if !event.Status.Valid() {
		return fmt.Errorf("invalid attendance status %q", event.Status)
	}
	m := attendanceModel{
		IdentityID: event.IdentityID,
		RecordedAt: event.Timestamp.UTC(),
		Status:     string(event.Status),
	}
	err := r.db.WithContext(ctx).Create(&m).Error
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) && myErr.Number == erNoReferencedRow {
		return fmt.Errorf("identity %d: %w", event.IdentityID, database.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("insert attendance: %w", err)
	}
	event.ID = m.ID
	return nil
}

type attendanceRow struct {
	attendanceModel
	DisplayName string
}

// List returns events matching the filter joined with identity names, newest first.
func (r *AttendanceRepository) List(ctx context.Context, filter database.AttendanceFilter) ([]database.AttendanceRecord, error) {
	q := r.db.WithContext(ctx).
		Table("attendance AS a").
		Select("a.id, a.identity_id, a.recorded_at, a.status, i.display_name").
		Joins("JOIN identities i ON i.id = a.identity_id")
	if filter.IdentityID != 0 {
		q = q.Where("a.identity_id = ?", filter.IdentityID)
	}
	if !filter.Since.IsZero() {
		q = q.Where("a.recorded_at >= ?", filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		q = q.Where("a.recorded_at < ?", filter.Until.UTC())
	}
	q = q.Order("a.recorded_at DESC, a.id DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []attendanceRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}

	records := make([]database.AttendanceRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, database.AttendanceRecord{
			AttendanceEvent: row.toEvent(),
			DisplayName:     row.DisplayName,
		})
	}
	return records, nil
}

// Count returns the total number of events stored.
func (r *AttendanceRepository) Count(ctx context.Context) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&attendanceModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return int(count), nil
}

// DeleteBefore purges events older than cutoff.
func (r *AttendanceRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("recorded_at < ?", cutoff.UTC()).Delete(&attendanceModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("purge attendance: %w", result.Error)
	}
	return result.RowsAffected, nil
}

var _ database.LedgerWriter = (*AttendanceRepository)(nil)
