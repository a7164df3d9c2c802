// Package schedule provides read access to campaigns and their device targets,
// plus the recurrence evaluator used by the expander.
//
// Schedules are owned by the admin application. The core never creates,
// updates, or deletes them; it only decides when they are due.
package schedule

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// activeListLimit bounds how many schedules one expander tick considers.
const activeListLimit = 200

// Repository defines read-only access to schedules and their targets.
type Repository interface {
	// ListActive retrieves draft and active schedules, newest first.
	// Archived schedules are never expanded.
	ListActive(ctx context.Context) ([]Schedule, error)

	// ListTargets retrieves the device ids a schedule applies to.
	ListTargets(ctx context.Context, scheduleID string) ([]string, error)

	// List retrieves all schedules for inspection, newest first.
	List(ctx context.Context) ([]Schedule, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const scheduleColumns = "id, owner, payload_type, image_id, start_at, end_at, cron, status, created_at"

// ListActive retrieves draft and active schedules, newest first.
func (r *SQLiteRepository) ListActive(ctx context.Context) ([]Schedule, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM schedules
		WHERE status IN (?, ?)
		ORDER BY created_at DESC
		LIMIT %d`, scheduleColumns, activeListLimit)
	return r.querySchedules(ctx, query, int(StatusDraft), int(StatusActive))
}

// List retrieves all schedules, newest first.
func (r *SQLiteRepository) List(ctx context.Context) ([]Schedule, error) {
	query := fmt.Sprintf("SELECT %s FROM schedules ORDER BY created_at DESC", scheduleColumns)
	return r.querySchedules(ctx, query)
}

// ListTargets retrieves the device ids a schedule applies to.
func (r *SQLiteRepository) ListTargets(ctx context.Context, scheduleID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT device_id FROM schedule_targets WHERE schedule_id = ?",
		scheduleID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying schedule targets: %w", err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning target row: %w", err)
		}
		targets = append(targets, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating targets: %w", err)
	}
	return targets, nil
}

func (r *SQLiteRepository) querySchedules(ctx context.Context, query string, args ...any) ([]Schedule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying schedules: %w", err)
	}
	defer rows.Close()

	var schedules []Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning schedule row: %w", err)
		}
		schedules = append(schedules, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schedules: %w", err)
	}
	return schedules, nil
}

func scanSchedule(rows *sql.Rows) (*Schedule, error) {
	var (
		s         Schedule
		owner     sql.NullString
		imageID   sql.NullString
		startAt   string
		endAt     sql.NullString
		cronExpr  sql.NullString
		createdAt string
	)
	if err := rows.Scan(&s.ID, &owner, &s.Payload, &imageID, &startAt,
		&endAt, &cronExpr, &s.Status, &createdAt); err != nil {
		return nil, err
	}

	s.Owner = owner.String
	if imageID.Valid {
		s.ImageID = &imageID.String
	}
	s.Cron = cronExpr.String

	var err error
	s.StartAt, err = time.Parse(time.RFC3339, startAt)
	if err != nil {
		return nil, fmt.Errorf("parsing start_at %q: %w", startAt, err)
	}
	if endAt.Valid && endAt.String != "" {
		end, err := time.Parse(time.RFC3339, endAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing end_at %q: %w", endAt.String, err)
		}
		s.EndAt = &end
	}
	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled

	return &s, nil
}
