// Package job manages the delivery work queue between the schedule expander,
// the job dispatcher, and the failure requeuer.
//
// The jobs table is the single source of truth for cross-task coordination:
// no in-memory job state is shared between the periodic loops, so a job
// created by one expander tick may legally be picked up by the very next
// dispatcher tick.
package job

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository defines job queue persistence operations.
//
// Methods that change rows take an explicit now so callers drive time; the
// requeue threshold and the recurring-schedule dedup window both compare
// against updated_at and must be deterministic under test clocks.
type Repository interface {
	// Create inserts a new pending job for a (schedule, device) pair.
	Create(ctx context.Context, scheduleID, deviceID string, now time.Time) (int64, error)

	// ExistsForPair reports whether any job row exists for the pair, in any
	// state. Used for fire-once dedup of non-recurring schedules.
	ExistsForPair(ctx context.Context, scheduleID, deviceID string) (bool, error)

	// ExistsRecentForPair reports whether a job for the pair was created or
	// updated at or after since. Used for the recurring-schedule dedup window.
	ExistsRecentForPair(ctx context.Context, scheduleID, deviceID string, since time.Time) (bool, error)

	// ExistsPendingForPair reports whether the pair has in-flight work.
	ExistsPendingForPair(ctx context.Context, scheduleID, deviceID string) (bool, error)

	// ListPendingWork retrieves up to limit pending jobs, oldest first,
	// joined with their schedule's payload metadata and resolved image URL.
	ListPendingWork(ctx context.Context, limit int) ([]Work, error)

	// MarkSent transitions a job to sent.
	MarkSent(ctx context.Context, id int64, now time.Time) error

	// MarkFailed transitions a job to failed, increments its retry count,
	// and stores the error text.
	MarkFailed(ctx context.Context, id int64, errMsg string, now time.Time) error

	// RequeueFailed returns failed jobs to pending when they have rested
	// since before cutoff and still have retry budget left. Returns the
	// number of requeued jobs.
	RequeueFailed(ctx context.Context, cutoff time.Time, maxRetries int, now time.Time) (int64, error)

	// List retrieves jobs for inspection, newest first. state "" means all.
	List(ctx context.Context, state State, limit int) ([]Job, error)

	// CountByState returns the number of jobs in the given state.
	CountByState(ctx context.Context, state State) (int, error)
}

// defaultListLimit bounds unfiltered listings.
const defaultListLimit = 100

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Create inserts a new pending job for a (schedule, device) pair.
func (r *SQLiteRepository) Create(ctx context.Context, scheduleID, deviceID string, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (schedule_id, device_id, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		scheduleID, deviceID, string(StatePending), ts(now), ts(now),
	)
	if err != nil {
		return 0, fmt.Errorf("creating job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading job id: %w", err)
	}
	return id, nil
}

// ExistsForPair reports whether any job row exists for the pair.
func (r *SQLiteRepository) ExistsForPair(ctx context.Context, scheduleID, deviceID string) (bool, error) {
	return r.exists(ctx,
		"SELECT 1 FROM jobs WHERE schedule_id = ? AND device_id = ? LIMIT 1",
		scheduleID, deviceID,
	)
}

// ExistsRecentForPair reports whether a job for the pair was touched at or
// after since.
func (r *SQLiteRepository) ExistsRecentForPair(ctx context.Context, scheduleID, deviceID string, since time.Time) (bool, error) {
	return r.exists(ctx,
		"SELECT 1 FROM jobs WHERE schedule_id = ? AND device_id = ? AND updated_at >= ? LIMIT 1",
		scheduleID, deviceID, ts(since),
	)
}

// ExistsPendingForPair reports whether the pair has in-flight work.
func (r *SQLiteRepository) ExistsPendingForPair(ctx context.Context, scheduleID, deviceID string) (bool, error) {
	return r.exists(ctx,
		"SELECT 1 FROM jobs WHERE schedule_id = ? AND device_id = ? AND state = ? LIMIT 1",
		scheduleID, deviceID, string(StatePending),
	)
}

func (r *SQLiteRepository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking job existence: %w", err)
	}
	return true, nil
}

// ListPendingWork retrieves up to limit pending jobs, oldest first, with
// payload metadata. The image URL resolution is a LEFT JOIN: an image
// schedule whose reference is missing still dispatches with a null Url,
// which deployed terminals treat as "clear the display".
func (r *SQLiteRepository) ListPendingWork(ctx context.Context, limit int) ([]Work, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT j.id, j.schedule_id, j.device_id, s.payload_type, i.url
		FROM jobs j
		JOIN schedules s ON s.id = j.schedule_id
		LEFT JOIN images i ON i.id = s.image_id
		WHERE j.state = ?
		ORDER BY j.id ASC
		LIMIT ?`, string(StatePending), limit)
	if err != nil {
		return nil, fmt.Errorf("querying pending work: %w", err)
	}
	defer rows.Close()

	var work []Work
	for rows.Next() {
		var (
			w   Work
			url sql.NullString
		)
		if err := rows.Scan(&w.JobID, &w.ScheduleID, &w.DeviceID, &w.Payload, &url); err != nil {
			return nil, fmt.Errorf("scanning work row: %w", err)
		}
		if url.Valid {
			w.ImageURL = &url.String
		}
		work = append(work, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating work: %w", err)
	}
	return work, nil
}

// MarkSent transitions a job to sent.
func (r *SQLiteRepository) MarkSent(ctx context.Context, id int64, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE jobs SET state = ?, updated_at = ? WHERE id = ?",
		string(StateSent), ts(now), id,
	)
	if err != nil {
		return fmt.Errorf("marking job sent: %w", err)
	}
	return nil
}

// MarkFailed transitions a job to failed and increments its retry count.
func (r *SQLiteRepository) MarkFailed(ctx context.Context, id int64, errMsg string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET state = ?, retry_count = retry_count + 1, last_error = ?, updated_at = ?
		WHERE id = ?`,
		string(StateFailed), errMsg, ts(now), id,
	)
	if err != nil {
		return fmt.Errorf("marking job failed: %w", err)
	}
	return nil
}

// RequeueFailed returns rested failed jobs with remaining budget to pending.
func (r *SQLiteRepository) RequeueFailed(ctx context.Context, cutoff time.Time, maxRetries int, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET state = ?, updated_at = ?
		WHERE state = ? AND updated_at < ? AND retry_count < ?`,
		string(StatePending), ts(now), string(StateFailed), ts(cutoff), maxRetries,
	)
	if err != nil {
		return 0, fmt.Errorf("requeueing failed jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting requeued jobs: %w", err)
	}
	return n, nil
}

// List retrieves jobs for inspection, newest first.
func (r *SQLiteRepository) List(ctx context.Context, state State, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT id, schedule_id, device_id, state, retry_count, last_error, created_at, updated_at
		FROM jobs`
	args := []any{}
	if state != "" {
		query += " WHERE state = ?"
		args = append(args, string(state))
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var (
			j         Job
			lastError sql.NullString
			createdAt string
			updatedAt string
		)
		if err := rows.Scan(&j.ID, &j.ScheduleID, &j.DeviceID, &j.State,
			&j.RetryCount, &lastError, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning job row: %w", err)
		}
		j.LastError = lastError.String
		j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
		j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}
	return jobs, nil
}

// CountByState returns the number of jobs in the given state.
func (r *SQLiteRepository) CountByState(ctx context.Context, state State) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM jobs WHERE state = ?", string(state),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting jobs: %w", err)
	}
	return n, nil
}
