// Package record stores access events reported by terminals.
//
// Records are append-only. Terminals re-send batches after reconnects, so
// inserts are deduplicated on (device_id, record_id); a duplicate insert is
// silently ignored, never an error.
package record

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Record is one access event reported by a terminal.
type Record struct {
	DeviceID   string   `json:"device_id"`
	RecordID   int64    `json:"record_id"`
	PersonRef  string   `json:"person_ref,omitempty"`
	RecordTime int64    `json:"record_time"`
	Pass       bool     `json:"pass"`
	Similarity *float64 `json:"similarity,omitempty"`

	// Raw preserves the original wire payload for fields the core does not
	// model (QR codes, photos, firmware extras).
	Raw string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// Repository defines the interface for record persistence.
type Repository interface {
	// Insert stores a record if its (device_id, record_id) pair is new.
	// Returns true if the record was stored, false if it was a duplicate.
	Insert(ctx context.Context, rec *Record) (bool, error)

	// ListByDevice retrieves records for a device, newest first.
	ListByDevice(ctx context.Context, deviceID string, limit int) ([]Record, error)
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

// Insert stores a record, ignoring duplicates on (device_id, record_id).
func (r *SQLiteRepository) Insert(ctx context.Context, rec *Record) (bool, error) {
	pass := 0
	if rec.Pass {
		pass = 1
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO records
			(device_id, record_id, person_ref, record_time, record_pass, similarity, raw)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.DeviceID, rec.RecordID, rec.PersonRef, rec.RecordTime, pass, rec.Similarity, rec.Raw,
	)
	if err != nil {
		return false, fmt.Errorf("inserting record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking record insert: %w", err)
	}
	return n > 0, nil
}

// ListByDevice retrieves records for a device, newest first.
func (r *SQLiteRepository) ListByDevice(ctx context.Context, deviceID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT device_id, record_id, person_ref, record_time, record_pass, similarity, raw, created_at
		FROM records
		WHERE device_id = ?
		ORDER BY record_time DESC
		LIMIT ?`, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec       Record
			personRef sql.NullString
			pass      int
			raw       sql.NullString
			createdAt string
		)
		if err := rows.Scan(&rec.DeviceID, &rec.RecordID, &personRef, &rec.RecordTime,
			&pass, &rec.Similarity, &raw, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning record row: %w", err)
		}
		rec.PersonRef = personRef.String
		rec.Pass = pass != 0
		rec.Raw = raw.String
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}
