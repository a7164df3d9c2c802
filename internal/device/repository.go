package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// Upsert creates the device row or refreshes its product info and
	// last-seen timestamp. Called on every registerDevice frame.
	Upsert(ctx context.Context, id, prodType, prodName string, seenAt int64) error

	// Touch updates only the last-seen timestamp. Called on every heartbeat.
	// Touching an unknown device is not an error; the row simply isn't there
	// until the terminal registers.
	Touch(ctx context.Context, id string, seenAt int64) error

	// GetByID retrieves a device by its identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all devices, most recently seen first.
	List(ctx context.Context) ([]Device, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Upsert creates or refreshes a device row.
func (r *SQLiteRepository) Upsert(ctx context.Context, id, prodType, prodName string, seenAt int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (device_id, prod_type, prod_name, last_seen_ts)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			prod_type = excluded.prod_type,
			prod_name = excluded.prod_name,
			last_seen_ts = excluded.last_seen_ts`,
		id, prodType, prodName, seenAt,
	)
	if err != nil {
		return fmt.Errorf("upserting device: %w", err)
	}
	return nil
}

// Touch updates the last-seen timestamp for a device.
func (r *SQLiteRepository) Touch(ctx context.Context, id string, seenAt int64) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE devices SET last_seen_ts = ? WHERE device_id = ?",
		seenAt, id,
	)
	if err != nil {
		return fmt.Errorf("touching device: %w", err)
	}
	return nil
}

// GetByID retrieves a device by its identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT device_id, prod_type, prod_name, last_seen_ts, created_at
		FROM devices
		WHERE device_id = ?`, id)

	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return d, nil
}

// List retrieves all devices, most recently seen first.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT device_id, prod_type, prod_name, last_seen_ts, created_at
		FROM devices
		ORDER BY last_seen_ts DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// scanner abstracts sql.Row and sql.Rows for scanDevice.
type scanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a device row in column order device_id, prod_type,
// prod_name, last_seen_ts, created_at.
func scanDevice(s scanner) (*Device, error) {
	var (
		d         Device
		prodType  sql.NullString
		prodName  sql.NullString
		createdAt string
	)
	if err := s.Scan(&d.DeviceID, &prodType, &prodName, &d.LastSeen, &createdAt); err != nil {
		return nil, err
	}
	d.ProdType = prodType.String
	d.ProdName = prodName.String
	// Format is controlled by our schema default
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	return &d, nil
}
