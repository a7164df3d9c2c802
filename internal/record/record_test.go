package record

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the records table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE records (
			device_id   TEXT NOT NULL,
			record_id   INTEGER NOT NULL,
			person_ref  TEXT,
			record_time INTEGER NOT NULL DEFAULT 0,
			record_pass INTEGER NOT NULL DEFAULT 0,
			similarity  REAL,
			raw         TEXT,
			created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			PRIMARY KEY (device_id, record_id)
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestSQLiteRepository_Insert_Dedup(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	sim := 0.97
	rec := &Record{
		DeviceID:   "door-01",
		RecordID:   42,
		PersonRef:  "person-7",
		RecordTime: 1_700_000_000,
		Pass:       true,
		Similarity: &sim,
		Raw:        `{"RecordID":42}`,
	}

	stored, err := repo.Insert(ctx, rec)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if !stored {
		t.Error("Insert() first attempt stored = false, want true")
	}

	// Same (device, record id) pair again: silently ignored.
	stored, err = repo.Insert(ctx, rec)
	if err != nil {
		t.Fatalf("Insert() duplicate error = %v", err)
	}
	if stored {
		t.Error("Insert() duplicate stored = true, want false")
	}

	// Same record id from a different device is a distinct record.
	other := *rec
	other.DeviceID = "door-02"
	stored, err = repo.Insert(ctx, &other)
	if err != nil {
		t.Fatalf("Insert() other device error = %v", err)
	}
	if !stored {
		t.Error("Insert() other device stored = false, want true")
	}
}

func TestSQLiteRepository_ListByDevice(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		if _, err := repo.Insert(ctx, &Record{
			DeviceID:   "door-01",
			RecordID:   i,
			RecordTime: 1000 + i,
			Pass:       i%2 == 0,
		}); err != nil {
			t.Fatalf("Insert(%d) error = %v", i, err)
		}
	}

	records, err := repo.ListByDevice(ctx, "door-01", 10)
	if err != nil {
		t.Fatalf("ListByDevice() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("ListByDevice() returned %d records, want 3", len(records))
	}
	// Newest first.
	if records[0].RecordID != 3 {
		t.Errorf("ListByDevice()[0].RecordID = %d, want 3", records[0].RecordID)
	}
	if records[0].Similarity != nil {
		t.Errorf("Similarity = %v, want nil when not reported", *records[0].Similarity)
	}
}
