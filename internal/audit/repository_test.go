package audit

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE audit_logs (
			id          TEXT PRIMARY KEY,
			action      TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id   TEXT,
			details     TEXT,
			created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
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

func TestCreateGeneratesIDAndTimestamp(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	entry := &Entry{
		Action:     ActionDispatch,
		EntityType: "job",
		EntityID:   "42",
		Details:    map[string]any{"device_id": "dev-1"},
	}
	if err := repo.Create(ctx, entry); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if !strings.HasPrefix(entry.ID, "aud-") {
		t.Errorf("expected generated aud- id, got %q", entry.ID)
	}
	if entry.CreatedAt.IsZero() {
		t.Error("expected generated CreatedAt")
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("expected 1 entry, got %d", result.Total)
	}
	got := result.Entries[0]
	if got.Action != ActionDispatch || got.EntityID != "42" {
		t.Errorf("unexpected entry: %+v", got)
	}
	if got.Details["device_id"] != "dev-1" {
		t.Errorf("expected details round-trip, got %v", got.Details)
	}
}

func TestListFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()
	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	entries := []*Entry{
		{Action: ActionRegister, EntityType: "device", EntityID: "dev-1", CreatedAt: base},
		{Action: ActionCommand, EntityType: "device", EntityID: "dev-1", CreatedAt: base.Add(time.Second)},
		{Action: ActionDispatch, EntityType: "job", EntityID: "7", CreatedAt: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	result, err := repo.List(ctx, Filter{EntityType: "device"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if result.Total != 2 {
		t.Errorf("expected 2 device entries, got %d", result.Total)
	}
	if result.Entries[0].Action != ActionCommand {
		t.Errorf("expected newest-first order, got %q first", result.Entries[0].Action)
	}

	result, err = repo.List(ctx, Filter{Action: ActionDispatch})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if result.Total != 1 || result.Entries[0].EntityID != "7" {
		t.Errorf("unexpected dispatch filter result: %+v", result.Entries)
	}
}

func TestListPagination(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()
	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		e := &Entry{Action: ActionRequeue, EntityType: "job", CreatedAt: base.Add(time.Duration(i) * time.Second)}
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	result, err := repo.List(ctx, Filter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if result.Total != 5 {
		t.Errorf("expected total 5, got %d", result.Total)
	}
	if len(result.Entries) != 2 {
		t.Errorf("expected page of 2, got %d", len(result.Entries))
	}
}
