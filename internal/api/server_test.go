package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/facegate/facegate-core/internal/audit"
	"github.com/facegate/facegate-core/internal/device"
	"github.com/facegate/facegate-core/internal/gateway"
	"github.com/facegate/facegate-core/internal/infrastructure/config"
	"github.com/facegate/facegate-core/internal/infrastructure/logging"
	"github.com/facegate/facegate-core/internal/job"
	"github.com/facegate/facegate-core/internal/record"
	"github.com/facegate/facegate-core/internal/schedule"
)

// fakeConn captures frames pushed through the registry.
type fakeConn struct {
	frames []gateway.Frame
}

func (c *fakeConn) Send(f gateway.Frame) error {
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() error { return nil }

type fixture struct {
	db       *sql.DB
	registry *gateway.Registry
	handler  http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE devices (
			device_id    TEXT PRIMARY KEY,
			prod_type    TEXT,
			prod_name    TEXT,
			last_seen_ts INTEGER NOT NULL DEFAULT 0,
			created_at   TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
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
		CREATE TABLE schedules (
			id           TEXT PRIMARY KEY,
			owner        TEXT,
			payload_type TEXT NOT NULL,
			image_id     TEXT,
			start_at     TEXT NOT NULL,
			end_at       TEXT,
			cron         TEXT,
			status       INTEGER NOT NULL DEFAULT 0,
			created_at   TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
		CREATE TABLE jobs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			schedule_id TEXT NOT NULL,
			device_id   TEXT NOT NULL,
			state       TEXT NOT NULL DEFAULT 'pending',
			retry_count INTEGER NOT NULL DEFAULT 0,
			last_error  TEXT,
			created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
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
		t.Fatalf("failed to create test schema: %v", err)
	}

	logger := logging.Default()
	registry := gateway.NewRegistry()
	audits := audit.NewSQLiteRepository(db)
	issuer := gateway.NewIssuer(logger, registry, audits, nil)

	srv, err := New(Deps{
		Config:    config.APIConfig{Host: "127.0.0.1", Port: 0},
		Gateway:   config.GatewayConfig{Path: "/device", OnlineWindow: 120},
		Logger:    logger,
		Devices:   device.NewSQLiteRepository(db),
		Jobs:      job.NewSQLiteRepository(db),
		Schedules: schedule.NewSQLiteRepository(db),
		Records:   record.NewSQLiteRepository(db),
		Audits:    audits,
		Issuer:    issuer,
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	return &fixture{db: db, registry: registry, handler: srv.buildRouter()}
}

func (f *fixture) request(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("expected version test, got %v", body["version"])
	}
}

func TestListDevicesOnlineDerivation(t *testing.T) {
	f := newFixture(t)

	now := time.Now().Unix()
	mustExec(t, f.db,
		"INSERT INTO devices (device_id, prod_type, last_seen_ts) VALUES (?, ?, ?)",
		"FG-001", "terminal", now)
	mustExec(t, f.db,
		"INSERT INTO devices (device_id, prod_type, last_seen_ts) VALUES (?, ?, ?)",
		"FG-002", "terminal", now-600)

	rec := f.request(t, http.MethodGet, "/api/v1/devices", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	devices, ok := body["devices"].([]any)
	if !ok || len(devices) != 2 {
		t.Fatalf("expected 2 devices, got %v", body["devices"])
	}
	online := map[string]bool{}
	for _, raw := range devices {
		d := raw.(map[string]any)
		online[d["device_id"].(string)] = d["online"].(bool)
	}
	if !online["FG-001"] {
		t.Error("expected FG-001 to be online")
	}
	if online["FG-002"] {
		t.Error("expected FG-002 to be offline (stale heartbeat)")
	}
}

func TestGetDeviceNotFound(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/api/v1/devices/FG-404", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["code"] != ErrCodeNotFound {
		t.Errorf("expected code %q, got %v", ErrCodeNotFound, body["code"])
	}
}

func TestOpenDoorOfflineConflict(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodPost, "/api/v1/devices/FG-001/open-door", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["code"] != ErrCodeDeviceOffline {
		t.Errorf("expected code %q, got %v", ErrCodeDeviceOffline, body["code"])
	}
}

func TestOpenDoorConnected(t *testing.T) {
	f := newFixture(t)

	conn := &fakeConn{}
	f.registry.Put("FG-001", conn)

	rec := f.request(t, http.MethodPost, "/api/v1/devices/FG-001/open-door", `{"door_idx": 2}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(conn.frames) != 1 {
		t.Fatalf("expected 1 frame pushed, got %d", len(conn.frames))
	}
	frame := conn.frames[0]
	if frame.Method != gateway.MethodPushRemoteOpenDoor {
		t.Errorf("expected method %q, got %q", gateway.MethodPushRemoteOpenDoor, frame.Method)
	}
	params, ok := frame.Params.(map[string]any)
	if !ok {
		t.Fatalf("expected map params, got %T", frame.Params)
	}
	if params["DevIdx"] != 2 {
		t.Errorf("expected DevIdx 2, got %v", params["DevIdx"])
	}
}

func TestRelayDefaultsAndValidation(t *testing.T) {
	f := newFixture(t)

	conn := &fakeConn{}
	f.registry.Put("FG-001", conn)

	// Empty body uses the firmware default pulse length.
	rec := f.request(t, http.MethodPost, "/api/v1/devices/FG-001/relay", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	params := conn.frames[0].Params.(map[string]any)
	if params["Delay"] != defaultRelayDelaySec {
		t.Errorf("expected default delay %d, got %v", defaultRelayDelaySec, params["Delay"])
	}

	rec = f.request(t, http.MethodPost, "/api/v1/devices/FG-001/relay", `{"delay_sec": -1}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for negative delay, got %d", rec.Code)
	}

	rec = f.request(t, http.MethodPost, "/api/v1/devices/FG-001/relay", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestListJobsByState(t *testing.T) {
	f := newFixture(t)

	mustExec(t, f.db,
		"INSERT INTO jobs (schedule_id, device_id, state) VALUES ('sch-1', 'FG-001', 'pending')")
	mustExec(t, f.db,
		"INSERT INTO jobs (schedule_id, device_id, state, retry_count, last_error) VALUES ('sch-1', 'FG-002', 'failed', 2, 'device offline')")

	rec := f.request(t, http.MethodGet, "/api/v1/jobs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["count"].(float64) != 1 {
		t.Errorf("expected 1 pending job, got %v", body["count"])
	}

	rec = f.request(t, http.MethodGet, "/api/v1/jobs?state=failed", "")
	body = decodeBody(t, rec)
	if body["count"].(float64) != 1 {
		t.Errorf("expected 1 failed job, got %v", body["count"])
	}
	jobs := body["jobs"].([]any)
	j := jobs[0].(map[string]any)
	if j["last_error"] != "device offline" {
		t.Errorf("expected last_error to round-trip, got %v", j["last_error"])
	}

	rec = f.request(t, http.MethodGet, "/api/v1/jobs?state=bogus", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown state, got %d", rec.Code)
	}
}

func TestListRecordsRequiresDevice(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/api/v1/records", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without device_id, got %d", rec.Code)
	}

	mustExec(t, f.db,
		"INSERT INTO records (device_id, record_id, record_time, record_pass) VALUES ('FG-001', 7, 1700000000, 1)")

	rec = f.request(t, http.MethodGet, "/api/v1/records?device_id=FG-001", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["count"].(float64) != 1 {
		t.Errorf("expected 1 record, got %v", body["count"])
	}
}

func TestListSchedules(t *testing.T) {
	f := newFixture(t)

	mustExec(t, f.db,
		"INSERT INTO schedules (id, payload_type, start_at, status) VALUES ('sch-1', 'image', '2026-01-01T00:00:00Z', 1)")

	rec := f.request(t, http.MethodGet, "/api/v1/schedules", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["count"].(float64) != 1 {
		t.Errorf("expected 1 schedule, got %v", body["count"])
	}
}

func TestAuditTrailAfterCommand(t *testing.T) {
	f := newFixture(t)

	conn := &fakeConn{}
	f.registry.Put("FG-001", conn)
	f.request(t, http.MethodPost, "/api/v1/devices/FG-001/open-door", "")

	rec := f.request(t, http.MethodGet, "/api/v1/audit?action="+audit.ActionCommand, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["total"].(float64) != 1 {
		t.Errorf("expected 1 audit entry, got %v", body["total"])
	}
}

func TestRequestIDHeader(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/api/v1/health", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected generated X-Request-ID header")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "req-42" {
		t.Errorf("expected X-Request-ID to be echoed, got %q", got)
	}
}

func mustExec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("exec failed: %v", err)
	}
}
