package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/facegate/facegate-core/internal/audit"
	"github.com/facegate/facegate-core/internal/device"
	"github.com/facegate/facegate-core/internal/gateway"
	"github.com/facegate/facegate-core/internal/job"
)

// defaultRelayDelaySec matches the terminal firmware default for relay pulses.
const defaultRelayDelaySec = 5

// handleHealth reports service liveness and database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
	}
	if s.db != nil {
		if err := s.db.HealthCheck(r.Context()); err != nil {
			resp["status"] = "degraded"
			resp["database"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp["database"] = "ok"
	}
	writeJSON(w, http.StatusOK, resp)
}

// deviceView is a device with its derived online state.
type deviceView struct {
	device.Device
	Online bool `json:"online"`
}

// handleListDevices returns all known devices, most recently seen first.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.List(r.Context())
	if err != nil {
		s.logger.Error("listing devices", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}

	now := time.Now()
	window := s.gwCfg.OnlineWindowDuration()
	views := make([]deviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, deviceView{Device: d, Online: d.Online(now, window)})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": views,
		"count":   len(views),
	})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d, err := s.devices.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found: "+id)
			return
		}
		s.logger.Error("getting device", "device_id", id, "error", err)
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, deviceView{
		Device: *d,
		Online: d.Online(time.Now(), s.gwCfg.OnlineWindowDuration()),
	})
}

type openDoorRequest struct {
	DoorIdx int `json:"door_idx"`
}

// handleOpenDoor pushes a remote door-open command to a connected terminal.
func (s *Server) handleOpenDoor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req openDoorRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	if err := s.issuer.RemoteOpenDoor(r.Context(), id, req.DoorIdx); err != nil {
		if errors.Is(err, gateway.ErrDeviceOffline) {
			writeError(w, http.StatusConflict, ErrCodeDeviceOffline, "device not connected: "+id)
			return
		}
		s.logger.Error("open door command", "device_id", id, "error", err)
		writeInternalError(w, "failed to send command")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"device_id": id,
		"command":   "open_door",
		"door_idx":  req.DoorIdx,
	})
}

type relayOutRequest struct {
	RelayIdx int  `json:"relay_idx"`
	DelaySec *int `json:"delay_sec"`
}

// handleRelayOut pushes a relay pulse command to a connected terminal.
func (s *Server) handleRelayOut(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req relayOutRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}
	delay := defaultRelayDelaySec
	if req.DelaySec != nil {
		if *req.DelaySec < 0 {
			writeBadRequest(w, "delay_sec must not be negative")
			return
		}
		delay = *req.DelaySec
	}

	if err := s.issuer.RelayOut(r.Context(), id, req.RelayIdx, delay); err != nil {
		if errors.Is(err, gateway.ErrDeviceOffline) {
			writeError(w, http.StatusConflict, ErrCodeDeviceOffline, "device not connected: "+id)
			return
		}
		s.logger.Error("relay command", "device_id", id, "error", err)
		writeInternalError(w, "failed to send command")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"device_id": id,
		"command":   "relay_out",
		"relay_idx": req.RelayIdx,
		"delay_sec": delay,
	})
}

// handleListJobs returns jobs in a given state, defaulting to pending.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	state := job.State(r.URL.Query().Get("state"))
	if state == "" {
		state = job.StatePending
	}
	switch state {
	case job.StatePending, job.StateSent, job.StateFailed:
	default:
		writeBadRequest(w, "state must be one of: pending, sent, failed")
		return
	}

	limit, ok := parseLimit(w, r, 0)
	if !ok {
		return
	}

	jobs, err := s.jobs.List(r.Context(), state, limit)
	if err != nil {
		s.logger.Error("listing jobs", "state", state, "error", err)
		writeInternalError(w, "failed to list jobs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
		"state": state,
	})
}

// handleListSchedules returns all schedules known to the core.
func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.schedules.List(r.Context())
	if err != nil {
		s.logger.Error("listing schedules", "error", err)
		writeInternalError(w, "failed to list schedules")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"schedules": schedules,
		"count":     len(schedules),
	})
}

// handleListRecords returns access records for one device, newest first.
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		writeBadRequest(w, "device_id query parameter is required")
		return
	}

	limit, ok := parseLimit(w, r, 0)
	if !ok {
		return
	}

	records, err := s.records.ListByDevice(r.Context(), deviceID, limit)
	if err != nil {
		s.logger.Error("listing records", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to list records")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"records":   records,
		"count":     len(records),
		"device_id": deviceID,
	})
}

// handleListAudit returns the audit trail, newest first.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
	}
	limit, ok := parseLimit(w, r, 0)
	if !ok {
		return
	}
	filter.Limit = limit
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = offset
	}

	result, err := s.audits.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit entries", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// parseLimit reads the limit query parameter. Zero means repository default.
// Returns false after writing an error response when the value is invalid.
func parseLimit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		writeBadRequest(w, "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}

// decodeOptionalBody decodes a JSON body into v. An empty body is fine;
// malformed JSON is a 400. Returns false after writing an error response.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeBadRequest(w, "invalid JSON body")
	return false
}
