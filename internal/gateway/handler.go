package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/facegate/facegate-core/internal/audit"
	"github.com/facegate/facegate-core/internal/device"
	"github.com/facegate/facegate-core/internal/events"
	"github.com/facegate/facegate-core/internal/infrastructure/config"
	"github.com/facegate/facegate-core/internal/infrastructure/logging"
	"github.com/facegate/facegate-core/internal/record"
)

// upgrader configures the WebSocket upgrader for terminal connections.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Terminals are not browsers; there is no origin to enforce.
		return true
	},
}

// Handler owns the websocket endpoint and the per-connection protocol loop.
type Handler struct {
	cfg      config.GatewayConfig
	logger   *logging.Logger
	registry *Registry
	devices  device.Repository
	records  record.Repository
	audits   audit.Repository
	events   *events.Publisher
}

// NewHandler creates the gateway protocol handler.
func NewHandler(
	cfg config.GatewayConfig,
	logger *logging.Logger,
	registry *Registry,
	devices device.Repository,
	records record.Repository,
	audits audit.Repository,
	publisher *events.Publisher,
) *Handler {
	return &Handler{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		devices:  devices,
		records:  records,
		audits:   audits,
		events:   publisher,
	}
}

// ServeHTTP upgrades the connection and runs the protocol loop until the
// terminal disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	ws.SetReadLimit(int64(h.cfg.MaxMessageSize))
	conn := newWSConn(ws, h.cfg.WriteTimeoutDuration())

	h.logger.Debug("terminal connected", "remote", r.RemoteAddr)
	h.readLoop(r.Context(), conn, ws, r.RemoteAddr)
}

// readLoop processes frames until the connection dies, then cleans up the
// registry entry if this connection still owns it.
func (h *Handler) readLoop(ctx context.Context, conn *wsConn, ws *websocket.Conn, remote string) {
	var deviceID string

	defer func() {
		ws.Close()
		if deviceID != "" {
			if h.registry.Remove(deviceID, conn) {
				h.events.DeviceOffline(deviceID)
			}
		}
		h.logger.Debug("terminal disconnected", "remote", remote, "device_id", deviceID)
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", "error", err, "device_id", deviceID)
			}
			return
		}
		h.handleFrame(ctx, conn, &deviceID, data)
	}
}

// handleFrame dispatches one inbound frame and always answers with an
// envelope. Protocol errors keep the connection open.
func (h *Handler) handleFrame(ctx context.Context, conn Conn, deviceID *string, data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		h.reply(conn, errorFrame("invalid", nil, CodeBadParams, "Bad JSON"))
		return
	}

	switch frame.Method {
	case MethodRegisterDevice:
		h.handleRegister(ctx, conn, deviceID, frame)
	case MethodHeartBeat:
		h.handleHeartbeat(ctx, conn, frame)
	case MethodUploadRecords:
		h.handleUploadRecords(ctx, conn, frame)
	case MethodInsertPerson, MethodUpdatePerson, MethodRemovePerson:
		// Person sync is owned by an external collaborator; the core only
		// acknowledges so the terminal does not retry.
		h.reply(conn, successFrame(frame.Method, frame.ReqID, nil))
	default:
		h.reply(conn, errorFrame(frame.Method, frame.ReqID, CodeNotSupported, "Not supported"))
	}
}

type registerParams struct {
	DeviceID string `json:"DeviceId"`
	ProdType string `json:"ProdType"`
	ProdName string `json:"ProdName"`
}

func (h *Handler) handleRegister(ctx context.Context, conn Conn, deviceID *string, frame inboundFrame) {
	var params registerParams
	if len(frame.Params) > 0 {
		if err := json.Unmarshal(frame.Params, &params); err != nil {
			h.reply(conn, errorFrame(frame.Method, frame.ReqID, CodeBadParams, "Bad params"))
			return
		}
	}
	if params.DeviceID == "" {
		h.reply(conn, errorFrame(frame.Method, frame.ReqID, CodeBadParams, "DeviceId required"))
		return
	}

	now := time.Now().Unix()
	if err := h.devices.Upsert(ctx, params.DeviceID, params.ProdType, params.ProdName, now); err != nil {
		h.logger.Error("device upsert failed", "device_id", params.DeviceID, "error", err)
		h.reply(conn, errorFrame(frame.Method, frame.ReqID, CodeInternal, "Internal"))
		return
	}

	h.registry.Put(params.DeviceID, conn)
	*deviceID = params.DeviceID

	h.logger.Info("device registered",
		"device_id", params.DeviceID,
		"prod_type", params.ProdType,
		"connections", h.registry.Count(),
	)

	if err := h.audits.Create(ctx, &audit.Entry{
		Action:     audit.ActionRegister,
		EntityType: "device",
		EntityID:   params.DeviceID,
		Details:    map[string]any{"prod_type": params.ProdType, "prod_name": params.ProdName},
	}); err != nil {
		h.logger.Warn("audit write failed", "error", err)
	}
	h.events.DeviceOnline(params.DeviceID, params.ProdType)

	h.reply(conn, successFrame(frame.Method, frame.ReqID, map[string]any{"Timestamp": now}))
}

type heartbeatParams struct {
	DeviceID string `json:"DeviceId"`
}

// handleHeartbeat touches last_seen. A heartbeat without a device id is
// tolerated and still acknowledged.
func (h *Handler) handleHeartbeat(ctx context.Context, conn Conn, frame inboundFrame) {
	var params heartbeatParams
	if len(frame.Params) > 0 {
		//nolint:errcheck // Malformed heartbeat params are treated as absent
		json.Unmarshal(frame.Params, &params)
	}

	if params.DeviceID != "" {
		if err := h.devices.Touch(ctx, params.DeviceID, time.Now().Unix()); err != nil {
			h.logger.Error("heartbeat touch failed", "device_id", params.DeviceID, "error", err)
			h.reply(conn, errorFrame(frame.Method, frame.ReqID, CodeInternal, "Internal"))
			return
		}
		h.events.Heartbeat(params.DeviceID)
	}

	h.reply(conn, successFrame(frame.Method, frame.ReqID, nil))
}

type uploadRecordsParams struct {
	DeviceID string          `json:"DeviceId"`
	Records  json.RawMessage `json:"Records"`
}

type recordWire struct {
	RecordID   int64    `json:"RecordID"`
	PersonID   string   `json:"PersonID"`
	RecordTime int64    `json:"RecordTime"`
	RecordPass int      `json:"RecordPass"`
	Similarity *float64 `json:"Similarity"`
}

func (h *Handler) handleUploadRecords(ctx context.Context, conn Conn, frame inboundFrame) {
	var params uploadRecordsParams
	if len(frame.Params) > 0 {
		if err := json.Unmarshal(frame.Params, &params); err != nil {
			h.reply(conn, errorFrame(frame.Method, frame.ReqID, CodeBadParams, "Bad params"))
			return
		}
	}

	var items []json.RawMessage
	if params.DeviceID == "" || len(params.Records) == 0 ||
		json.Unmarshal(params.Records, &items) != nil || string(params.Records) == "null" {
		h.reply(conn, errorFrame(frame.Method, frame.ReqID, CodeBadParams, "Bad params"))
		return
	}

	for _, raw := range items {
		var wire recordWire
		if err := json.Unmarshal(raw, &wire); err != nil {
			h.reply(conn, errorFrame(frame.Method, frame.ReqID, CodeBadParams, "Bad params"))
			return
		}

		rec := &record.Record{
			DeviceID:   params.DeviceID,
			RecordID:   wire.RecordID,
			PersonRef:  wire.PersonID,
			RecordTime: wire.RecordTime,
			Pass:       wire.RecordPass != 0,
			Similarity: wire.Similarity,
			Raw:        string(raw),
		}
		stored, err := h.records.Insert(ctx, rec)
		if err != nil {
			h.logger.Error("record insert failed",
				"device_id", params.DeviceID, "record_id", wire.RecordID, "error", err)
			h.reply(conn, errorFrame(frame.Method, frame.ReqID, CodeInternal, "Internal"))
			return
		}
		if stored {
			similarity := 0.0
			if wire.Similarity != nil {
				similarity = *wire.Similarity
			}
			h.events.RecordStored(params.DeviceID, wire.RecordID, rec.Pass, similarity)
		}
	}

	h.reply(conn, successFrame(frame.Method, frame.ReqID, nil))
}

// reply writes an envelope; a failed write will surface as a read error on
// the loop, so it is only logged here.
func (h *Handler) reply(conn Conn, frame Frame) {
	if err := conn.Send(frame); err != nil {
		h.logger.Debug("reply write failed", "method", frame.Method, "error", err)
	}
}
