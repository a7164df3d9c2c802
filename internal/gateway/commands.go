package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/facegate/facegate-core/internal/audit"
	"github.com/facegate/facegate-core/internal/events"
	"github.com/facegate/facegate-core/internal/infrastructure/logging"
)

// ErrDeviceOffline is returned when a command targets a device with no
// live connection.
var ErrDeviceOffline = errors.New("gateway: device offline")

// reqCounter generates correlation ids for outbound pushes. Seeded from
// the clock so ids do not repeat across restarts within a device's view.
var reqCounter atomic.Int64

func init() {
	reqCounter.Store(time.Now().Unix() & 0xffffffff)
}

// NextReqID returns a fresh correlation id for an outbound push.
func NextReqID() int64 {
	return reqCounter.Add(1)
}

// Issuer sends direct commands to terminals, bypassing the job queue.
//
// Commands are fire-and-forget: success means the frame was written to the
// connection, not that the device executed the action.
type Issuer struct {
	logger   *logging.Logger
	registry *Registry
	audits   audit.Repository
	events   *events.Publisher
}

// NewIssuer creates a direct command issuer.
func NewIssuer(logger *logging.Logger, registry *Registry, audits audit.Repository, publisher *events.Publisher) *Issuer {
	return &Issuer{
		logger:   logger,
		registry: registry,
		audits:   audits,
		events:   publisher,
	}
}

// RemoteOpenDoor pushes a door release to the device.
func (i *Issuer) RemoteOpenDoor(ctx context.Context, deviceID string, doorIdx int) error {
	return i.push(ctx, deviceID, MethodPushRemoteOpenDoor, map[string]any{
		"DevIdx": doorIdx,
	})
}

// RelayOut pushes a relay pulse to the device.
// The wire param name stays Delay for compatibility with deployed firmware.
func (i *Issuer) RelayOut(ctx context.Context, deviceID string, relayIdx, delaySec int) error {
	return i.push(ctx, deviceID, MethodPushRelayOut, map[string]any{
		"RelayIdx": relayIdx,
		"Delay":    delaySec,
	})
}

func (i *Issuer) push(ctx context.Context, deviceID, method string, params map[string]any) error {
	conn, ok := i.registry.Get(deviceID)
	if !ok {
		return ErrDeviceOffline
	}

	if err := conn.Send(pushFrame(method, params, NextReqID())); err != nil {
		return fmt.Errorf("sending %s to %s: %w", method, deviceID, err)
	}

	i.logger.Info("command issued", "device_id", deviceID, "method", method)

	if err := i.audits.Create(ctx, &audit.Entry{
		Action:     audit.ActionCommand,
		EntityType: "device",
		EntityID:   deviceID,
		Details:    map[string]any{"method": method, "params": params},
	}); err != nil {
		i.logger.Warn("audit write failed", "error", err)
	}
	i.events.CommandIssued(deviceID, method)

	return nil
}
