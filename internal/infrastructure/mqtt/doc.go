// Package mqtt wraps paho.mqtt.golang for publishing gateway and scheduler
// events to an external broker.
//
// The client is publish-only: terminals never talk MQTT, they speak the
// WebSocket protocol. MQTT exists so other systems (dashboards, building
// controllers) can observe device presence, access records, and job
// outcomes without polling the HTTP API.
//
// Connection management:
//   - Auto-reconnect with exponential backoff.
//   - Last Will and Testament on the system status topic so subscribers can
//     distinguish a crash from a graceful shutdown.
//   - All methods are safe for concurrent use.
//
// The fanout is optional. When mqtt.enabled is false in config the daemon
// runs without a broker and the events layer becomes a no-op.
package mqtt
