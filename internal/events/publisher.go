// Package events fans daemon activity out to optional observers.
//
// The Publisher forwards gateway and scheduler events to the MQTT broker
// and the InfluxDB telemetry sink. Both sinks are optional: a nil Publisher
// or a Publisher with nil sinks drops events silently, so callers never
// branch on whether observability is configured.
package events

import (
	"encoding/json"
	"time"

	"github.com/facegate/facegate-core/internal/infrastructure/influxdb"
	"github.com/facegate/facegate-core/internal/infrastructure/logging"
	"github.com/facegate/facegate-core/internal/infrastructure/mqtt"
)

// Publisher forwards events to the configured sinks.
type Publisher struct {
	log    *logging.Logger
	broker *mqtt.Client
	tsdb   *influxdb.Client
}

// New creates a Publisher. Either sink may be nil.
func New(log *logging.Logger, broker *mqtt.Client, tsdb *influxdb.Client) *Publisher {
	return &Publisher{log: log, broker: broker, tsdb: tsdb}
}

// publish marshals the payload and sends it to the broker. Failures are
// logged and dropped: event fanout must never block or fail gateway and
// scheduler work.
func (p *Publisher) publish(topic string, payload any) {
	if p == nil || p.broker == nil {
		return
	}

	b, err := json.Marshal(payload)
	if err != nil {
		p.log.Warn("event payload marshal failed", "topic", topic, "error", err)
		return
	}
	if err := p.broker.PublishEvent(topic, b); err != nil {
		p.log.Warn("event publish failed", "topic", topic, "error", err)
	}
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// DeviceOnline reports a terminal registering on the gateway.
func (p *Publisher) DeviceOnline(deviceID, prodType string) {
	if p == nil {
		return
	}
	if p.broker != nil {
		p.publish(p.broker.Topics().DeviceEvent(deviceID), map[string]any{
			"status":    "online",
			"device_id": deviceID,
			"prod_type": prodType,
			"timestamp": nowStamp(),
		})
	}
}

// DeviceOffline reports a terminal's connection closing.
func (p *Publisher) DeviceOffline(deviceID string) {
	if p == nil {
		return
	}
	if p.broker != nil {
		p.publish(p.broker.Topics().DeviceEvent(deviceID), map[string]any{
			"status":    "offline",
			"device_id": deviceID,
			"timestamp": nowStamp(),
		})
	}
}

// Heartbeat reports a terminal heartbeat to the telemetry sink only; the
// broker would drown in them.
func (p *Publisher) Heartbeat(deviceID string) {
	if p == nil {
		return
	}
	if p.tsdb != nil {
		p.tsdb.WriteHeartbeat(deviceID)
	}
}

// RecordStored reports a newly stored access record.
func (p *Publisher) RecordStored(deviceID string, recordID int64, pass bool, similarity float64) {
	if p == nil {
		return
	}
	if p.broker != nil {
		p.publish(p.broker.Topics().RecordEvent(deviceID), map[string]any{
			"device_id": deviceID,
			"record_id": recordID,
			"pass":      pass,
			"timestamp": nowStamp(),
		})
	}
	if p.tsdb != nil {
		p.tsdb.WriteRecord(deviceID, pass, similarity)
	}
}

// JobSent reports a successful dispatch.
func (p *Publisher) JobSent(jobID int64, scheduleID, deviceID string) {
	p.jobEvent("sent", jobID, scheduleID, deviceID, "")
}

// JobFailed reports a dispatch failure.
func (p *Publisher) JobFailed(jobID int64, scheduleID, deviceID, reason string) {
	p.jobEvent("failed", jobID, scheduleID, deviceID, reason)
}

func (p *Publisher) jobEvent(state string, jobID int64, scheduleID, deviceID, reason string) {
	if p == nil {
		return
	}
	if p.broker != nil {
		payload := map[string]any{
			"job_id":      jobID,
			"schedule_id": scheduleID,
			"device_id":   deviceID,
			"state":       state,
			"timestamp":   nowStamp(),
		}
		if reason != "" {
			payload["reason"] = reason
		}
		p.publish(p.broker.Topics().JobEvent(state), payload)
	}
	if p.tsdb != nil {
		p.tsdb.WriteJobOutcome(deviceID, state)
	}
}

// JobsRequeued reports a requeuer sweep that returned jobs to pending.
func (p *Publisher) JobsRequeued(count int64) {
	if p == nil || count == 0 {
		return
	}
	if p.broker != nil {
		p.publish(p.broker.Topics().JobEvent("requeued"), map[string]any{
			"count":     count,
			"timestamp": nowStamp(),
		})
	}
}

// CommandIssued reports a direct command pushed to a terminal.
func (p *Publisher) CommandIssued(deviceID, command string) {
	if p == nil {
		return
	}
	if p.broker != nil {
		p.publish(p.broker.Topics().CommandEvent(deviceID), map[string]any{
			"device_id": deviceID,
			"command":   command,
			"timestamp": nowStamp(),
		})
	}
}

// QueueDepth reports current job queue gauges to the telemetry sink.
func (p *Publisher) QueueDepth(pending, failed int) {
	if p == nil {
		return
	}
	if p.tsdb != nil {
		p.tsdb.WriteQueueDepth(pending, failed)
	}
}
