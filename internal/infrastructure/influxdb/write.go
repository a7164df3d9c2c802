package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteHeartbeat records a heartbeat from a terminal.
//
// The write is non-blocking; data is batched and sent asynchronously.
func (c *Client) WriteHeartbeat(deviceID string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"heartbeat",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteRecord records an access event reported by a terminal.
func (c *Client) WriteRecord(deviceID string, pass bool, similarity float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"access_record",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"pass":       pass,
			"similarity": similarity,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteJobOutcome records a job state transition from the dispatcher or
// requeuer. The outcome tag is the new state (sent, failed, requeued).
func (c *Client) WriteJobOutcome(deviceID string, outcome string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"job_outcome",
		map[string]string{
			"device_id": deviceID,
			"outcome":   outcome,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteQueueDepth records the pending and failed job counts observed by a
// scheduler tick.
func (c *Client) WriteQueueDepth(pending int, failed int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"queue_depth",
		nil,
		map[string]interface{}{
			"pending": pending,
			"failed":  failed,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
