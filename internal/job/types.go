package job

import (
	"time"

	"github.com/facegate/facegate-core/internal/schedule"
)

// State is the delivery state of a job.
type State string

// Job states. pending -> sent is terminal success; pending -> failed ->
// pending cycles until the retry budget is exhausted, after which failed is
// a terminal dead-letter.
const (
	StatePending State = "pending"
	StateSent    State = "sent"
	StateFailed  State = "failed"
)

// DefaultMaxRetries is the delivery attempt budget per job.
const DefaultMaxRetries = 3

// Job is one unit of work: deliver one schedule's payload to one device.
// Jobs are created only by the schedule expander and mutated only by the
// dispatcher and the failure requeuer.
type Job struct {
	ID         int64  `json:"id"`
	ScheduleID string `json:"schedule_id"`
	DeviceID   string `json:"device_id"`
	State      State  `json:"state"`
	RetryCount int    `json:"retry_count"`
	LastError  string `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Work is a pending job joined with the payload metadata the dispatcher
// needs to build the outbound frame.
type Work struct {
	JobID      int64
	ScheduleID string
	DeviceID   string
	Payload    schedule.PayloadKind

	// ImageURL is the resolved payload URL for image schedules; nil when the
	// schedule has no image reference or the reference cannot be resolved.
	ImageURL *string
}
