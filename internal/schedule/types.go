package schedule

import "time"

// PayloadKind identifies what a schedule pushes to its target devices.
type PayloadKind string

// Supported payload kinds.
const (
	// PayloadImage displays a promotional or informational image on the
	// terminal screen. The payload reference is an image id resolved to a
	// fetchable URL at dispatch time.
	PayloadImage PayloadKind = "image"

	// PayloadFace redistributes face enrolment data to the terminal.
	PayloadFace PayloadKind = "face"
)

// Status is the lifecycle state of a schedule, owned by the admin application.
type Status int

// Schedule statuses. Draft and active schedules are both expanded; archived
// schedules are ignored.
const (
	StatusDraft    Status = 0
	StatusActive   Status = 1
	StatusArchived Status = 2
)

// Schedule is a campaign: a payload, a set of target devices, a time window,
// and optional minute-granularity recurrence. Schedules are created and
// edited by the admin application; the core treats them as read-only.
type Schedule struct {
	ID      string      `json:"id"`
	Owner   string      `json:"owner,omitempty"`
	Payload PayloadKind `json:"payload_type"`

	// ImageID references the images table for PayloadImage schedules.
	ImageID *string `json:"image_id,omitempty"`

	StartAt time.Time  `json:"start_at"`
	EndAt   *time.Time `json:"end_at,omitempty"`

	// Cron is an optional 5-field expression (minute hour dom month dow).
	// Empty means fire-once semantics: the schedule is due whenever it is
	// in-window, and job dedup ensures a single dispatch series per device.
	Cron string `json:"cron,omitempty"`

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// InWindow reports whether now falls inside the schedule's time window.
// A nil EndAt means the window never closes.
func (s *Schedule) InWindow(now time.Time) bool {
	if now.Before(s.StartAt) {
		return false
	}
	if s.EndAt != nil && now.After(*s.EndAt) {
		return false
	}
	return true
}

// Recurring reports whether the schedule has a cron expression.
func (s *Schedule) Recurring() bool {
	return s.Cron != ""
}
