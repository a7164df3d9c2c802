package device

import "time"

// DefaultOnlineWindow is how long after the last heartbeat a device still
// counts as online. Terminals heartbeat roughly every 30s; the window allows
// a few missed beats before the device is reported offline.
const DefaultOnlineWindow = 120 * time.Second

// Device represents a physical access-control terminal known to the server.
type Device struct {
	// DeviceID is the terminal's self-reported unique identifier.
	DeviceID string `json:"device_id"`

	// ProdType and ProdName describe the hardware, as reported on register.
	ProdType string `json:"prod_type,omitempty"`
	ProdName string `json:"prod_name,omitempty"`

	// LastSeen is the unix timestamp of the last register or heartbeat.
	LastSeen int64 `json:"last_seen_ts"`

	CreatedAt time.Time `json:"created_at"`
}

// Online reports whether the device was seen within the grace window.
// A window of zero falls back to DefaultOnlineWindow.
func (d *Device) Online(now time.Time, window time.Duration) bool {
	if window <= 0 {
		window = DefaultOnlineWindow
	}
	return now.Unix()-d.LastSeen < int64(window/time.Second)
}
