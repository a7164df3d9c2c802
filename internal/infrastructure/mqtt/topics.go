package mqtt

// Default topic base when config leaves topic_base empty.
const defaultTopicBase = "facegate"

// Topics builds the topic hierarchy under a configurable base.
//
// Layout:
//
//	<base>/system/status          retained daemon online/offline status
//	<base>/event/device/<id>      device presence changes (online, offline)
//	<base>/event/record/<id>      access records reported by device <id>
//	<base>/event/job/<state>      job lifecycle (sent, failed, requeued)
//	<base>/event/command/<id>     direct commands issued to device <id>
type Topics struct {
	// Base overrides the default topic prefix. Empty means "facegate".
	Base string
}

func (t Topics) base() string {
	if t.Base == "" {
		return defaultTopicBase
	}
	return t.Base
}

// SystemStatus returns the retained daemon status topic.
func (t Topics) SystemStatus() string {
	return t.base() + "/system/status"
}

// DeviceEvent returns the presence topic for a device.
func (t Topics) DeviceEvent(deviceID string) string {
	return t.base() + "/event/device/" + deviceID
}

// RecordEvent returns the access record topic for a device.
func (t Topics) RecordEvent(deviceID string) string {
	return t.base() + "/event/record/" + deviceID
}

// JobEvent returns the job lifecycle topic for a state transition.
func (t Topics) JobEvent(state string) string {
	return t.base() + "/event/job/" + state
}

// CommandEvent returns the direct command topic for a device.
func (t Topics) CommandEvent(deviceID string) string {
	return t.base() + "/event/command/" + deviceID
}
