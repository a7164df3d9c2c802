package events

import "testing"

// Every method must tolerate a nil Publisher and nil sinks: callers fire
// events unconditionally.
func TestNilPublisherIsSafe(t *testing.T) {
	var p *Publisher

	p.DeviceOnline("dev-1", "FG-100")
	p.DeviceOffline("dev-1")
	p.Heartbeat("dev-1")
	p.RecordStored("dev-1", 5, true, 0.98)
	p.JobSent(1, "sch-1", "dev-1")
	p.JobFailed(2, "sch-1", "dev-1", "device offline")
	p.JobsRequeued(3)
	p.CommandIssued("dev-1", "openDoor")
	p.QueueDepth(4, 1)
}

func TestPublisherWithoutSinksIsSafe(t *testing.T) {
	p := New(nil, nil, nil)

	p.DeviceOnline("dev-1", "FG-100")
	p.RecordStored("dev-1", 5, false, 0)
	p.JobSent(1, "sch-1", "dev-1")
	p.JobsRequeued(0)
	p.QueueDepth(0, 0)
}
