package gateway

import "testing"

func TestRegistryPutGetRemove(t *testing.T) {
	r := NewRegistry()
	conn := &fakeConn{}

	if _, ok := r.Get("dev-1"); ok {
		t.Error("expected no connection before Put")
	}

	r.Put("dev-1", conn)
	got, ok := r.Get("dev-1")
	if !ok || got != Conn(conn) {
		t.Error("expected stored connection after Put")
	}
	if r.Count() != 1 {
		t.Errorf("expected count 1, got %d", r.Count())
	}

	if !r.Remove("dev-1", conn) {
		t.Error("expected Remove to report removal")
	}
	if _, ok := r.Get("dev-1"); ok {
		t.Error("expected no connection after Remove")
	}
}

func TestRegistryPutReplaces(t *testing.T) {
	r := NewRegistry()
	old := &fakeConn{}
	replacement := &fakeConn{}

	r.Put("dev-1", old)
	r.Put("dev-1", replacement)

	got, _ := r.Get("dev-1")
	if got != Conn(replacement) {
		t.Error("expected replacement connection after second Put")
	}
	if r.Count() != 1 {
		t.Errorf("expected count 1, got %d", r.Count())
	}
}

// A replaced connection closing late must not evict its successor.
func TestRegistryRemoveIsConditional(t *testing.T) {
	r := NewRegistry()
	old := &fakeConn{}
	replacement := &fakeConn{}

	r.Put("dev-1", old)
	r.Put("dev-1", replacement)

	if r.Remove("dev-1", old) {
		t.Error("expected Remove with stale connection to be a no-op")
	}
	got, ok := r.Get("dev-1")
	if !ok || got != Conn(replacement) {
		t.Error("expected successor to survive stale Remove")
	}

	if !r.Remove("dev-1", replacement) {
		t.Error("expected Remove with current connection to succeed")
	}
}

func TestRegistryRemoveUnknownDevice(t *testing.T) {
	r := NewRegistry()
	if r.Remove("dev-absent", &fakeConn{}) {
		t.Error("expected Remove of unknown device to be a no-op")
	}
}
