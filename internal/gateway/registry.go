package gateway

import "sync"

// Conn is a live terminal connection as the rest of the daemon sees it.
// Implemented over gorilla/websocket in production and by fakes in tests.
type Conn interface {
	Send(Frame) error
	Close() error
}

// Registry maps device ids to their live connections.
//
// At most one connection per device: Put silently replaces an existing
// entry without notifying its holder. The dispatcher and the command
// issuer read the registry concurrently with gateway writes, so all access
// goes through the mutex.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Conn)}
}

// Put registers the connection for a device, replacing any prior entry.
func (r *Registry) Put(deviceID string, conn Conn) {
	r.mu.Lock()
	r.conns[deviceID] = conn
	r.mu.Unlock()
}

// Get returns the live connection for a device, if any.
func (r *Registry) Get(deviceID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[deviceID]
	return conn, ok
}

// Remove deletes the entry for a device only if it still holds conn.
// A replaced connection detecting its own close late must not evict the
// successor that took its slot.
func (r *Registry) Remove(deviceID string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.conns[deviceID]
	if !ok || current != conn {
		return false
	}
	delete(r.conns, deviceID)
	return true
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
