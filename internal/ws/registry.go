package ws

import (
	"sync"

	"chessrelay/pkg/interfaces"
)

// Registry tracks live connections by identity. Pure connection management;
// room membership lives in the session registry.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*Connection),
	}
}

// Add registers a connection.
func (r *Registry) Add(conn *Connection) error {
	if conn == nil {
		return ErrNilConnection
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.ID()] = conn
	return nil
}

// Remove unregisters a connection. Idempotent, and instance-checked so a
// stale cleanup can never evict a different connection registered under the
// same identity.
func (r *Registry) Remove(conn *Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if registered, exists := r.conns[conn.ID()]; exists && registered == conn {
		delete(r.conns, conn.ID())
	}
}

// Get looks up a live connection by identity.
func (r *Registry) Get(id string) (interfaces.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	return conn, true
}

// Len returns the live connection count.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
