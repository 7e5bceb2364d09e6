package hub

import "sync"

// Registry is the Hub's connection table, keyed by node_id once a
// connection's first event names one, or by a synthetic "peer:<remoteAddr>"
// key beforehand. sync.Map gives lock-free-per-entry insert/remove/send
// lookups, matching the registry's concurrency requirements.
type Registry struct {
	conns sync.Map // key string -> *Connection
}

// NewRegistry builds an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Store registers conn under key, replacing any existing entry.
func (r *Registry) Store(key string, conn *Connection) {
	r.conns.Store(key, conn)
}

// Delete removes the entry at key, if present.
func (r *Registry) Delete(key string) {
	r.conns.Delete(key)
}

// Rebind moves conn from its synthetic peer key to nodeID, the key it
// will be addressed by for the rest of its lifetime.
func (r *Registry) Rebind(oldKey, nodeID string, conn *Connection) {
	r.conns.Delete(oldKey)
	r.conns.Store(nodeID, conn)
}

// Get looks up the connection registered under key.
func (r *Registry) Get(key string) (*Connection, bool) {
	v, ok := r.conns.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*Connection), true
}

// Range calls fn for every registered connection, stopping early if fn
// returns false.
func (r *Registry) Range(fn func(key string, conn *Connection) bool) {
	r.conns.Range(func(k, v interface{}) bool {
		return fn(k.(string), v.(*Connection))
	})
}
