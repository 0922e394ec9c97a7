package hub

import (
	"sync"

	"github.com/changhyu/cargoro-sub000/internal/core/contracts"
)

// Registry owns the set of live client connections, keyed by client ID.
// The key set at any point in time is the presence set; it is not tracked
// anywhere else.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]contracts.Client
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]contracts.Client),
	}
}

// Register inserts the client. If the ID is already registered the previous
// client is replaced and returned so the caller can force-close it; leaving
// the old handle open would leak a zombie connection.
func (r *Registry) Register(c contracts.Client) contracts.Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.clients[c.ID()]
	r.clients[c.ID()] = c
	return prev
}

// Unregister removes the client if present and returns it; removing an
// absent ID is a no-op. Callers must go through Hub.Drop so room cleanup
// always happens alongside.
func (r *Registry) Unregister(clientID string) contracts.Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[clientID]
	if !ok {
		return nil
	}
	delete(r.clients, clientID)
	return c
}

// UnregisterClient removes c only if it is still the registered client for
// its ID. Protects against a replaced connection's teardown removing its
// successor.
func (r *Registry) UnregisterClient(c contracts.Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.clients[c.ID()]
	if !ok || cur != c {
		return false
	}
	delete(r.clients, c.ID())
	return true
}

func (r *Registry) Lookup(clientID string) (contracts.Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[clientID]
	return c, ok
}

// Snapshot returns all currently registered client IDs.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
