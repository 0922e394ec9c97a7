package contracts

import (
	"context"
	"time"
)

// PresenceStore mirrors the set of clients connected to this gateway node
// into a TTL-based external store for operational visibility. The
// authoritative presence set is always the local connection registry; this
// mirror is advisory and may lag.
type PresenceStore interface {
	// UpdateOnlineStatus refreshes the TTL-scored entry for one client.
	UpdateOnlineStatus(ctx context.Context, gatewayID, clientID string, ttl time.Duration) error
	// OnlineClients lists clients that checked in within the freshness window.
	OnlineClients(ctx context.Context, gatewayID string) ([]string, error)
	// RemoveClient drops one client from the mirror on disconnect.
	RemoveClient(ctx context.Context, gatewayID, clientID string) error
}
