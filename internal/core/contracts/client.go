package contracts

import (
	"context"

	"github.com/changhyu/cargoro-sub000/internal/core/domain"
)

// Client is the minimal interface the hub needs to communicate with an
// individual WebSocket connection. The client owns its transport handle
// exclusively; nothing else writes to the socket.
type Client interface {
	ID() string
	Send(ctx context.Context, data []byte) error
	Close()
}

// Broadcaster is the fan-out surface exposed to everything outside the hub:
// the dispatcher, the admin push API and the stream worker. These three
// calls are the only interface the REST/CRUD layer needs from this core.
type Broadcaster interface {
	// SendToClient delivers one envelope to one client. A transport failure
	// tears the client down and is returned for logging, never retried.
	SendToClient(ctx context.Context, clientID string, env domain.Envelope) error
	// BroadcastAll delivers to every registered connection, tolerating
	// per-recipient failure.
	BroadcastAll(ctx context.Context, env domain.Envelope)
	// BroadcastToRoom delivers to every member of roomID except
	// excludeClientID (empty string excludes nobody).
	BroadcastToRoom(ctx context.Context, roomID string, env domain.Envelope, excludeClientID string)
}
