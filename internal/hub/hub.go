package hub

import (
	"log/slog"

	"github.com/changhyu/cargoro-sub000/internal/core/contracts"
	"github.com/changhyu/cargoro-sub000/pkg/logging"
)

// Hub ties the connection registry and the room directory together behind a
// single attach/teardown path, so a connection can never be unregistered
// without its room memberships being cleaned up too.
type Hub struct {
	log      *slog.Logger
	registry *Registry
	rooms    *Rooms
}

func New(log *slog.Logger) *Hub {
	return &Hub{
		log:      log.With(slog.String("component", "hub")),
		registry: NewRegistry(),
		rooms:    NewRooms(),
	}
}

func (h *Hub) Registry() *Registry { return h.registry }
func (h *Hub) Rooms() *Rooms       { return h.rooms }

// Attach registers the client. A stale connection under the same ID is
// force-closed before being replaced, not left dangling.
func (h *Hub) Attach(c contracts.Client) {
	if prev := h.registry.Register(c); prev != nil {
		prev.Close()
		h.log.Warn("hub - attach - replaced stale connection", logging.Client(c.ID()))
	}
	h.log.Debug("hub - attach - client registered", logging.Client(c.ID()))
}

// Drop is the sole teardown path: unregister, leave every room, close the
// handle. Idempotent; safe to call from any goroutine, including a send
// goroutine that just observed a transport failure mid-broadcast.
func (h *Hub) Drop(clientID string) {
	c := h.registry.Unregister(clientID)
	rooms := h.rooms.LeaveAll(clientID)
	if c != nil {
		c.Close()
	}
	if c != nil || len(rooms) > 0 {
		h.log.Debug("hub - drop - client torn down", logging.Client(clientID), "rooms_left", len(rooms))
	}
}

// DropClient tears down c only if it is still the registered connection for
// its ID. A connection that was already replaced must not strip the room
// state now owned by its successor; it only gets its own handle closed.
// A connection that was already dropped outright still clears its
// memberships: a Join racing an earlier teardown could otherwise land after
// that teardown's LeaveAll and pin the room forever.
func (h *Hub) DropClient(c contracts.Client) {
	if !h.registry.UnregisterClient(c) {
		c.Close()
		if _, ok := h.registry.Lookup(c.ID()); !ok {
			if rooms := h.rooms.LeaveAll(c.ID()); len(rooms) > 0 {
				h.log.Debug("hub - drop - late membership cleanup", logging.Client(c.ID()), "rooms_left", len(rooms))
			}
		}
		return
	}
	rooms := h.rooms.LeaveAll(c.ID())
	c.Close()
	h.log.Debug("hub - drop - client torn down", logging.Client(c.ID()), "rooms_left", len(rooms))
}
