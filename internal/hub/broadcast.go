package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/changhyu/cargoro-sub000/internal/core/contracts"
	"github.com/changhyu/cargoro-sub000/internal/core/domain"
	"github.com/changhyu/cargoro-sub000/pkg/logging"
)

// Broadcaster fans envelopes out to one client, to a room, or to everyone.
// Delivery is best-effort: a dead peer is detected lazily on the first
// failed write and torn down through Hub.Drop, without disturbing the
// remaining recipients of the same call.
type Broadcaster struct {
	log *slog.Logger
	hub *Hub
}

func NewBroadcaster(log *slog.Logger, hub *Hub) *Broadcaster {
	return &Broadcaster{
		log: log.With(slog.String("component", "broadcaster")),
		hub: hub,
	}
}

var _ contracts.Broadcaster = (*Broadcaster)(nil)

// SendToClient delivers one envelope to one client. No retry on failure:
// the failing connection is dropped and the error returned for logging.
func (b *Broadcaster) SendToClient(ctx context.Context, clientID string, env domain.Envelope) error {
	c, ok := b.hub.registry.Lookup(clientID)
	if !ok {
		return domain.ErrClientNotFound
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := c.Send(ctx, data); err != nil {
		b.log.WarnContext(ctx, "broadcaster - send to client - dropping failed connection",
			logging.Client(clientID), logging.Event(env.Type), logging.Err(err))
		b.hub.DropClient(c)
		return err
	}
	return nil
}

// BroadcastAll sends the envelope to every registered connection.
func (b *Broadcaster) BroadcastAll(ctx context.Context, env domain.Envelope) {
	b.fanOut(ctx, b.hub.registry.Snapshot(), env, "")
}

// BroadcastToRoom sends the envelope to every member of the room except
// excludeClientID. Pass "" to exclude nobody.
func (b *Broadcaster) BroadcastToRoom(ctx context.Context, roomID string, env domain.Envelope, excludeClientID string) {
	b.fanOut(ctx, b.hub.rooms.Members(roomID), env, excludeClientID)
}

// fanOut snapshots recipients, releases all locks, then runs one send
// goroutine per recipient bounded by a WaitGroup, so a slow peer cannot
// stall the others or the caller beyond its own enqueue. A recipient that
// disconnected between snapshot and send is skipped or fails its send;
// either way only that recipient is dropped.
func (b *Broadcaster) fanOut(ctx context.Context, clientIDs []string, env domain.Envelope, exclude string) {
	data, err := json.Marshal(env)
	if err != nil {
		b.log.ErrorContext(ctx, "broadcaster - fan out - marshal failed", logging.Event(env.Type), logging.Err(err))
		return
	}

	var wg sync.WaitGroup
	for _, id := range clientIDs {
		if id == exclude {
			continue
		}
		c, ok := b.hub.registry.Lookup(id)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(id string, c contracts.Client) {
			defer wg.Done()
			if err := c.Send(ctx, data); err != nil {
				b.log.WarnContext(ctx, "broadcaster - fan out - dropping failed recipient",
					logging.Client(id), logging.Event(env.Type), logging.Err(err))
				b.hub.DropClient(c)
			}
		}(id, c)
	}
	wg.Wait()
}

// RunHeartbeat broadcasts an advisory heartbeat envelope with the current
// timestamp on a fixed interval until ctx is cancelled.
func (b *Broadcaster) RunHeartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			b.log.Info("broadcaster - run heartbeat - stopped")
			return
		case now := <-ticker.C:
			env, err := domain.NewEnvelope(domain.TypeHeartbeat, domain.HeartbeatTick{Timestamp: now})
			if err != nil {
				continue
			}
			b.BroadcastAll(ctx, env)
		}
	}
}
