package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/changhyu/cargoro-sub000/internal/core/contracts"
	"github.com/changhyu/cargoro-sub000/internal/core/domain"
	"github.com/changhyu/cargoro-sub000/internal/core/services"
)

// pushRequest is the wire format external services XADD to the push stream.
// Exactly one of clientId/roomId may be set; neither means broadcast to all.
type pushRequest struct {
	ClientID        string          `json:"clientId,omitempty"`
	RoomID          string          `json:"roomId,omitempty"`
	Event           string          `json:"event,omitempty"`
	Data            json.RawMessage `json:"data"`
	ExcludeClientID string          `json:"excludeClientId,omitempty"`
}

// PushWorker drains the out-of-band push stream and delivers each request
// through the broadcaster.
type PushWorker struct {
	log           *slog.Logger
	queue         contracts.PushQueue
	notifications *services.NotificationService
	bcast         contracts.Broadcaster
	group         string
}

func NewPushWorker(
	log *slog.Logger,
	queue contracts.PushQueue,
	notifications *services.NotificationService,
	bcast contracts.Broadcaster,
	group string,
) contracts.AsyncWorker {
	return &PushWorker{
		log:           log,
		queue:         queue,
		notifications: notifications,
		bcast:         bcast,
		group:         group,
	}
}

func (w *PushWorker) Run(ctx context.Context) error {
	w.log.InfoContext(ctx, "worker - run - consuming push stream", "group", w.group)
	return w.queue.Subscribe(ctx, w.group, w.ProcessPush)
}

func (w *PushWorker) ProcessPush(ctx context.Context, messageID string, raw []byte) error {
	var req pushRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		w.log.Error("worker - process push - wrong payload", "message_id", messageID)
		// Ack anyway: a malformed entry will never become parseable.
		_ = w.queue.Acknowledge(ctx, w.group, messageID)
		return err
	}
	event := req.Event
	if event == "" {
		event = domain.TypeNotification
	}

	switch {
	case req.ClientID != "":
		if err := w.notifications.Push(ctx, req.ClientID, req.Data); err != nil {
			// Client not on this node, or send failed and was torn down.
			// Best-effort push; nothing to retry.
			w.log.InfoContext(ctx, "worker - process push - directed push not delivered",
				"message_id", messageID, "client_id", req.ClientID, "err", err)
		}
	case req.RoomID != "":
		w.bcast.BroadcastToRoom(ctx, req.RoomID, domain.Envelope{Type: event, Data: req.Data}, req.ExcludeClientID)
	default:
		w.bcast.BroadcastAll(ctx, domain.Envelope{Type: event, Data: req.Data})
	}

	if err := w.queue.Acknowledge(ctx, w.group, messageID); err != nil {
		w.log.ErrorContext(ctx, "worker - process push - acknowledge failed", "message_id", messageID)
		return err
	}
	if err := w.queue.DeleteMessage(ctx, messageID); err != nil {
		// Already ACKed; trimming is housekeeping only.
		w.log.ErrorContext(ctx, "worker - process push - delete failed", "message_id", messageID)
	}
	return nil
}
