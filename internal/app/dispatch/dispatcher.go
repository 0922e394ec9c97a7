package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/tidwall/gjson"

	"github.com/changhyu/cargoro-sub000/internal/core/contracts"
	"github.com/changhyu/cargoro-sub000/internal/core/domain"
	"github.com/changhyu/cargoro-sub000/internal/hub"
	"github.com/changhyu/cargoro-sub000/pkg/logging"
)

// Chat persists an inbound room message and broadcasts the resulting
// newMessage event. Implemented by services.ChatService.
type Chat interface {
	SaveAndBroadcast(ctx context.Context, roomID, senderID, content string) error
}

// Dispatcher decodes inbound envelopes and invokes the matching handler.
// The connection is stateless between messages; everything a handler needs
// travels in the envelope or lives in the hub.
type Dispatcher struct {
	log   *slog.Logger
	rooms *hub.Rooms
	bcast contracts.Broadcaster
	chat  Chat
}

func New(log *slog.Logger, rooms *hub.Rooms, bcast contracts.Broadcaster, chat Chat) *Dispatcher {
	return &Dispatcher{
		log:   log.With(slog.String("component", "dispatcher")),
		rooms: rooms,
		bcast: bcast,
		chat:  chat,
	}
}

// Dispatch handles one inbound frame. A malformed or unknown envelope is
// ignored; it never terminates the connection. A known envelope missing a
// required field is a silent no-op.
func (d *Dispatcher) Dispatch(ctx context.Context, clientID string, raw []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		d.log.WarnContext(ctx, "dispatch - malformed envelope ignored", logging.Client(clientID), logging.Err(err))
		return
	}

	switch env.Type {
	case domain.TypePing:
		d.handlePing(ctx, clientID)
	case domain.TypeJoinRoom:
		d.handleJoinRoom(ctx, clientID, env.Data)
	case domain.TypeLeaveRoom:
		d.handleLeaveRoom(ctx, clientID, env.Data)
	case domain.TypeMessage:
		d.handleMessage(ctx, clientID, env.Data)
	case domain.TypeTyping:
		d.handleTyping(ctx, clientID, env.Data)
	case domain.TypeUpdateLocation:
		d.handleUpdateLocation(ctx, clientID, env.Data)
	case domain.TypeUpdateStatus:
		d.handleUpdateStatus(ctx, clientID, env.Data)
	default:
		// Lenient protocol: tolerate forward-incompatible clients.
		d.log.DebugContext(ctx, "dispatch - unknown envelope type ignored", logging.Client(clientID), logging.Event(env.Type))
	}
}

func (d *Dispatcher) handlePing(ctx context.Context, clientID string) {
	d.reply(ctx, clientID, domain.TypePong, domain.PongReply{Timestamp: time.Now()})
}

func (d *Dispatcher) handleJoinRoom(ctx context.Context, clientID string, data json.RawMessage) {
	roomID := gjson.GetBytes(data, "roomId").String()
	if roomID == "" {
		return
	}
	d.rooms.Join(clientID, roomID)
	d.log.DebugContext(ctx, "dispatch - join room", logging.Client(clientID), logging.Room(roomID))
	d.reply(ctx, clientID, domain.TypeRoomJoined, domain.RoomEvent{RoomID: roomID})
}

func (d *Dispatcher) handleLeaveRoom(ctx context.Context, clientID string, data json.RawMessage) {
	roomID := gjson.GetBytes(data, "roomId").String()
	if roomID == "" {
		return
	}
	d.rooms.Leave(clientID, roomID)
	d.log.DebugContext(ctx, "dispatch - leave room", logging.Client(clientID), logging.Room(roomID))
	d.reply(ctx, clientID, domain.TypeRoomLeft, domain.RoomEvent{RoomID: roomID})
}

func (d *Dispatcher) handleMessage(ctx context.Context, clientID string, data json.RawMessage) {
	roomID := gjson.GetBytes(data, "roomId").String()
	content := gjson.GetBytes(data, "content").String()
	if roomID == "" || content == "" {
		return
	}
	if err := d.chat.SaveAndBroadcast(ctx, roomID, clientID, content); err != nil {
		d.log.ErrorContext(ctx, "dispatch - message - save and broadcast failed",
			logging.Client(clientID), logging.Room(roomID), logging.Err(err))
	}
}

func (d *Dispatcher) handleTyping(ctx context.Context, clientID string, data json.RawMessage) {
	roomID := gjson.GetBytes(data, "roomId").String()
	if roomID == "" {
		return
	}
	env, err := domain.NewEnvelope(domain.TypeUserTyping, domain.TypingEvent{
		RoomID:   roomID,
		UserID:   clientID,
		IsTyping: gjson.GetBytes(data, "isTyping").Bool(),
	})
	if err != nil {
		return
	}
	// The sender already knows it is typing.
	d.bcast.BroadcastToRoom(ctx, roomID, env, clientID)
}

func (d *Dispatcher) handleUpdateLocation(ctx context.Context, clientID string, data json.RawMessage) {
	entityType := gjson.GetBytes(data, "entityType").String()
	entityID := gjson.GetBytes(data, "entityId").String()
	location := gjson.GetBytes(data, "locationData")
	if entityType == "" || entityID == "" || !location.Exists() {
		return
	}
	env, err := domain.NewEnvelope(domain.TypeLocationUpdate, domain.LocationUpdate{
		EntityType: entityType,
		EntityID:   entityID,
		UserID:     clientID,
		Location:   json.RawMessage(location.Raw),
		Timestamp:  time.Now(),
	})
	if err != nil {
		return
	}
	d.bcast.BroadcastToRoom(ctx, domain.EntityRoomID(entityType, entityID), env, "")
}

func (d *Dispatcher) handleUpdateStatus(ctx context.Context, clientID string, data json.RawMessage) {
	entityType := gjson.GetBytes(data, "entityType").String()
	entityID := gjson.GetBytes(data, "entityId").String()
	status := gjson.GetBytes(data, "status").String()
	if entityType == "" || entityID == "" || status == "" {
		return
	}
	env, err := domain.NewEnvelope(domain.StatusChangedType(entityType), domain.StatusChange{
		EntityType: entityType,
		EntityID:   entityID,
		Status:     status,
		UserID:     clientID,
		Timestamp:  time.Now(),
	})
	if err != nil {
		return
	}
	d.bcast.BroadcastAll(ctx, env)
}

func (d *Dispatcher) reply(ctx context.Context, clientID, typ string, payload any) {
	env, err := domain.NewEnvelope(typ, payload)
	if err != nil {
		return
	}
	// Send failure is already logged and torn down by the broadcaster.
	_ = d.bcast.SendToClient(ctx, clientID, env)
}
