package domain

import (
	"encoding/json"
	"time"
)

// Client-to-server command types.
const (
	TypePing           = "ping"
	TypeJoinRoom       = "joinRoom"
	TypeLeaveRoom      = "leaveRoom"
	TypeMessage        = "message"
	TypeTyping         = "typing"
	TypeUpdateLocation = "updateLocation"
	TypeUpdateStatus   = "updateStatus"
)

// Server-to-client event types.
const (
	TypeConnection     = "connection"
	TypePong           = "pong"
	TypeRoomJoined     = "roomJoined"
	TypeRoomLeft       = "roomLeft"
	TypeNewMessage     = "newMessage"
	TypeUserTyping     = "userTyping"
	TypeLocationUpdate = "locationUpdate"
	TypeUserOffline    = "userOffline"
	TypeNotification   = "notification"
	TypeHeartbeat      = "heartbeat"
)

// StatusChangedType builds the dynamic event name for entity status pushes,
// e.g. "vehicleStatusChanged".
func StatusChangedType(entityType string) string {
	return entityType + "StatusChanged"
}

// EntityRoomID names the room that tracks a single domain entity,
// e.g. "vehicle:42" for live location subscribers.
func EntityRoomID(entityType, entityID string) string {
	return entityType + ":" + entityID
}

// UserRoomID names the well-known per-user room used for presence events.
func UserRoomID(clientID string) string {
	return "user:" + clientID
}

// Envelope is the wire unit exchanged in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewEnvelope wraps a typed payload into an outbound envelope.
func NewEnvelope(typ string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: typ, Data: raw}, nil
}

// ConnectionInfo is sent once, immediately after a successful connect.
type ConnectionInfo struct {
	ClientID  string    `json:"clientId"`
	Timestamp time.Time `json:"timestamp"`
}

// PongReply answers a client ping.
type PongReply struct {
	Timestamp time.Time `json:"timestamp"`
}

// RoomEvent acknowledges joinRoom/leaveRoom to the sender.
type RoomEvent struct {
	RoomID string `json:"roomId"`
}

// ChatMessage is broadcast to a room, sender included.
type ChatMessage struct {
	MessageID string    `json:"messageId"`
	RoomID    string    `json:"roomId"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// TypingEvent is broadcast to a room, sender excluded.
type TypingEvent struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// LocationUpdate is broadcast to the entity room "{entityType}:{entityId}".
type LocationUpdate struct {
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	UserID     string          `json:"userId"`
	Location   json.RawMessage `json:"locationData"`
	Timestamp  time.Time       `json:"timestamp"`
}

// StatusChange is broadcast to every connection.
type StatusChange struct {
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	Status     string    `json:"status"`
	UserID     string    `json:"userId"`
	Timestamp  time.Time `json:"timestamp"`
}

// OfflineEvent is pushed to the per-user room when a connection closes.
type OfflineEvent struct {
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// HeartbeatTick is the advisory liveness broadcast.
type HeartbeatTick struct {
	Timestamp time.Time `json:"timestamp"`
}
