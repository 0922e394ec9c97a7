package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message is a persisted chat entry scoped to a room.
type Message struct {
	ID        uuid.UUID
	RoomID    string
	SenderID  string
	Content   string
	CreatedAt time.Time
}

func NewMessage(roomID, senderID, content string) *Message {
	return &Message{
		ID:        uuid.New(),
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// Notification is a persisted record of a directed admin push.
type Notification struct {
	ID        uuid.UUID
	ClientID  string
	Payload   json.RawMessage
	CreatedAt time.Time
}

func NewNotification(clientID string, payload json.RawMessage) *Notification {
	return &Notification{
		ID:        uuid.New(),
		ClientID:  clientID,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}
