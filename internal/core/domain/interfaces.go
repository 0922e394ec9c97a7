package domain

import "context"

// MessageStore handles durable chat history. The hub calls into it but does
// not own it; a store failure never takes a connection down.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg *Message) error
	RecentMessages(ctx context.Context, roomID string, limit int) ([]Message, error)
}

// NotificationStore records directed admin pushes for later audit.
type NotificationStore interface {
	SaveNotification(ctx context.Context, n *Notification) error
}
