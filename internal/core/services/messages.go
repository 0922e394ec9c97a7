package services

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/changhyu/cargoro-sub000/internal/core/contracts"
	"github.com/changhyu/cargoro-sub000/internal/core/domain"
)

var tracer = otel.Tracer("chat-service")

// TxRunner runs a function inside a database transaction carried on the
// context. Implemented by the postgres plugin.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ChatService owns the persist-then-broadcast pipeline for room messages.
// The store is an external collaborator: a persistence failure is recorded
// but never blocks delivery, because the hub is best-effort by design.
type ChatService struct {
	log       *slog.Logger
	store     domain.MessageStore
	txManager TxRunner
	bcast     contracts.Broadcaster
}

func NewChatService(
	log *slog.Logger,
	store domain.MessageStore,
	txManager TxRunner,
	bcast contracts.Broadcaster,
) *ChatService {
	return &ChatService{
		log:       log,
		store:     store,
		txManager: txManager,
		bcast:     bcast,
	}
}

// SaveAndBroadcast persists the message, then broadcasts newMessage to the
// room. The sender is not excluded; it receives its own message back as the
// delivery confirmation.
func (s *ChatService) SaveAndBroadcast(ctx context.Context, roomID, senderID, content string) error {
	ctx, span := tracer.Start(ctx, "ChatService.SaveAndBroadcast", trace.WithAttributes(
		attribute.String("room_id", roomID),
		attribute.String("sender_id", senderID),
		attribute.Int("content_size", len(content)),
	))
	defer span.End()
	if roomID == "" {
		return domain.ErrInvalidRoomID
	}
	if content == "" {
		return domain.ErrEmptyContent
	}

	msg := domain.NewMessage(roomID, senderID, content)
	if err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		return s.store.SaveMessage(txCtx, msg)
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		s.log.ErrorContext(ctx, "chat - save and broadcast - persist failed, delivering anyway",
			"room_id", roomID, "sender_id", senderID, "err", err)
	}

	env, err := domain.NewEnvelope(domain.TypeNewMessage, domain.ChatMessage{
		MessageID: msg.ID.String(),
		RoomID:    msg.RoomID,
		UserID:    msg.SenderID,
		Content:   msg.Content,
		Timestamp: msg.CreatedAt,
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	s.bcast.BroadcastToRoom(ctx, roomID, env, "")
	span.SetStatus(codes.Ok, "delivered")
	return nil
}

// History returns the most recent persisted messages for a room.
func (s *ChatService) History(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	ctx, span := tracer.Start(ctx, "ChatService.History", trace.WithAttributes(
		attribute.String("room_id", roomID),
	))
	defer span.End()
	if roomID == "" {
		return nil, domain.ErrInvalidRoomID
	}
	msgs, err := s.store.RecentMessages(ctx, roomID, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "db read failed")
		s.log.ErrorContext(ctx, "chat - history - recent messages failed", "room_id", roomID, "err", err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("message_count", len(msgs)))
	return msgs, nil
}
