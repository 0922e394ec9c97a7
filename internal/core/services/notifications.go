package services

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/changhyu/cargoro-sub000/internal/core/contracts"
	"github.com/changhyu/cargoro-sub000/internal/core/domain"
)

// NotificationService delivers directed admin pushes and records them for
// audit. Recording is best-effort for the same reason persistence is in
// ChatService: the store is a collaborator, not a gatekeeper.
type NotificationService struct {
	log       *slog.Logger
	store     domain.NotificationStore
	txManager TxRunner
	bcast     contracts.Broadcaster
}

func NewNotificationService(
	log *slog.Logger,
	store domain.NotificationStore,
	txManager TxRunner,
	bcast contracts.Broadcaster,
) *NotificationService {
	return &NotificationService{
		log:       log,
		store:     store,
		txManager: txManager,
		bcast:     bcast,
	}
}

// Push wraps the payload in a notification envelope and delivers it to one
// client by ID. Returns domain.ErrClientNotFound when the client is not
// connected to this node; the caller decides whether that matters.
func (s *NotificationService) Push(ctx context.Context, clientID string, payload json.RawMessage) error {
	ctx, span := tracer.Start(ctx, "NotificationService.Push", trace.WithAttributes(
		attribute.String("client_id", clientID),
	))
	defer span.End()

	n := domain.NewNotification(clientID, payload)
	if err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		return s.store.SaveNotification(txCtx, n)
	}); err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "notifications - push - record failed, delivering anyway",
			"client_id", clientID, "err", err)
	}

	env := domain.Envelope{Type: domain.TypeNotification, Data: payload}
	if err := s.bcast.SendToClient(ctx, clientID, env); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
