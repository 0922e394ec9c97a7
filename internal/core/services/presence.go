package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/changhyu/cargoro-sub000/internal/core/contracts"
)

// PresenceService keeps the advisory presence mirror fresh while a
// connection lives. The authoritative presence set stays in the registry;
// the mirror only gives operators cross-node visibility.
type PresenceService struct {
	log       *slog.Logger
	store     contracts.PresenceStore
	gatewayID string
	interval  time.Duration
	ttl       time.Duration
}

func NewPresenceService(
	log *slog.Logger,
	store contracts.PresenceStore,
	gatewayID string,
	interval, ttl time.Duration,
) *PresenceService {
	return &PresenceService{
		log:       log,
		store:     store,
		gatewayID: gatewayID,
		interval:  interval,
		ttl:       ttl,
	}
}

// Track refreshes the mirror entry for clientID until ctx is cancelled,
// then removes it. Mirror failures are logged and ignored; they must never
// affect the connection.
func (s *PresenceService) Track(ctx context.Context, clientID string) {
	if err := s.store.UpdateOnlineStatus(ctx, s.gatewayID, clientID, s.ttl); err != nil {
		s.log.ErrorContext(ctx, "presence - track - initial update failed", "client_id", clientID, "err", err)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := s.store.RemoveClient(cleanupCtx, s.gatewayID, clientID); err != nil {
				s.log.Error("presence - track - remove on disconnect failed", "client_id", clientID, "err", err)
			}
			return
		case <-ticker.C:
			if err := s.store.UpdateOnlineStatus(ctx, s.gatewayID, clientID, s.ttl); err != nil {
				s.log.ErrorContext(ctx, "presence - track - update failed", "client_id", clientID, "err", err)
			}
		}
	}
}
