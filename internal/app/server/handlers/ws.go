package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/changhyu/cargoro-sub000/internal/app/dispatch"
	"github.com/changhyu/cargoro-sub000/internal/app/server/ws"
	"github.com/changhyu/cargoro-sub000/internal/core/domain"
	"github.com/changhyu/cargoro-sub000/internal/core/services"
	"github.com/changhyu/cargoro-sub000/internal/hub"
	"github.com/changhyu/cargoro-sub000/pkg/logging"
	"github.com/changhyu/cargoro-sub000/pkg/middleware"
)

// WSHandler is the gateway: it accepts WebSocket connections at
// /ws/{clientId}, drives each connection's read loop, and owns the
// teardown sequence.
type WSHandler struct {
	hub        *hub.Hub
	bcast      *hub.Broadcaster
	dispatcher *dispatch.Dispatcher
	presence   *services.PresenceService
	queueSize  int
}

func NewWSHandler(
	h *hub.Hub,
	bcast *hub.Broadcaster,
	dispatcher *dispatch.Dispatcher,
	presence *services.PresenceService,
	queueSize int,
) *WSHandler {
	return &WSHandler{
		hub:        h,
		bcast:      bcast,
		dispatcher: dispatcher,
		presence:   presence,
		queueSize:  queueSize,
	}
}

func (s *WSHandler) Handler(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	span := trace.SpanFromContext(r.Context())

	userID, ok := r.Context().Value(middleware.UserIDKey).(string)
	if !ok {
		log.ErrorContext(r.Context(), "ws handler - unauthorised missing user_id")
		http.Error(w, "Unauthorized: User ID missing", http.StatusUnauthorized)
		return
	}
	clientID := r.PathValue("clientId")
	if clientID == "" {
		http.Error(w, "client id required", http.StatusBadRequest)
		return
	}
	// The path client ID must be the authenticated subject; connecting as
	// somebody else is not a thing.
	if clientID != userID {
		log.WarnContext(r.Context(), "ws handler - client id does not match token subject",
			logging.Client(clientID), "subject", userID)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	span.SetAttributes(attribute.String("client.id", clientID))

	// The session must outlive the HTTP request context.
	sessionCtx := context.WithoutCancel(r.Context())
	ctx, cancel := context.WithCancel(sessionCtx)
	defer cancel()

	var upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true // tighten later
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.ErrorContext(r.Context(), "ws handler - upgrade - ws upgrade failed", logging.Err(err))
		return
	}
	conn.SetCloseHandler(func(code int, text string) error {
		log.Info("ws handler - ws closed by peer", logging.Client(clientID))
		cancel()
		return nil
	})

	sock := ws.NewWebSocket(ctx, conn)
	client := ws.NewClient(ctx, sock, clientID, s.queueSize)

	// CONNECTING -> CONNECTED
	s.hub.Attach(client)
	if env, err := domain.NewEnvelope(domain.TypeConnection, domain.ConnectionInfo{
		ClientID:  clientID,
		Timestamp: time.Now(),
	}); err == nil {
		_ = s.bcast.SendToClient(ctx, clientID, env)
	}
	log.InfoContext(r.Context(), "ws handler - connection established", logging.Client(clientID))

	// Advisory presence mirror
	go s.presence.Track(ctx, clientID)

	// READING <-> DISPATCHING. Frames are handled one at a time; a panic in
	// a handler closes this connection only.
	sock.ReadLoop(func(data []byte) {
		defer func() {
			if rec := recover(); rec != nil {
				log.ErrorContext(ctx, "ws handler - dispatch panicked, closing connection",
					logging.Client(clientID), "panic", rec)
				sock.Close()
			}
		}()
		s.dispatcher.Dispatch(ctx, clientID, data)
	})

	// CLOSING: the one teardown path, then the presence event. DropClient
	// checks identity so a connection replaced by a reconnect does not tear
	// down its successor's state.
	s.hub.DropClient(client)
	cancel()
	s.notifyOffline(sessionCtx, clientID)
	log.Info("ws handler - connection closed", logging.Client(clientID))
}

// notifyOffline announces userOffline to the client's personal room, unless
// a successor connection is already live under the same ID; a reconnect is
// not an offline transition.
func (s *WSHandler) notifyOffline(ctx context.Context, clientID string) {
	if _, ok := s.hub.Registry().Lookup(clientID); ok {
		return
	}
	env, err := domain.NewEnvelope(domain.TypeUserOffline, domain.OfflineEvent{
		UserID:    clientID,
		Timestamp: time.Now(),
	})
	if err != nil {
		return
	}
	s.bcast.BroadcastToRoom(ctx, domain.UserRoomID(clientID), env, clientID)
}
