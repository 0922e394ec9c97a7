package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/changhyu/cargoro-sub000/internal/app/server/handlers"
	"github.com/changhyu/cargoro-sub000/internal/core/services"
	"github.com/changhyu/cargoro-sub000/pkg/middleware"
)

type Server struct {
	log         *slog.Logger
	mux         *http.ServeMux
	addr        string
	appName     string
	wsHandler   *handlers.WSHandler
	pushHandler *handlers.PushHandler
	tokenSvc    *services.TokenService
	httpSrv     *http.Server
}

func NewServer(
	log *slog.Logger,
	appName string,
	addr string,
	wsHandler *handlers.WSHandler,
	pushHandler *handlers.PushHandler,
	tokenSvc *services.TokenService,
) *Server {
	s := &Server{
		log:         log,
		mux:         http.NewServeMux(),
		addr:        addr,
		appName:     appName,
		wsHandler:   wsHandler,
		pushHandler: pushHandler,
		tokenSvc:    tokenSvc,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	auth := middleware.AuthMiddleware(s.tokenSvc)

	// Public
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Realtime. The middleware extracts the 'sub' from JWT and puts it in
	// Context; the handler requires it to match the path client ID.
	s.mux.Handle("GET /ws/{clientId}", auth(http.HandlerFunc(s.wsHandler.Handler)))

	// Server-side push API, called by the backend services.
	s.mux.Handle("POST /api/push/clients/{clientId}", auth(http.HandlerFunc(s.pushHandler.PushToClient)))
	s.mux.Handle("POST /api/push/rooms/{roomId}", auth(http.HandlerFunc(s.pushHandler.PushToRoom)))
	s.mux.Handle("POST /api/push/broadcast", auth(http.HandlerFunc(s.pushHandler.Broadcast)))

	// Introspection
	s.mux.Handle("GET /api/presence", auth(http.HandlerFunc(s.pushHandler.Presence)))
	s.mux.Handle("GET /api/rooms", auth(http.HandlerFunc(s.pushHandler.Rooms)))
	s.mux.Handle("GET /api/rooms/{roomId}/members", auth(http.HandlerFunc(s.pushHandler.RoomMembers)))
	s.mux.Handle("GET /api/rooms/{roomId}/messages", auth(http.HandlerFunc(s.pushHandler.RoomMessages)))
	s.mux.Handle("DELETE /api/clients/{clientId}", auth(http.HandlerFunc(s.pushHandler.KickClient)))
}

func (s *Server) Start() error {
	chain := middleware.RequestLogger(s.log)(
		middleware.TracerMiddleware(s.appName)(s.mux),
	)
	s.httpSrv = &http.Server{
		Addr:    s.addr,
		Handler: chain,
		// No global read/write timeouts: they would kill long-lived
		// WebSocket sessions. Only the header read is bounded.
		ReadHeaderTimeout: 15 * time.Second,
	}

	s.log.Info("server - start - listening", "addr", s.addr)
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
