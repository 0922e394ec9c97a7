package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/changhyu/cargoro-sub000/internal/app/dispatch"
	"github.com/changhyu/cargoro-sub000/internal/app/server"
	"github.com/changhyu/cargoro-sub000/internal/app/server/handlers"
	"github.com/changhyu/cargoro-sub000/internal/app/worker"
	"github.com/changhyu/cargoro-sub000/internal/config"
	"github.com/changhyu/cargoro-sub000/internal/core/services"
	"github.com/changhyu/cargoro-sub000/internal/hub"
	"github.com/changhyu/cargoro-sub000/internal/platform/logger"
	"github.com/changhyu/cargoro-sub000/internal/platform/telemetry"
	"github.com/changhyu/cargoro-sub000/internal/plugins/postgres"
	redisPlugin "github.com/changhyu/cargoro-sub000/internal/plugins/redis"
)

func main() {
	// Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config
	cfg := config.Load()

	// Logger
	log := logger.NewLogger(*cfg)
	log.Info("starting application", "gateway_id", cfg.Hub.GatewayID)

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
	}
	defer func() {
		log.Info("flushing telemetry...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "err", err)
		}
	}()

	// Infra
	var pdb *sql.DB
	if pdb, err = postgres.New(ctx, *cfg.Postgres); err != nil {
		log.Error("postgres connection failed", "err", err)
		return
	}
	defer pdb.Close()
	log.Info("postgres connected")
	var rdb *redis.Client
	if rdb, err = redisPlugin.NewRedisClient(ctx, *cfg.Redis); err != nil {
		log.Error("redis connection failed", "url", cfg.Redis.URL)
		return
	}
	defer rdb.Close()
	log.Info("redis connected")

	// Adapters
	msgRepo := postgres.NewMessageRepo(pdb)
	notifRepo := postgres.NewNotificationRepo(pdb)
	txManager := postgres.NewTxManager(pdb)
	presStore := redisPlugin.NewRedisPresenceStore(rdb)
	pushQueue := redisPlugin.NewRedisPushQueue(rdb, cfg.Redis.PushStream)

	// Realtime core
	h := hub.New(log)
	bcast := hub.NewBroadcaster(log, h)

	// Services
	tokenSvc := services.NewTokenService(cfg.SecretToken)
	chatSvc := services.NewChatService(log, msgRepo, txManager, bcast)
	notifSvc := services.NewNotificationService(log, notifRepo, txManager, bcast)
	presenceSvc := services.NewPresenceService(log, presStore, cfg.Hub.GatewayID,
		cfg.Hub.PresenceInterval, cfg.Hub.PresenceTTL)

	dispatcher := dispatch.New(log, h.Rooms(), bcast, chatSvc)

	// Background loops
	pushWorker := worker.NewPushWorker(log, pushQueue, notifSvc, bcast, cfg.Worker.PushGroup)
	go func() {
		if err := pushWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("push worker stopped", "err", err)
		}
	}()
	go bcast.RunHeartbeat(ctx, cfg.Hub.HeartbeatInterval)

	// Server
	wsHandler := handlers.NewWSHandler(h, bcast, dispatcher, presenceSvc, cfg.Hub.SendQueueSize)
	pushHandler := handlers.NewPushHandler(log, h, bcast, notifSvc, chatSvc, cfg.Hub.HistoryLimit)
	srv := server.NewServer(log, cfg.Service.Name, cfg.Service.Addr, wsHandler, pushHandler, tokenSvc)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "err", err)
	}
}
