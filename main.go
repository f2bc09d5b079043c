package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/staynest/staynest-backend/config"
	"github.com/staynest/staynest-backend/db"
	"github.com/staynest/staynest-backend/handlers"
	"github.com/staynest/staynest-backend/internal/delivery"
	"github.com/staynest/staynest-backend/internal/registry"
	internalws "github.com/staynest/staynest-backend/internal/websocket"
	"github.com/staynest/staynest-backend/logger"
	"github.com/staynest/staynest-backend/router"
	"github.com/staynest/staynest-backend/services"
	"github.com/staynest/staynest-backend/store/postgres"
)

func main() {
	logger.InitLogger()
	defer func() { _ = logger.Close() }()
	log := logger.GetLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalw("Failed to load configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Migrations run before the pool opens so the schema is always current.
	if err := db.RunMigrations(cfg.Database.URL()); err != nil {
		log.Fatalw("Failed to run database migrations", "error", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL())
	if err != nil {
		log.Fatalw("Failed to parse database config", "error", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxOpenConns)

	dbPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Fatalw("Failed to connect to database",
			"error", err,
			"url", logger.MaskConnectionString(cfg.Database.URL()))
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatalw("Database ping failed", "error", err)
	}

	redisOpts := &redis.Options{
		Addr:         cfg.Redis.Address,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}
	if cfg.Redis.UseTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		// The service degrades gracefully without Redis; do not exit.
		log.Warnw("Redis ping failed, cache and rate limiting degraded", "error", err)
	}

	// Live delivery pipeline: registry -> hub -> publisher -> worker pool.
	connRegistry := registry.New()
	hub := internalws.NewHub(connRegistry, internalws.HubConfig{
		PingInterval: time.Duration(cfg.WebSocket.PingIntervalSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WebSocket.WriteTimeoutSeconds) * time.Second,
		SendBuffer:   cfg.WebSocket.SendBuffer,
	})
	publisher := delivery.NewPushPublisher(connRegistry, hub)

	workerPool := services.NewWorkerPool(cfg.WorkerPool)
	workerPool.Start()

	notificationStore := postgres.NewNotificationStore(dbPool)
	messageStore := postgres.NewMessageStore(dbPool)

	notificationService := services.NewNotificationService(
		notificationStore,
		publisher,
		workerPool,
		redisClient,
		time.Duration(cfg.UnreadCache.TTLSeconds)*time.Second,
	)
	messageService := services.NewMessageService(messageStore, notificationService, publisher, workerPool)

	engine := router.SetupRouter(router.Dependencies{
		Config:              cfg,
		RedisClient:         redisClient,
		NotificationHandler: handlers.NewNotificationHandler(notificationService),
		MessageHandler:      handlers.NewMessageHandler(messageService),
		HealthHandler:       handlers.NewHealthHandler(dbPool, redisClient),
		WSHandler:           internalws.NewHandler(hub, &cfg.Server),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infow("Server starting",
			"port", cfg.Server.Port,
			"environment", cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("Server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.WorkerPool.ShutdownTimeoutSeconds)*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown failed", "error", err)
	}
	if err := hub.Shutdown(shutdownCtx); err != nil {
		log.Errorw("WebSocket hub shutdown failed", "error", err)
	}
	if err := workerPool.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Worker pool shutdown failed", "error", err)
	}

	log.Info("Server stopped")
	os.Exit(0)
}
