package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"realtime_chat/internal/config"
	"realtime_chat/internal/queue"
	"realtime_chat/internal/repository"
	"realtime_chat/internal/service"
	"realtime_chat/internal/worker"
	"realtime_chat/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Отдельный процесс обработки очереди уведомлений. Не держит
// WebSocket-соединений, поэтому пишет записи и шлет email/push,
// а доставку в сокеты оставляет API-процессу.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Log.Level)

	dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", "error", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(context.Background()); err != nil {
		appLogger.Fatal("Failed to ping database", "error", err)
	}
	appLogger.Info("Database connection established")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		appLogger.Fatal("Failed to connect to Redis", "error", err)
	}

	queueClient, err := queue.NewClient(cfg.RabbitMQ, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to RabbitMQ", "error", err)
	}
	defer queueClient.Close()
	appLogger.Info("RabbitMQ connection established")

	repos := repository.NewRepositories(dbPool, rdb, cfg.Cache.MessagesTTL, appLogger)

	w := worker.New(
		repos.Notification,
		repos.User,
		worker.NopPusher{},
		service.NewEmailService(appLogger),
		service.NewPushService(appLogger),
		queueClient,
		queueClient,
		appLogger,
	)

	deliveries, err := queueClient.Consume(queue.QueueMessageNotifications, "notification-worker")
	if err != nil {
		appLogger.Fatal("Failed to start consuming", "error", err)
	}
	emailDeliveries, err := queueClient.Consume(queue.QueueEmailNotifications, "notification-worker-email")
	if err != nil {
		appLogger.Fatal("Failed to start consuming", "error", err)
	}
	pushDeliveries, err := queueClient.Consume(queue.QueuePushNotifications, "notification-worker-push")
	if err != nil {
		appLogger.Fatal("Failed to start consuming", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		appLogger.Info("Shutting down worker...")
		cancel()
	}()

	go w.RunEmail(ctx, emailDeliveries)
	go w.RunPush(ctx, pushDeliveries)

	appLogger.Info("Notification worker started", "queue", queue.QueueMessageNotifications)
	w.Run(ctx, deliveries)
	appLogger.Info("Worker exited")
}
