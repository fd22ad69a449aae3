package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"realtime_chat/internal/config"
	"realtime_chat/internal/handler"
	"realtime_chat/internal/middleware"
	"realtime_chat/internal/queue"
	"realtime_chat/internal/repository"
	"realtime_chat/internal/service"
	"realtime_chat/internal/worker"
	"realtime_chat/internal/ws"
	"realtime_chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	appLogger := logger.New(cfg.Log.Level)

	// Подключение к PostgreSQL
	dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", "error", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(context.Background()); err != nil {
		appLogger.Fatal("Failed to ping database", "error", err)
	}
	appLogger.Info("Database connection established")

	// Подключение к Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		appLogger.Fatal("Failed to connect to Redis", "error", err)
	}
	appLogger.Info("Redis connection established")

	// Подключение к RabbitMQ. Без брокера сервис продолжает работать:
	// уведомления создаются напрямую, минуя очередь.
	var publisher service.EventPublisher
	queueClient, err := queue.NewClient(cfg.RabbitMQ, appLogger)
	if err != nil {
		appLogger.Warn("RabbitMQ unavailable, notifications fall back to direct creation", "error", err)
	} else {
		defer queueClient.Close()
		publisher = queueClient
		appLogger.Info("RabbitMQ connection established")
	}

	// Инициализация репозиториев и сервисов
	repos := repository.NewRepositories(dbPool, rdb, cfg.Cache.MessagesTTL, appLogger)
	services := service.NewServices(repos, publisher, cfg, appLogger)

	// Реестры соединений
	chatHub := ws.NewHub(appLogger)
	notificationHub := ws.NewNotificationHub(appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Фоновая выгрузка исходящих событий уведомлений
	go services.Notification.Run(ctx)

	// Встроенный консьюмер: доставляет уведомления в открытые
	// WebSocket-соединения этого процесса и обслуживает канальные очереди
	if queueClient != nil {
		w := worker.New(repos.Notification, repos.User, notificationHub, services.Email, services.Push, queueClient, queueClient, appLogger)

		if deliveries, err := queueClient.Consume(queue.QueueMessageNotifications, "chat-server"); err != nil {
			appLogger.Error("Failed to start notification consumer", "error", err)
		} else {
			go w.Run(ctx, deliveries)
			appLogger.Info("Notification consumer started", "queue", queue.QueueMessageNotifications)
		}

		if deliveries, err := queueClient.Consume(queue.QueueEmailNotifications, "chat-server-email"); err != nil {
			appLogger.Error("Failed to start email consumer", "error", err)
		} else {
			go w.RunEmail(ctx, deliveries)
		}

		if deliveries, err := queueClient.Consume(queue.QueuePushNotifications, "chat-server-push"); err != nil {
			appLogger.Error("Failed to start push consumer", "error", err)
		} else {
			go w.RunPush(ctx, deliveries)
		}
	}

	// Middleware и handlers
	authMiddleware := middleware.NewAuthMiddleware(services.Auth, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(repos.RateLimit, appLogger)
	handlers := handler.NewHandlers(services, chatHub, notificationHub, appLogger)

	router := setupRouter(handlers, authMiddleware, rateLimitMiddleware, cfg, appLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		appLogger.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exited")
}

func setupRouter(
	handlers *handler.Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler())

	// Health check
	router.GET("/health", handlers.Health.Check)

	// API v1
	v1 := router.Group("/api/v1")
	{
		// Публичные endpoints
		public := v1.Group("/auth")
		{
			public.POST("/register", rateLimitMiddleware.Limit(), handlers.Auth.Register)
			public.POST("/login", rateLimitMiddleware.Limit(), handlers.Auth.Login)
		}

		// Защищенные endpoints
		protected := v1.Group("")
		protected.Use(authMiddleware.RequireAuth())
		{
			protected.GET("/users/me", handlers.Auth.Me)

			rooms := protected.Group("/rooms")
			{
				rooms.POST("", handlers.Room.Create)
				rooms.GET("", handlers.Room.List)
				rooms.GET("/:id", handlers.Room.Get)
				rooms.POST("/:id/join", handlers.Room.Join)
				rooms.POST("/:id/leave", handlers.Room.Leave)
				rooms.POST("/:id/invite", handlers.Room.Invite)
				rooms.GET("/:id/participants", handlers.Room.Participants)
				rooms.GET("/:id/messages", handlers.Message.History)
			}

			protected.GET("/messages/rate-limit", handlers.Message.RateLimit)

			notifications := protected.Group("/notifications")
			{
				notifications.GET("", handlers.Notification.List)
				notifications.GET("/unread-count", handlers.Notification.UnreadCount)
				notifications.POST("/:id/read", handlers.Notification.MarkRead)
				notifications.DELETE("/:id", handlers.Notification.Delete)
			}
		}
	}

	// WebSocket endpoints: токен передается query-параметром
	router.GET("/ws/chat/:id", handlers.ChatWS.HandleChat)
	router.GET("/ws/notifications", handlers.NotificationWS.HandleNotifications)

	return router
}
