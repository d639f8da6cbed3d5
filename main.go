package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"roomchat-service/internal/auth"
	"roomchat-service/internal/cache"
	"roomchat-service/internal/config"
	"roomchat-service/internal/db"
	"roomchat-service/internal/handlers"
	"roomchat-service/internal/middleware"
	"roomchat-service/internal/observability"
	"roomchat-service/internal/rabbitmq"
	"roomchat-service/internal/repositories"
	"roomchat-service/internal/session"
	"roomchat-service/internal/telemetry"
	"roomchat-service/internal/ws"
)

const serviceName = "roomchat-service"

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.OTLPEndpoint, serviceName, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("event publisher mode=%s", rabbitmq.PublisherMode(publisher))

	if eventPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange); err == nil {
		observability.SetPublisher(eventPublisher)
		defer eventPublisher.Close()
	}

	audit := telemetry.NewAuditEmitter(publisher, "audit.roomchat", serviceName, cfg.Environment)

	var userRepo repositories.UserRepository = repositories.NewUserRepo(database)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		userRepo = cache.NewCachedUserRepo(userRepo, redisClient, 0)
		log.Printf("user lookups cached via redis addr=%s", cfg.RedisAddr)
	}

	roomRepo := repositories.NewRoomRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	registry := session.NewRegistry()
	hub := ws.NewHub()
	coordinator := ws.NewCoordinator(registry, hub, tokens, roomRepo, userRepo, messageRepo, cfg.FanoutMode, cfg.StoreTimeout)

	authHandler := handlers.NewAuthHandler(userRepo, tokens, audit)
	roomHandler := handlers.NewRoomHandler(roomRepo, audit)
	messageHandler := handlers.NewMessageHandler(roomRepo, messageRepo, userRepo, coordinator, audit)
	wsHandler := ws.NewHandler(hub, registry, coordinator, string(cfg.FanoutMode))

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(tokens)

	router.POST("/api/users/register", authHandler.Register)
	router.POST("/api/users/login", authHandler.Login)
	router.GET("/api/users/profile", authMiddleware, authHandler.Profile)
	router.GET("/api/users/all", authMiddleware, authHandler.ListUsers)

	router.POST("/api/rooms", authMiddleware, roomHandler.CreateRoom)
	router.GET("/api/rooms", authMiddleware, roomHandler.ListRooms)
	router.GET("/api/rooms/:room_id", authMiddleware, roomHandler.GetRoom)
	router.POST("/api/rooms/:room_id/participants", authMiddleware, roomHandler.AddParticipant)
	router.DELETE("/api/rooms/:room_id", authMiddleware, roomHandler.DeleteRoom)

	router.POST("/api/messages", authMiddleware, messageHandler.SendMessage)
	router.GET("/api/messages/rooms/:room_id", authMiddleware, messageHandler.ListRoomMessages)
	router.GET("/api/messages/all", authMiddleware, messageHandler.ListAllMessages)

	router.GET("/ws", wsHandler.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("listening on :%s fanout_mode=%s", cfg.Port, cfg.FanoutMode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
