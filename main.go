package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"linkup/internal/authapi"
	"linkup/internal/config"
	"linkup/internal/conversation"
	"linkup/internal/db"
	"linkup/internal/handlers"
	"linkup/internal/middleware"
	"linkup/internal/models"
	"linkup/internal/observability"
	"linkup/internal/rabbitmq"
	"linkup/internal/repositories"
	"linkup/internal/telemetry"
	"linkup/internal/ws"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	observability.SetupLogger(cfg.IsDev())
	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracing, err := observability.InitTracing(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init tracing")
	}

	database, err := db.Connect(cfg.SessionDBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open session db")
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Info().
		Str("mode", rabbitmq.PublisherMode(publisher)).
		Str("reason", rabbitmq.PublisherNoopReason(publisher)).
		Msg("event publisher ready")
	observability.SetPublisher(publisher)
	auditEmitter := telemetry.NewAuditEmitter(publisher, observability.AuditRoutingKey, cfg.ServiceName, cfg.Env)

	authClient := authapi.NewClient(cfg.AuthAPIURL, cfg.AuthAPITimeout)
	sessionRepo := repositories.NewSessionRepo(database)

	hub := ws.NewHub()
	recordEvent := observability.ChatEventRecorder(2 * time.Second)
	registry := conversation.NewRegistry(conversation.Options{
		DeliveredAfter: cfg.DeliveredAfter,
		ReadAfter:      cfg.ReadAfter,
		Listener: func(ev models.ChatEvent) {
			hub.BroadcastChatEvent(ev)
			recordEvent(ev)
		},
	})
	registry.OnOpen(func(*conversation.Store) { observability.IncOpenConversations() })
	registry.OnClose(func(*conversation.Store) { observability.DecOpenConversations() })

	chatHandler := handlers.NewChatHandler(registry, hub)
	sessionHandler := handlers.NewSessionHandler(authClient, sessionRepo, auditEmitter)
	chatWS := ws.NewChatWebSocketHandler(hub, registry, authClient)

	router := gin.New()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(observability.RequestLogger())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	session := router.Group("/api/session")
	session.POST("/login", sessionHandler.Login)
	session.POST("/register", sessionHandler.Register)
	session.GET("", sessionHandler.Status)
	session.DELETE("", sessionHandler.Logout)

	authMiddleware := middleware.AuthMiddleware(authClient)
	sendLimit := middleware.RateLimit(cfg.SendRPS, cfg.SendBurst)

	chats := router.Group("/chats", authMiddleware)
	chats.POST("", chatHandler.OpenChat)
	chats.GET("", chatHandler.ListChats)
	chats.DELETE("/:chat_id", chatHandler.CloseChat)
	chats.GET("/:chat_id/messages", chatHandler.GetMessages)
	chats.POST("/:chat_id/messages", sendLimit, chatHandler.SendMessage)
	chats.DELETE("/:chat_id/messages", chatHandler.ClearMessages)
	chats.PATCH("/:chat_id/messages/:message_id", chatHandler.EditMessage)
	chats.DELETE("/:chat_id/messages/:message_id", chatHandler.DeleteMessage)
	chats.POST("/:chat_id/messages/:message_id/reactions", chatHandler.ToggleReaction)
	chats.POST("/:chat_id/messages/:message_id/pin", chatHandler.TogglePin)
	chats.POST("/:chat_id/messages/:message_id/star", chatHandler.ToggleStar)
	chats.POST("/:chat_id/messages/:message_id/flag", chatHandler.ToggleFlag)
	chats.PUT("/:chat_id/filter", chatHandler.SetFilter)
	chats.GET("/:chat_id/attachments", chatHandler.ListAttachments)
	chats.GET("/:chat_id/participants", chatHandler.GetParticipants)
	chats.PUT("/:chat_id/participants", chatHandler.SetParticipants)
	chats.PUT("/:chat_id/participants/:participant_id/presence", chatHandler.SetPresence)

	router.GET("/ws/chats/:chat_id", chatWS.Handle)

	handlers.RegisterDebugRoutes(router, auditEmitter, cfg.DebugRoutes)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("linkup listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	registry.CloseAll()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}
}
