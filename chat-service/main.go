package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"agentdesk-backend/chat-service/handlers"
	chatservices "agentdesk-backend/chat-service/services"
	_ "agentdesk-backend/docs"
	"agentdesk-backend/shared/clients"
	"agentdesk-backend/shared/config"
	"agentdesk-backend/shared/database"
	"agentdesk-backend/shared/events"
	"agentdesk-backend/shared/logger"
	"agentdesk-backend/shared/middleware"
	"agentdesk-backend/shared/repository"
	"agentdesk-backend/shared/server"
	"agentdesk-backend/shared/services"
	"agentdesk-backend/shared/utils/auth"
	"agentdesk-backend/shared/utils/cache"
)

func main() {
	config.LoadConfig()
	cfg := config.GetConfig()

	flush := logger.Init("chat-service")
	defer flush()

	ctx := context.Background()

	if err := database.InitDatabase(); err != nil {
		zap.L().Fatal("failed to initialize database", zap.Error(err))
	}
	defer database.CloseDatabase()

	cacheManager, err := cache.NewCacheManager(ctx, cfg)
	if err != nil {
		zap.L().Fatal("failed to initialize redis", zap.Error(err))
	}
	defer cacheManager.Close()

	var publisher events.Publisher = events.NoopPublisher{}
	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		publisher = events.NewKafkaPublisher(brokers, cfg.KafkaChatTopic, zap.L())
		zap.L().Info("publishing chat events", zap.Strings("brokers", brokers), zap.String("topic", cfg.KafkaChatTopic))
	}
	defer publisher.Close()

	repos := repository.NewGorm(database.GetDB())
	tokens := auth.NewTokenManagerFromConfig(cfg)
	hub := chatservices.NewHub(cfg.FrontendOrigins(), zap.L())

	// Agents are only resolved here; avatars are served by the agent service.
	agents := services.NewAgentService(repos, cacheManager, nil, services.AvatarPolicy{}, zap.L())
	chat := chatservices.NewChatService(repos, agents, clients.NewWebhookClient(cfg, zap.L()), hub, publisher, cfg.HistoryLimit(), zap.L())

	router := gin.New()
	router.Use(gin.Recovery(), logger.GinLogger())

	handlers.RegisterRoutes(router, handlers.NewChatHandler(chat, hub, zap.L()), middleware.AuthMiddleware(tokens, cacheManager))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "chat",
			"webhook": cfg.ChatWebhookURL,
		})
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := server.New(":"+config.ServicePort(cfg.ChatServiceURL, "8004"), router)
	if err := server.Run(ctx, srv, hub.Run); err != nil {
		zap.L().Error("chat service stopped", zap.Error(err))
	}
}
