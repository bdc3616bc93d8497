package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"agentdesk-backend/agent-service/handlers"
	_ "agentdesk-backend/docs"
	"agentdesk-backend/shared/config"
	"agentdesk-backend/shared/database"
	"agentdesk-backend/shared/logger"
	"agentdesk-backend/shared/middleware"
	"agentdesk-backend/shared/repository"
	"agentdesk-backend/shared/server"
	"agentdesk-backend/shared/services"
	"agentdesk-backend/shared/storage"
	"agentdesk-backend/shared/utils/auth"
	"agentdesk-backend/shared/utils/cache"
)

func main() {
	config.LoadConfig()
	cfg := config.GetConfig()

	flush := logger.Init("agent-service")
	defer flush()

	ctx := context.Background()

	// Initialize MinIO service
	minioService, err := storage.NewMinIOService(ctx, cfg)
	if err != nil {
		zap.L().Fatal("failed to initialize MinIO service", zap.Error(err))
	}

	if err := database.InitDatabase(); err != nil {
		zap.L().Fatal("failed to initialize database", zap.Error(err))
	}
	defer database.CloseDatabase()

	cacheManager, err := cache.NewCacheManager(ctx, cfg)
	if err != nil {
		zap.L().Fatal("failed to initialize redis", zap.Error(err))
	}
	defer cacheManager.Close()

	repos := repository.NewGorm(database.GetDB())
	tokens := auth.NewTokenManagerFromConfig(cfg)

	agents := services.NewAgentService(repos, cacheManager, minioService, services.AvatarPolicy{
		MaxSize:     cfg.AvatarMaxSizeBytes(),
		AllowedExts: cfg.AvatarAllowedTypes(),
	}, zap.L())

	router := gin.New()
	router.MaxMultipartMemory = cfg.AvatarMaxSizeBytes()
	router.Use(gin.Recovery(), logger.GinLogger())

	handlers.RegisterRoutes(router, handlers.NewAgentHandler(agents), middleware.AuthMiddleware(tokens, cacheManager))

	router.GET("/health", func(c *gin.Context) {
		code, status, storageStatus := http.StatusOK, "healthy", "connected"
		if err := minioService.Ping(c.Request.Context()); err != nil {
			code, status, storageStatus = http.StatusServiceUnavailable, "degraded", "unreachable"
		}
		c.JSON(code, gin.H{
			"status":  status,
			"service": "agent",
			"storage": storageStatus,
		})
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := server.New(":"+config.ServicePort(cfg.AgentServiceURL, "8003"), router)
	if err := server.Run(ctx, srv); err != nil {
		zap.L().Error("agent service stopped", zap.Error(err))
	}
}
