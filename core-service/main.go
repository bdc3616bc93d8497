package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"agentdesk-backend/core-service/handlers"
	_ "agentdesk-backend/docs"
	"agentdesk-backend/shared/config"
	"agentdesk-backend/shared/database"
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

	flush := logger.Init("core-service")
	defer flush()

	if err := database.InitDatabase(); err != nil {
		zap.L().Fatal("failed to initialize database", zap.Error(err))
	}
	defer database.CloseDatabase()

	ctx := context.Background()
	cacheManager, err := cache.NewCacheManager(ctx, cfg)
	if err != nil {
		zap.L().Fatal("failed to initialize redis", zap.Error(err))
	}
	defer cacheManager.Close()

	repos := repository.NewGorm(database.GetDB())
	tokens := auth.NewTokenManagerFromConfig(cfg)

	// Settings only resolve agents; avatars are served by the agent service.
	agents := services.NewAgentService(repos, cacheManager, nil, services.AvatarPolicy{}, zap.L())

	router := gin.New()
	router.Use(gin.Recovery(), logger.GinLogger())

	handlers.RegisterRoutes(router, handlers.Handlers{
		Organizations: handlers.NewOrganizationHandler(repos, cacheManager, zap.L()),
		Shops:         handlers.NewShopHandler(repos, zap.L()),
		Users:         handlers.NewUserHandler(repos, cacheManager, zap.L()),
		Settings:      handlers.NewSettingsHandler(services.NewSettingsService(repos, agents, cacheManager, zap.L())),
	}, middleware.AuthMiddleware(tokens, cacheManager))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "core",
		})
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := server.New(":"+config.ServicePort(cfg.CoreServiceURL, "8002"), router)
	if err := server.Run(ctx, srv); err != nil {
		zap.L().Error("core service stopped", zap.Error(err))
	}
}
