package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"agentdesk-backend/auth-service/handlers"
	_ "agentdesk-backend/docs"
	"agentdesk-backend/shared/config"
	"agentdesk-backend/shared/database"
	"agentdesk-backend/shared/logger"
	"agentdesk-backend/shared/middleware"
	"agentdesk-backend/shared/repository"
	"agentdesk-backend/shared/server"
	"agentdesk-backend/shared/utils/auth"
	"agentdesk-backend/shared/utils/cache"
)

func main() {
	config.LoadConfig()
	cfg := config.GetConfig()

	flush := logger.Init("auth-service")
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
	rateLimiter := middleware.NewRateLimiter()

	authHandler := handlers.NewAuthHandler(repos, tokens, cacheManager, rateLimiter, middleware.LoginRateLimitConfig(cfg), zap.L())

	router := gin.New()
	router.Use(gin.Recovery(), logger.GinLogger())

	handlers.RegisterRoutes(router, authHandler, middleware.AuthMiddleware(tokens, cacheManager))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "auth",
		})
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := server.New(":"+config.ServicePort(cfg.AuthServiceURL, "8001"), router)
	err = server.Run(ctx, srv, func(ctx context.Context) error {
		rateLimiter.RunCleanup(ctx, 30*time.Minute)
		return nil
	})
	if err != nil {
		zap.L().Error("auth service stopped", zap.Error(err))
	}
}
