package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	gatewaymiddleware "agentdesk-backend/api-gateway/middleware"
	"agentdesk-backend/api-gateway/routes"
	_ "agentdesk-backend/docs"
	"agentdesk-backend/shared/config"
	"agentdesk-backend/shared/logger"
	"agentdesk-backend/shared/middleware"
	"agentdesk-backend/shared/server"
	"agentdesk-backend/shared/utils/auth"
	"agentdesk-backend/shared/utils/cache"
)

func main() {
	config.LoadConfig()
	cfg := config.GetConfig()

	flush := logger.Init("api-gateway")
	defer flush()

	ctx := context.Background()

	// Token blacklist lookups only.
	cacheManager, err := cache.NewCacheManager(ctx, cfg)
	if err != nil {
		zap.L().Fatal("failed to initialize redis", zap.Error(err))
	}
	defer cacheManager.Close()

	proxy, err := routes.NewProxy(routes.DefaultRoutes, routes.ServiceURLs(cfg), zap.L())
	if err != nil {
		zap.L().Fatal("invalid service configuration", zap.Error(err))
	}

	tokens := auth.NewTokenManagerFromConfig(cfg)
	rateLimiter := middleware.NewRateLimiter()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg)))
	router.Use(gatewaymiddleware.RequestID())
	router.Use(gatewaymiddleware.UnifiedResponseMiddleware(zap.L()))
	router.Use(rateLimiter.RateLimitMiddleware(middleware.GlobalRateLimitConfig(cfg)))
	router.Use(gatewaymiddleware.RequireAuthentication(tokens, cacheManager))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "gateway"})
	})

	router.GET("/swagger/*any", func(c *gin.Context) {
		if gin.Mode() == gin.ReleaseMode {
			c.JSON(http.StatusNotFound, gin.H{"message": "Swagger documentation not available in production"})
			return
		}
		ginSwagger.WrapHandler(swaggerFiles.Handler)(c)
	})

	proxy.Register(router)

	srv := server.New(":"+config.ServicePort(cfg.APIGatewayURL, "8000"), router)
	err = server.Run(ctx, srv, func(ctx context.Context) error {
		rateLimiter.RunCleanup(ctx, 5*time.Minute)
		return nil
	})
	if err != nil {
		zap.L().Error("api gateway stopped", zap.Error(err))
	}
}

func corsConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.DefaultConfig()
	if origins := cfg.FrontendOrigins(); len(origins) > 0 {
		corsCfg.AllowOrigins = origins
		corsCfg.AllowCredentials = true
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AddAllowHeaders("Authorization", gatewaymiddleware.RequestIDHeader)
	corsCfg.AddExposeHeaders(gatewaymiddleware.RequestIDHeader, "Retry-After")
	corsCfg.MaxAge = 12 * time.Hour
	return corsCfg
}
