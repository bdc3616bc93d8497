package handlers

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the auth endpoints. authRequired validates access tokens.
func RegisterRoutes(router gin.IRouter, h *AuthHandler, authRequired gin.HandlerFunc) {
	api := router.Group("/api/auth")
	api.POST("/login", h.Login)
	api.POST("/refresh", h.Refresh)

	secured := api.Group("", authRequired)
	secured.POST("/logout", h.Logout)
	secured.GET("/me", h.Me)
	secured.POST("/change-password", h.ChangePassword)
	secured.GET("/login-history", h.LoginHistory)
}
