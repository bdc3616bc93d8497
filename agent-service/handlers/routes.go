package handlers

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the agent endpoints behind authRequired.
func RegisterRoutes(router gin.IRouter, h *AgentHandler, authRequired gin.HandlerFunc) {
	api := router.Group("/api/agents", authRequired)

	api.GET("", h.GetAgents)
	api.POST("", h.CreateAgent)
	api.GET("/preferred", h.GetPreferredAgent)
	api.GET("/:id", h.GetAgent)
	api.PUT("/:id", h.UpdateAgent)
	api.DELETE("/:id", h.DeleteAgent)
	api.PUT("/:id/default", h.SetDefaultAgent)
	api.POST("/:id/duplicate", h.DuplicateAgent)
	api.POST("/:id/avatar", h.UploadAvatar)
	api.GET("/:id/avatar", h.GetAvatar)
}
