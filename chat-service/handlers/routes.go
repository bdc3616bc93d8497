package handlers

import "github.com/gin-gonic/gin"

func RegisterRoutes(router gin.IRouter, h *ChatHandler, authRequired gin.HandlerFunc) {
	chat := router.Group("/api/chat", authRequired)
	{
		chat.POST("/conversations", h.StartConversation)
		chat.GET("/conversations", h.GetConversations)
		chat.GET("/conversations/:id/messages", h.GetMessages)
		chat.DELETE("/conversations/:id", h.DeleteConversation)
		chat.POST("/messages", h.SendMessage)
	}

	router.GET("/ws/chat", authRequired, h.Connect)
}
