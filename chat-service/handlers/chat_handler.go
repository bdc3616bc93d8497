package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"agentdesk-backend/chat-service/services"
	"agentdesk-backend/shared/access"
	"agentdesk-backend/shared/middleware"
	"agentdesk-backend/shared/utils/response"
)

type ChatHandler struct {
	chat *services.ChatService
	hub  *services.Hub
	log  *zap.Logger
}

func NewChatHandler(chat *services.ChatService, hub *services.Hub, log *zap.Logger) *ChatHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatHandler{chat: chat, hub: hub, log: log}
}

func principal(c *gin.Context) (access.Principal, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "Unauthorized", "Authentication required")
	}
	return p, ok
}

func conversationID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid conversation ID format", err.Error())
		return uuid.Nil, false
	}
	return id, true
}

// StartConversation opens a conversation
// @Summary Start conversation
// @Description Uses the given agent or the caller's preferred agent and stores its welcome message
// @Tags chat
// @Accept json
// @Produce json
// @Param request body services.StartConversationRequest false "Agent to chat with"
// @Security BearerAuth
// @Success 201 {object} services.Conversation
// @Failure 404 {object} map[string]string "Agent not found"
// @Router /chat/conversations [post]
func (h *ChatHandler) StartConversation(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req services.StartConversationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}

	conv, err := h.chat.StartConversation(c.Request.Context(), p, req.AgentID)
	if err != nil {
		response.ServiceError(c, err, "Agent")
		return
	}
	response.Created(c, conv, "Conversation started")
}

// GetConversations lists the caller's conversations
// @Summary Get conversations
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.ConversationSummary
// @Router /chat/conversations [get]
func (h *ChatHandler) GetConversations(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	conversations, err := h.chat.Conversations(c.Request.Context(), p)
	if err != nil {
		response.ServiceError(c, err, "Conversation")
		return
	}
	response.OK(c, conversations)
}

// GetMessages returns the history of a conversation
// @Summary Get conversation messages
// @Tags chat
// @Produce json
// @Param id path string true "Conversation ID" format(uuid)
// @Security BearerAuth
// @Success 200 {array} models.ChatMessage
// @Failure 404 {object} map[string]string "Conversation not found"
// @Router /chat/conversations/{id}/messages [get]
func (h *ChatHandler) GetMessages(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := conversationID(c)
	if !ok {
		return
	}

	messages, err := h.chat.History(c.Request.Context(), p, id)
	if err != nil {
		response.ServiceError(c, err, "Conversation")
		return
	}
	response.OK(c, messages)
}

// DeleteConversation removes the caller's conversation
// @Summary Delete conversation
// @Tags chat
// @Produce json
// @Param id path string true "Conversation ID" format(uuid)
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string "Conversation not found"
// @Router /chat/conversations/{id} [delete]
func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := conversationID(c)
	if !ok {
		return
	}

	if err := h.chat.DeleteConversation(c.Request.Context(), p, id); err != nil {
		response.ServiceError(c, err, "Conversation")
		return
	}
	response.Message(c, "Conversation deleted successfully", nil)
}

// SendMessage relays a message to the agent webhook
// @Summary Send message
// @Description Stores the message, forwards it to the webhook and stores the reply.
// @Description Status events are pushed on /ws/chat while the request runs.
// @Tags chat
// @Accept json
// @Produce json
// @Param request body services.SendMessageRequest true "Message"
// @Security BearerAuth
// @Success 200 {object} services.SendMessageResult
// @Failure 400 {object} map[string]string "Validation failed"
// @Failure 404 {object} map[string]string "Agent not found"
// @Failure 502 {object} map[string]interface{} "Webhook failed"
// @Router /chat/messages [post]
func (h *ChatHandler) SendMessage(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req services.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.chat.SendMessage(c.Request.Context(), p, req)
	if err != nil {
		var delivery *services.DeliveryError
		if errors.As(err, &delivery) {
			h.log.Warn("webhook delivery failed",
				zap.String("user_id", p.UserID.String()),
				zap.String("conversation_id", delivery.UserMessage.ConversationID.String()),
				zap.Error(delivery.Err),
			)
			c.JSON(http.StatusBadGateway, gin.H{
				"error":   "Webhook failed",
				"message": delivery.Message,
				"data":    delivery.UserMessage,
			})
			return
		}
		response.ServiceError(c, err, "Agent")
		return
	}
	response.OK(c, result)
}

// Connect upgrades to the status websocket
// @Summary Chat status websocket
// @Description Pushes status events for the caller's messages. Send {"type":"ping"} to receive a pong.
// @Tags chat
// @Param token query string false "Access token when the Authorization header cannot be set"
// @Security BearerAuth
// @Router /ws/chat [get]
func (h *ChatHandler) Connect(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	if err := h.hub.Serve(c.Writer, c.Request, p.UserID); err != nil {
		h.log.Warn("websocket upgrade failed", zap.String("user_id", p.UserID.String()), zap.Error(err))
	}
}
