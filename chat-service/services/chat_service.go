package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agentdesk-backend/shared/access"
	"agentdesk-backend/shared/clients"
	"agentdesk-backend/shared/database/models"
	"agentdesk-backend/shared/events"
	"agentdesk-backend/shared/repository"
	agents "agentdesk-backend/shared/services"
)

const (
	maxMessageLength       = 4000
	defaultDeliveryFailure = "The assistant is unavailable right now. Please try again."
)

// WebhookSender is satisfied by clients.WebhookClient.
type WebhookSender interface {
	Send(ctx context.Context, url string, req clients.WebhookRequest) (*clients.WebhookResponse, error)
}

// StatusNotifier is satisfied by Hub.
type StatusNotifier interface {
	Notify(userID uuid.UUID, event StatusEvent)
}

// DeliveryError reports a message the webhook did not answer.
type DeliveryError struct {
	Message     string
	UserMessage *models.ChatMessage
	Err         error
}

func (e *DeliveryError) Error() string {
	return e.Err.Error()
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

type SendMessageRequest struct {
	ConversationID *uuid.UUID `json:"conversation_id"`
	AgentID        *uuid.UUID `json:"agent_id"`
	Message        string     `json:"message" binding:"required" example:"Do you ship to Canada?"`
}

type SendMessageResult struct {
	ConversationID uuid.UUID           `json:"conversation_id"`
	UserMessage    *models.ChatMessage `json:"user_message"`
	Reply          *models.ChatMessage `json:"reply"`
}

type StartConversationRequest struct {
	AgentID *uuid.UUID `json:"agent_id"`
}

type Conversation struct {
	ConversationID uuid.UUID            `json:"conversation_id"`
	Agent          *models.Agent        `json:"agent"`
	Messages       []models.ChatMessage `json:"messages"`
}

type ChatService struct {
	chat          repository.ChatRepository
	organizations repository.OrganizationRepository
	agents        *agents.AgentService
	webhook       WebhookSender
	notifier      StatusNotifier
	publisher     events.Publisher
	historyLimit  int
	log           *zap.Logger
}

func NewChatService(repos repository.Repositories, agentService *agents.AgentService, webhook WebhookSender, notifier StatusNotifier, publisher events.Publisher, historyLimit int, log *zap.Logger) *ChatService {
	if log == nil {
		log = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &ChatService{
		chat:          repos.Chat,
		organizations: repos.Organizations,
		agents:        agentService,
		webhook:       webhook,
		notifier:      notifier,
		publisher:     publisher,
		historyLimit:  historyLimit,
		log:           log,
	}
}

// StartConversation opens a conversation with the welcome message of the agent.
func (s *ChatService) StartConversation(ctx context.Context, p access.Principal, agentID *uuid.UUID) (*Conversation, error) {
	agent, err := s.resolveAgent(ctx, p, agentID, nil)
	if err != nil {
		return nil, err
	}

	conv := &Conversation{ConversationID: uuid.New(), Agent: agent}
	welcome := strings.TrimSpace(agent.WelcomeMessage)
	if welcome == "" {
		welcome = models.DefaultAgentWelcomeMessage
	}

	msg := &models.ChatMessage{
		ConversationID: conv.ConversationID,
		UserID:         p.UserID,
		AgentID:        agent.ID,
		Role:           models.ChatRoleAssistant,
		Content:        welcome,
		Status:         models.MessageStatusDelivered,
	}
	if err := s.chat.Create(ctx, msg); err != nil {
		return nil, err
	}
	conv.Messages = []models.ChatMessage{*msg}
	return conv, nil
}

func (s *ChatService) Conversations(ctx context.Context, p access.Principal) ([]models.ConversationSummary, error) {
	return s.chat.Conversations(ctx, p.UserID)
}

// History returns the caller's messages of one conversation, oldest first.
func (s *ChatService) History(ctx context.Context, p access.Principal, conversationID uuid.UUID) ([]models.ChatMessage, error) {
	messages, err := s.chat.History(ctx, p.UserID, conversationID, 0)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, agents.ErrNotFound
	}
	return messages, nil
}

func (s *ChatService) DeleteConversation(ctx context.Context, p access.Principal, conversationID uuid.UUID) error {
	deleted, err := s.chat.DeleteConversation(ctx, p.UserID, conversationID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return agents.ErrNotFound
	}
	s.log.Info("conversation deleted", zap.String("conversation_id", conversationID.String()), zap.Int64("messages", deleted))
	return nil
}

// SendMessage stores the user message, relays it to the webhook and stores the reply.
// Status events follow sending, processing, then receiving and idle, or error.
func (s *ChatService) SendMessage(ctx context.Context, p access.Principal, req SendMessageRequest) (*SendMessageResult, error) {
	content := strings.TrimSpace(req.Message)
	if content == "" {
		return nil, &agents.ValidationError{Field: "message", Message: "cannot be empty"}
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return nil, &agents.ValidationError{Field: "message", Message: "is too long"}
	}

	conversationID := uuid.New()
	var previous []models.ChatMessage
	if req.ConversationID != nil {
		conversationID = *req.ConversationID
		history, err := s.chat.History(ctx, p.UserID, conversationID, s.historyLimit)
		if err != nil {
			return nil, err
		}
		previous = history
	}

	agent, err := s.resolveAgent(ctx, p, req.AgentID, previous)
	if err != nil {
		return nil, err
	}

	userMsg := &models.ChatMessage{
		ConversationID: conversationID,
		UserID:         p.UserID,
		AgentID:        agent.ID,
		Role:           models.ChatRoleUser,
		Content:        content,
		Status:         models.MessageStatusSent,
	}
	if err := s.chat.Create(ctx, userMsg); err != nil {
		return nil, err
	}

	machine := NewStatusMachine()
	s.push(p.UserID, conversationID, machine, StatusSending, "")
	s.publish(ctx, events.TypeMessageSent, p, userMsg, "")
	s.push(p.UserID, conversationID, machine, StatusProcessing, "")

	resp, err := s.webhook.Send(ctx, s.webhookURL(ctx, p), s.buildRequest(p, agent, userMsg, previous))
	if err != nil {
		return nil, s.fail(ctx, p, machine, userMsg, resp, err)
	}

	s.push(p.UserID, conversationID, machine, StatusReceiving, "")

	if err := s.chat.UpdateStatus(ctx, userMsg.ID, models.MessageStatusDelivered); err != nil {
		s.log.Warn("failed to mark message delivered", zap.String("message_id", userMsg.ID.String()), zap.Error(err))
	}
	userMsg.Status = models.MessageStatusDelivered

	reply := &models.ChatMessage{
		ConversationID: conversationID,
		UserID:         p.UserID,
		AgentID:        agent.ID,
		Role:           models.ChatRoleAssistant,
		Content:        resp.Message,
		Status:         models.MessageStatusDelivered,
	}
	if err := s.chat.Create(ctx, reply); err != nil {
		s.push(p.UserID, conversationID, machine, StatusError, "")
		return nil, err
	}

	s.publish(ctx, events.TypeMessageReplied, p, reply, "")
	s.push(p.UserID, conversationID, machine, StatusIdle, "")

	return &SendMessageResult{ConversationID: conversationID, UserMessage: userMsg, Reply: reply}, nil
}

func (s *ChatService) fail(ctx context.Context, p access.Principal, machine *StatusMachine, userMsg *models.ChatMessage, resp *clients.WebhookResponse, cause error) error {
	message := defaultDeliveryFailure
	if resp != nil && strings.TrimSpace(resp.Message) != "" {
		message = resp.Message
	}

	if err := s.chat.UpdateStatus(ctx, userMsg.ID, models.MessageStatusFailed); err != nil {
		s.log.Warn("failed to mark message failed", zap.String("message_id", userMsg.ID.String()), zap.Error(err))
	}
	userMsg.Status = models.MessageStatusFailed

	s.push(p.UserID, userMsg.ConversationID, machine, StatusError, message)
	s.publish(ctx, events.TypeMessageFailed, p, userMsg, cause.Error())

	return &DeliveryError{Message: message, UserMessage: userMsg, Err: cause}
}

// resolveAgent picks the explicit agent, else the agent of the conversation, else
// the preferred agent. The agent must be usable by p.
func (s *ChatService) resolveAgent(ctx context.Context, p access.Principal, agentID *uuid.UUID, history []models.ChatMessage) (*models.Agent, error) {
	if agentID != nil {
		return s.agents.GetUsable(ctx, p, *agentID)
	}
	if len(history) > 0 {
		agent, err := s.agents.GetUsable(ctx, p, history[len(history)-1].AgentID)
		if err == nil || !errors.Is(err, agents.ErrNotFound) {
			return agent, err
		}
	}
	return s.agents.Preferred(ctx, p)
}

func (s *ChatService) webhookURL(ctx context.Context, p access.Principal) string {
	if p.OrganizationID == nil {
		return ""
	}
	org, err := s.organizations.Get(ctx, *p.OrganizationID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("failed to load organization webhook", zap.String("organization_id", p.OrganizationID.String()), zap.Error(err))
		}
		return ""
	}
	if org.WebhookURL == nil {
		return ""
	}
	return *org.WebhookURL
}

func (s *ChatService) buildRequest(p access.Principal, agent *models.Agent, msg *models.ChatMessage, history []models.ChatMessage) clients.WebhookRequest {
	req := clients.WebhookRequest{
		Message:        msg.Content,
		ConversationID: msg.ConversationID.String(),
		User: clients.WebhookUser{
			ID:    p.UserID.String(),
			Email: p.Email,
			Role:  p.Role,
		},
		Agent: clients.WebhookAgent{
			ID:              agent.ID.String(),
			Name:            agent.Name,
			Prompt:          agent.Prompt,
			Tone:            agent.Tone,
			LeadStrategy:    agent.LeadStrategy,
			WelcomeMessage:  agent.WelcomeMessage,
			PreQuoteMessage: agent.PreQuoteMessage,
			TargetRole:      agent.TargetRole,
		},
		History: make([]clients.WebhookHistoryItem, 0, len(history)),
	}
	if p.OrganizationID != nil {
		req.User.OrganizationID = p.OrganizationID.String()
	}
	if p.ShopID != nil {
		req.User.ShopID = p.ShopID.String()
	}
	if len(agent.Config) > 0 {
		req.Agent.Config = agent.Config
	}

	for _, m := range history {
		if m.Status == models.MessageStatusFailed {
			continue
		}
		req.History = append(req.History, clients.WebhookHistoryItem{Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt})
	}
	return req
}

func (s *ChatService) push(userID, conversationID uuid.UUID, machine *StatusMachine, next Status, message string) {
	if err := machine.Transition(next); err != nil {
		s.log.Error("chat status", zap.String("conversation_id", conversationID.String()), zap.Error(err))
		return
	}
	event := NewStatusEvent(conversationID, next)
	event.Message = message
	s.notifier.Notify(userID, event)
}

func (s *ChatService) publish(ctx context.Context, eventType string, p access.Principal, msg *models.ChatMessage, errText string) {
	event := events.NewEvent(eventType)
	event.ConversationID = msg.ConversationID.String()
	event.MessageID = msg.ID.String()
	event.UserID = p.UserID.String()
	event.AgentID = msg.AgentID.String()
	event.Content = msg.Content
	event.Error = errText
	if p.OrganizationID != nil {
		event.OrganizationID = p.OrganizationID.String()
	}
	s.publisher.Publish(ctx, event)
}
