package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agentdesk-backend/shared/access"
	"agentdesk-backend/shared/clients"
	"agentdesk-backend/shared/database/models"
	"agentdesk-backend/shared/events"
	"agentdesk-backend/shared/repository"
	agents "agentdesk-backend/shared/services"
	"agentdesk-backend/shared/utils/cache"
)

type fakeWebhook struct {
	mu       sync.Mutex
	urls     []string
	requests []clients.WebhookRequest
	reply    *clients.WebhookResponse
	err      error
}

func (f *fakeWebhook) Send(_ context.Context, url string, req clients.WebhookRequest) (*clients.WebhookResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	f.requests = append(f.requests, req)
	return f.reply, f.err
}

func (f *fakeWebhook) last() clients.WebhookRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []StatusEvent
}

func (r *recordingNotifier) Notify(_ uuid.UUID, event StatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingNotifier) statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Status)
	}
	return out
}

type chatEnv struct {
	repos     repository.Repositories
	webhook   *fakeWebhook
	notifier  *recordingNotifier
	publisher *events.MemoryPublisher
	service   *ChatService

	org    *models.Organization
	member access.Principal
	agent  *models.Agent
	other  *models.Agent
}

func newChatEnv(t *testing.T) *chatEnv {
	t.Helper()
	ctx := context.Background()

	env := &chatEnv{
		repos:     repository.NewMemory(),
		webhook:   &fakeWebhook{reply: &clients.WebhookResponse{Success: true, Message: "We ship worldwide."}},
		notifier:  &recordingNotifier{},
		publisher: &events.MemoryPublisher{},
	}

	env.org = &models.Organization{Name: "Acme", Slug: "acme", Status: models.StatusActive}
	require.NoError(t, env.repos.Organizations.Create(ctx, env.org))
	env.member = access.Principal{UserID: uuid.New(), Email: "member@acme.io", Role: access.RoleUser, OrganizationID: &env.org.ID}

	env.agent = &models.Agent{
		Name:           "Concierge",
		Prompt:         "Be helpful",
		TargetRole:     models.TargetRoleBoth,
		Tone:           models.DefaultAgentTone,
		LeadStrategy:   models.DefaultAgentLeadStrategy,
		WelcomeMessage: "Welcome to Acme!",
		IsActive:       true,
	}
	require.NoError(t, env.repos.Agents.Create(ctx, env.agent))

	otherOrg := uuid.New()
	env.other = &models.Agent{Name: "Globex support", OrganizationID: &otherOrg, TargetRole: models.TargetRoleBoth, IsActive: true}
	require.NoError(t, env.repos.Agents.Create(ctx, env.other))

	agentService := agents.NewAgentService(env.repos, cache.NewMemoryCache(time.Minute), nil, agents.AvatarPolicy{}, zap.NewNop())
	env.service = NewChatService(env.repos, agentService, env.webhook, env.notifier, env.publisher, 10, zap.NewNop())
	return env
}

func TestStartConversationStoresWelcome(t *testing.T) {
	env := newChatEnv(t)
	ctx := context.Background()

	conv, err := env.service.StartConversation(ctx, env.member, nil)
	require.NoError(t, err)
	assert.Equal(t, env.agent.ID, conv.Agent.ID)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, models.ChatRoleAssistant, conv.Messages[0].Role)
	assert.Equal(t, "Welcome to Acme!", conv.Messages[0].Content)

	history, err := env.service.History(ctx, env.member, conv.ConversationID)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	_, err = env.service.StartConversation(ctx, env.member, &env.other.ID)
	assert.ErrorIs(t, err, agents.ErrNotFound)
}

func TestSendMessageSuccess(t *testing.T) {
	env := newChatEnv(t)
	ctx := context.Background()

	conv, err := env.service.StartConversation(ctx, env.member, nil)
	require.NoError(t, err)

	result, err := env.service.SendMessage(ctx, env.member, SendMessageRequest{
		ConversationID: &conv.ConversationID,
		Message:        "  Do you ship to Canada?  ",
	})
	require.NoError(t, err)

	assert.Equal(t, conv.ConversationID, result.ConversationID)
	assert.Equal(t, "Do you ship to Canada?", result.UserMessage.Content)
	assert.Equal(t, models.MessageStatusDelivered, result.UserMessage.Status)
	assert.Equal(t, "We ship worldwide.", result.Reply.Content)
	assert.Equal(t, models.ChatRoleAssistant, result.Reply.Role)

	assert.Equal(t, []Status{StatusSending, StatusProcessing, StatusReceiving, StatusIdle}, env.notifier.statuses())
	assert.Equal(t, []string{events.TypeMessageSent, events.TypeMessageReplied}, env.publisher.Types())

	req := env.webhook.last()
	assert.Equal(t, "Do you ship to Canada?", req.Message)
	assert.Equal(t, conv.ConversationID.String(), req.ConversationID)
	assert.Equal(t, env.member.UserID.String(), req.User.ID)
	assert.Equal(t, env.org.ID.String(), req.User.OrganizationID)
	assert.Equal(t, env.agent.ID.String(), req.Agent.ID)
	assert.Equal(t, "Be helpful", req.Agent.Prompt)
	require.Len(t, req.History, 1)
	assert.Equal(t, "Welcome to Acme!", req.History[0].Content)
	assert.Equal(t, "", env.webhook.urls[0])

	history, err := env.service.History(ctx, env.member, conv.ConversationID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, models.MessageStatusDelivered, history[1].Status)
}

func TestSendMessageUsesOrganizationWebhook(t *testing.T) {
	env := newChatEnv(t)
	ctx := context.Background()

	override := "https://hooks.acme.io/chat"
	env.org.WebhookURL = &override
	require.NoError(t, env.repos.Organizations.Update(ctx, env.org))

	result, err := env.service.SendMessage(ctx, env.member, SendMessageRequest{Message: "Hi"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, result.ConversationID)
	assert.Equal(t, []string{override}, env.webhook.urls)
	assert.Empty(t, env.webhook.last().History)
}

func TestSendMessageFailure(t *testing.T) {
	env := newChatEnv(t)
	ctx := context.Background()
	env.webhook.reply = &clients.WebhookResponse{Success: false, Message: "Agent is offline"}
	env.webhook.err = errors.New("webhook reported failure")

	_, err := env.service.SendMessage(ctx, env.member, SendMessageRequest{Message: "Hello?"})
	var delivery *DeliveryError
	require.ErrorAs(t, err, &delivery)
	assert.Equal(t, "Agent is offline", delivery.Message)
	assert.Equal(t, models.MessageStatusFailed, delivery.UserMessage.Status)

	assert.Equal(t, []Status{StatusSending, StatusProcessing, StatusError}, env.notifier.statuses())
	assert.Equal(t, []string{events.TypeMessageSent, events.TypeMessageFailed}, env.publisher.Types())
	assert.Equal(t, "Agent is offline", env.notifier.events[2].Message)
	assert.Equal(t, []int{200, 100, 200}, env.notifier.events[2].Vibration)

	history, err := env.service.History(ctx, env.member, delivery.UserMessage.ConversationID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.MessageStatusFailed, history[0].Status)

	// Failed messages are left out of the next request's history.
	env.webhook.reply = &clients.WebhookResponse{Success: true, Message: "Back online"}
	env.webhook.err = nil
	convID := delivery.UserMessage.ConversationID
	_, err = env.service.SendMessage(ctx, env.member, SendMessageRequest{ConversationID: &convID, Message: "Still there?"})
	require.NoError(t, err)
	assert.Empty(t, env.webhook.last().History)
}

func TestSendMessageTransportFailureUsesDefaultMessage(t *testing.T) {
	env := newChatEnv(t)
	env.webhook.reply = nil
	env.webhook.err = errors.New("connection refused")

	_, err := env.service.SendMessage(context.Background(), env.member, SendMessageRequest{Message: "Hello?"})
	var delivery *DeliveryError
	require.ErrorAs(t, err, &delivery)
	assert.Equal(t, defaultDeliveryFailure, delivery.Message)
}

func TestSendMessageValidation(t *testing.T) {
	env := newChatEnv(t)
	ctx := context.Background()

	_, err := env.service.SendMessage(ctx, env.member, SendMessageRequest{Message: "   "})
	var validation *agents.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "message", validation.Field)

	long := make([]rune, maxMessageLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = env.service.SendMessage(ctx, env.member, SendMessageRequest{Message: string(long)})
	require.ErrorAs(t, err, &validation)

	_, err = env.service.SendMessage(ctx, env.member, SendMessageRequest{AgentID: &env.other.ID, Message: "Hi"})
	assert.ErrorIs(t, err, agents.ErrNotFound)

	assert.Empty(t, env.notifier.statuses())
	assert.Empty(t, env.webhook.requests)
}

func TestConversationsAndDelete(t *testing.T) {
	env := newChatEnv(t)
	ctx := context.Background()

	first, err := env.service.StartConversation(ctx, env.member, nil)
	require.NoError(t, err)
	_, err = env.service.StartConversation(ctx, env.member, &env.agent.ID)
	require.NoError(t, err)

	list, err := env.service.Conversations(ctx, env.member)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	stranger := access.Principal{UserID: uuid.New(), Role: access.RoleUser, OrganizationID: &env.org.ID}
	_, err = env.service.History(ctx, stranger, first.ConversationID)
	assert.ErrorIs(t, err, agents.ErrNotFound)
	assert.ErrorIs(t, env.service.DeleteConversation(ctx, stranger, first.ConversationID), agents.ErrNotFound)

	require.NoError(t, env.service.DeleteConversation(ctx, env.member, first.ConversationID))
	_, err = env.service.History(ctx, env.member, first.ConversationID)
	assert.ErrorIs(t, err, agents.ErrNotFound)

	list, err = env.service.Conversations(ctx, env.member)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
