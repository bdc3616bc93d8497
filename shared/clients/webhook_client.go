package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"agentdesk-backend/shared/config"
)

// ErrWebhookFailed wraps every unsuccessful webhook exchange.
var ErrWebhookFailed = errors.New("chat webhook failed")

// WebhookUser identifies the sender.
type WebhookUser struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	OrganizationID string `json:"organization_id,omitempty"`
	ShopID         string `json:"shop_id,omitempty"`
}

// WebhookAgent is the persona configuration the webhook answers with.
type WebhookAgent struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Prompt          string      `json:"prompt"`
	Tone            string      `json:"tone"`
	LeadStrategy    string      `json:"lead_strategy"`
	WelcomeMessage  string      `json:"welcome_message"`
	PreQuoteMessage string      `json:"pre_quote_message"`
	TargetRole      string      `json:"target_role"`
	Config          interface{} `json:"config,omitempty"`
}

type WebhookHistoryItem struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type WebhookRequest struct {
	Message        string               `json:"message"`
	ConversationID string               `json:"conversation_id"`
	User           WebhookUser          `json:"user"`
	Agent          WebhookAgent         `json:"agent"`
	History        []WebhookHistoryItem `json:"history"`
}

// WebhookResponse is the only reply shape the webhook may return.
type WebhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// WebhookClient posts chat messages to the automation webhook.
type WebhookClient struct {
	httpClient *resty.Client
	defaultURL string
	secret     string
	logger     *zap.Logger
}

func NewWebhookClient(cfg *config.Config, logger *zap.Logger) *WebhookClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New().
		SetTimeout(cfg.WebhookTimeout()).
		SetRetryCount(cfg.WebhookRetryCount()).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WebhookClient{
		httpClient: client,
		defaultURL: cfg.ChatWebhookURL,
		secret:     cfg.ChatWebhookSecret,
		logger:     logger,
	}
}

// Send posts req to url, or to the configured webhook when url is empty.
// The reply message is returned even on failure so callers can surface it.
func (c *WebhookClient) Send(ctx context.Context, url string, req WebhookRequest) (*WebhookResponse, error) {
	if url == "" {
		url = c.defaultURL
	}

	r := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&WebhookResponse{}).
		SetError(&WebhookResponse{})
	if c.secret != "" {
		r.SetHeader("X-Webhook-Secret", c.secret)
	}

	start := time.Now()
	resp, err := r.Post(url)
	if err != nil {
		c.logger.Error("chat webhook call failed",
			zap.String("conversation_id", req.ConversationID),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrWebhookFailed, err)
	}

	if resp.IsError() {
		out, _ := resp.Error().(*WebhookResponse)
		c.logger.Error("chat webhook returned error status",
			zap.String("conversation_id", req.ConversationID),
			zap.Int("status_code", resp.StatusCode()),
		)
		if out == nil || out.Message == "" {
			out = &WebhookResponse{Message: fmt.Sprintf("webhook responded with status %d", resp.StatusCode())}
		}
		out.Success = false
		return out, fmt.Errorf("%w: status %d", ErrWebhookFailed, resp.StatusCode())
	}

	out, ok := resp.Result().(*WebhookResponse)
	if !ok || out == nil {
		return nil, fmt.Errorf("%w: unexpected response", ErrWebhookFailed)
	}
	if !out.Success {
		c.logger.Warn("chat webhook reported failure",
			zap.String("conversation_id", req.ConversationID),
			zap.String("message", out.Message),
		)
		return out, fmt.Errorf("%w: %s", ErrWebhookFailed, out.Message)
	}

	c.logger.Info("chat webhook replied",
		zap.String("conversation_id", req.ConversationID),
		zap.Duration("latency", time.Since(start)),
	)
	return out, nil
}
