package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/timmy/hrsync/internal/config"
)

// WebhookNotifier posts notifications as JSON to an HTTP endpoint.
type WebhookNotifier struct {
	client *resty.Client
	url    string
}

// NewWebhookNotifier creates a webhook notifier. Token, when set, is sent as a bearer token.
func NewWebhookNotifier(cfg config.WebhookConfig) (*WebhookNotifier, error) {
	if cfg.URL == "" {
		return nil, errors.New("url is required for webhook notifier")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Content-Type", "application/json")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}

	return &WebhookNotifier{client: client, url: cfg.URL}, nil
}

// Notify posts the notification. Any non-2xx status is an error.
func (n *WebhookNotifier) Notify(ctx context.Context, notif Notification) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(notif).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("failed to call webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook error: status %d", resp.StatusCode())
	}
	return nil
}

func (n *WebhookNotifier) String() string {
	return "WebhookNotifier(" + n.url + ")"
}
