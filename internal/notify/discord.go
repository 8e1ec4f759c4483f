package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// DiscordSender posts alerts to a Discord channel through a webhook.
type DiscordSender struct {
	webhookURL string
	hc         *http.Client
}

// NewDiscordSender creates a DiscordSender for the given webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		hc:         &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts the alert with the title in bold. Discord answers webhooks with
// 204 No Content on success.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	payload := struct {
		Content string `json:"content"`
	}{
		Content: fmt.Sprintf("**%s**\n%s", title, message),
	}

	if err := postJSON(ctx, d.hc, d.webhookURL, payload); err != nil {
		return fmt.Errorf("notify: discord: %w", err)
	}
	return nil
}

func (d *DiscordSender) Name() string { return "discord" }
