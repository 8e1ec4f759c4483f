// Package notify delivers operator alerts raised by the settlement core,
// such as failed ledger writes and game endings. Alerts are filtered against
// the configured event list and fanned out to every configured target.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// Sender delivers one formatted alert to a single destination.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	// Name identifies the destination in logs and combined errors.
	Name() string
}

// Notifier filters alerts by event type and fans them out to its targets.
// With no targets configured every alert is a no-op, so callers never need to
// special-case a disabled setup.
type Notifier struct {
	targets []Sender
	allowed map[string]struct{}
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given targets. Only alerts
// whose event type appears in events are forwarded; an empty list forwards
// everything.
func NewNotifier(targets []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = struct{}{}
		}
	}
	return &Notifier{
		targets: targets,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers the alert when its event type passes the configured filter.
// A failing target does not stop delivery to the others; the failures come
// back joined.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.allowed) > 0 {
		if _, ok := n.allowed[event]; !ok {
			return nil
		}
	}

	var errs []error
	for _, target := range n.targets {
		if err := target.Send(ctx, title, message); err != nil {
			n.logger.WarnContext(ctx, "alert delivery failed",
				slog.String("target", target.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", target.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// postJSON sends a JSON payload and verifies a 2xx response. Both senders
// talk to plain JSON-over-HTTP APIs, so the transport is shared here.
func postJSON(ctx context.Context, hc *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, snippet)
	}
	return nil
}
