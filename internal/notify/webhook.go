package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const timeLayout = time.RFC3339

// WebhookSink POSTs a JSON payload per event.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink posts to url. A nil client gets a 10 second timeout.
func NewWebhookSink(url string, client *http.Client) *WebhookSink {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookSink{url: url, client: client}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Detection(ctx context.Context, ev Event) error {
	return s.send(ctx, map[string]any{
		"event":      "detection",
		"title":      ev.Title,
		"artist":     ev.Artist,
		"amplitude":  ev.Amplitude,
		"source":     ev.Source,
		"confidence": ev.Confidence,
		"timestamp":  ev.Timestamp.UTC().Format(timeLayout),
	})
}

func (s *WebhookSink) Notice(ctx context.Context, n Notice) error {
	return s.send(ctx, map[string]any{
		"event":     n.Kind,
		"message":   n.Message,
		"timestamp": n.Timestamp.UTC().Format(timeLayout),
	})
}

func (s *WebhookSink) send(ctx context.Context, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
