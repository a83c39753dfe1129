package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// webhookPayload is the POST body. Alerts that wrap a verdict carry its
// domain fields at the top level so dashboard consumers can filter on
// asset and direction without parsing the message text.
type webhookPayload struct {
	Level      string `json:"level"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	Asset      string `json:"asset,omitempty"`
	Period     int    `json:"period,omitempty"`
	Direction  string `json:"direction,omitempty"`
	Confidence int    `json:"confidence,omitempty"`
	Rule       string `json:"rule,omitempty"`
	TS         string `json:"ts"`
}

// WebhookNotifier sends alerts to a generic HTTP webhook endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier.
// url: The HTTP endpoint to POST alerts to.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	payload := webhookPayload{
		Level:   string(alert.Level),
		Title:   alert.Title,
		Message: alert.Message,
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
	}
	if v := alert.Signal; v != nil {
		payload.Asset = v.Asset
		payload.Period = v.Period
		payload.Direction = string(v.Direction)
		payload.Confidence = v.Confidence
		payload.Rule = string(v.Rule)
		payload.TS = v.ProducedAt.UTC().Format(time.RFC3339Nano)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}

	log.Printf("[webhook] sent alert to %s: %s", w.url, alert.Title)
	return nil
}
