package intent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/getevo/evo/v2/lib/settings"
	"github.com/talkbase-io/talkbase-backend/apps/models"
)

// WebhookPayload is the body posted to intent webhook endpoints
type WebhookPayload struct {
	Event     string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// WebhookSender posts intent notifications with a bounded timeout. Delivery
// is one-shot, a failed endpoint only shows up in the logs.
type WebhookSender struct {
	client *http.Client
}

func NewWebhookSender() *WebhookSender {
	timeout, err := settings.Get("INTENT.WEBHOOK_TIMEOUT", "5s").Duration()
	if err != nil || timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSender{
		client: &http.Client{Timeout: timeout},
	}
}

// Dispatch posts the trigger notification to the intent's webhook URL
func (s *WebhookSender) Dispatch(matched *models.Intent, conv *models.Conversation, messageText string) error {
	payload := WebhookPayload{
		Event:     "intent.triggered",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data: map[string]any{
			"intent_id":       matched.ID,
			"intent_name":     matched.Name,
			"conversation_id": conv.ID,
			"channel_id":      conv.ChannelID,
			"visitor_id":      conv.VisitorExternalID,
			"message":         messageText,
		},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequest("POST", matched.WebhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Talkbase-Webhook/1.0")
	req.Header.Set("X-Webhook-Event", payload.Event)

	startTime := time.Now()
	resp, err := s.client.Do(req)
	durationMs := time.Since(startTime).Milliseconds()

	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	log.Debug("Intent webhook %s delivered in %dms with status %d", matched.WebhookURL, durationMs, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned non-success status: %d", resp.StatusCode)
	}
	return nil
}
