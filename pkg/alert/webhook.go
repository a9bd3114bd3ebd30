package alert

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
)

// EventSourcesUnhealthy is the event name carried by health alerts.
const EventSourcesUnhealthy = "sources.unhealthy"

// Event is the body a generic webhook receives.
type Event struct {
	Event        string        `json:"event"`
	Notification *Notification `json:"notification"`
}

// Webhook posts signed JSON events to an arbitrary endpoint. Receivers verify
// X-Signature-256 against the raw body with the shared secret.
type Webhook struct {
	client *http.Client
	url    string
	secret string
}

func NewWebhook(url, secret string) *Webhook {
	return &Webhook{client: newHTTPClient(), url: url, secret: secret}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Send(ctx context.Context, n *Notification) error {
	body, err := json.Marshal(Event{Event: EventSourcesUnhealthy, Notification: n})
	if err != nil {
		return fmt.Errorf("encode webhook event: %w", err)
	}

	header := http.Header{}
	header.Set("X-Technews-Event", EventSourcesUnhealthy)
	if w.secret != "" {
		header.Set("X-Signature-256", Sign(w.secret, body))
	}
	return post(ctx, w.client, "webhook", w.url, body, header)
}

// Sign returns the X-Signature-256 header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
