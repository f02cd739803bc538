package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/viant/stepflow/tracing"
)

// Webhook posts JSON payloads to webhook URLs.
type Webhook struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// WebhookOption configures a Webhook.
type WebhookOption func(*Webhook)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(w *Webhook) {
		w.client = client
	}
}

// WithTimeout bounds each request.
func WithTimeout(timeout time.Duration) WebhookOption {
	return func(w *Webhook) {
		w.timeout = timeout
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) WebhookOption {
	return func(w *Webhook) {
		w.userAgent = userAgent
	}
}

// NewWebhook creates a webhook transport.
func NewWebhook(options ...WebhookOption) *Webhook {
	w := &Webhook{client: http.DefaultClient, timeout: 10 * time.Second}
	for _, opt := range options {
		opt(w)
	}
	return w
}

// Send posts payload as JSON; any non-2xx response is an error.
func (w *Webhook) Send(ctx context.Context, destination string, payload interface{}) (err error) {
	ctx, span := tracing.StartSpan(ctx, "webhook.Send", tracing.KindClient)
	span.WithAttributes(map[string]string{"destination": Label(destination)})
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		span.SetStatus(err)
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, destination, bytes.NewReader(body))
	if err != nil {
		span.SetStatus(err)
		return err
	}
	request.Header.Set("Content-Type", "application/json")
	if w.userAgent != "" {
		request.Header.Set("User-Agent", w.userAgent)
	}
	response, err := w.client.Do(request)
	if err != nil {
		span.SetStatus(err)
		return err
	}
	defer response.Body.Close()
	span.SetStatusFromHTTPCode(response.StatusCode)
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", response.StatusCode, bytes.TrimSpace(detail))
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return nil
}

var _ Transport = (*Webhook)(nil)
