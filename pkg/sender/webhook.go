package sender

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/courier/pkg/notification"
	"github.com/dmitrymomot/courier/pkg/webhook"
)

// WebhookPayload is the JSON body posted to webhook channels.
type WebhookPayload struct {
	NotificationID uuid.UUID      `json:"notification_id"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	Data           map[string]any `json:"data,omitempty"`
}

// WebhookSender posts notifications to the channel address.
type WebhookSender struct {
	client   *webhook.Sender
	breakers *webhook.Breakers
	timeout  time.Duration
	secret   string
}

// WebhookOption configures a WebhookSender.
type WebhookOption func(*WebhookSender)

// WithWebhookTimeout bounds each request. Default is 10 seconds.
func WithWebhookTimeout(d time.Duration) WebhookOption {
	return func(s *WebhookSender) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSigningSecret signs every request body with HMAC-SHA256.
func WithSigningSecret(secret string) WebhookOption {
	return func(s *WebhookSender) { s.secret = secret }
}

// WithBreakers guards endpoints with per-host circuit breakers.
func WithBreakers(b *webhook.Breakers) WebhookOption {
	return func(s *WebhookSender) { s.breakers = b }
}

// NewWebhookSender creates a sender on top of client. A nil client gets a
// default webhook.Sender.
func NewWebhookSender(client *webhook.Sender, opts ...WebhookOption) *WebhookSender {
	if client == nil {
		client = webhook.NewSender()
	}
	s := &WebhookSender{client: client, timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *WebhookSender) Send(ctx context.Context, address string, n notification.Notification, opts ...SendOption) (Result, error) {
	o := applyOptions(opts)
	payload := WebhookPayload{
		NotificationID: n.ID,
		Title:          n.Title,
		Message:        n.Body,
		Data:           n.Payload,
	}

	res, err := s.client.Send(ctx, address, payload, s.requestOptions(address, o)...)
	if err != nil {
		return Result{}, classifyWebhookError(err)
	}
	return Result{
		Provider:  "webhook",
		MessageID: res.RequestID(),
		Metadata:  responseMetadata(res),
	}, nil
}

func (s *WebhookSender) requestOptions(address string, o sendOptions) []webhook.SendOption {
	opts := []webhook.SendOption{
		webhook.WithTimeout(s.timeout),
		webhook.WithIdempotencyKey(o.idempotencyKey()),
	}
	if s.secret != "" {
		opts = append(opts, webhook.WithSignature(s.secret))
	}
	if s.breakers != nil {
		opts = append(opts, webhook.WithCircuitBreaker(s.breakers.For(address)))
	}
	return opts
}

func responseMetadata(res webhook.Result) map[string]any {
	return map[string]any{
		"status_code": res.StatusCode,
		"duration_ms": res.Duration.Milliseconds(),
	}
}

// classifyWebhookError maps webhook package errors onto transmission errors.
func classifyWebhookError(err error) error {
	switch {
	case errors.Is(err, webhook.ErrInvalidURL):
		return permanent("invalid_address", 0, errors.Join(ErrInvalidAddress, err))
	case errors.Is(err, webhook.ErrInvalidPayload):
		return permanent("invalid_payload", 0, err)
	case errors.Is(err, webhook.ErrCircuitOpen):
		return temporary("circuit_open", 0, err)
	case errors.Is(err, webhook.ErrTimeout):
		return temporary("timeout", 0, err)
	}
	if code := webhook.StatusCode(err); code > 0 {
		return &TransmissionError{
			Code:       fmt.Sprintf("http_%d", code),
			StatusCode: code,
			Permanent:  errors.Is(err, webhook.ErrPermanentFailure),
			Err:        err,
		}
	}
	return temporary("network", 0, err)
}
