package sender

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/courier/pkg/logger"
	"github.com/dmitrymomot/courier/pkg/notification"
	"github.com/dmitrymomot/courier/pkg/webhook"
)

// GatewayMessage is the JSON body posted to an SMS or push gateway.
type GatewayMessage struct {
	To             string                `json:"to"`
	Title          string                `json:"title"`
	Body           string                `json:"body"`
	Priority       notification.Priority `json:"priority"`
	NotificationID uuid.UUID             `json:"notification_id"`
	Data           map[string]any        `json:"data,omitempty"`
}

// GatewaySender hands SMS and push messages to an HTTP provider gateway.
// The gateway's X-Request-Id response header becomes the message id.
type GatewaySender struct {
	provider string
	url      string
	token    string
	webhook  *WebhookSender
}

// NewGatewaySender posts to url authenticating with a bearer token.
// Request handling (timeout, signing, breakers) follows the WebhookSender
// options.
func NewGatewaySender(provider, url, token string, client *webhook.Sender, opts ...WebhookOption) *GatewaySender {
	return &GatewaySender{
		provider: provider,
		url:      url,
		token:    token,
		webhook:  NewWebhookSender(client, opts...),
	}
}

func (s *GatewaySender) Send(ctx context.Context, address string, n notification.Notification, opts ...SendOption) (Result, error) {
	if s.url == "" {
		return Result{}, &ConfigurationError{Reason: s.provider + " gateway URL", Err: ErrNotConfigured}
	}
	if address == "" {
		return Result{}, permanent("invalid_address", 0, ErrInvalidAddress)
	}

	o := applyOptions(opts)
	msg := GatewayMessage{
		To:             address,
		Title:          n.Title,
		Body:           n.Body,
		Priority:       n.Priority,
		NotificationID: n.ID,
		Data:           n.Payload,
	}
	reqOpts := append(s.webhook.requestOptions(s.url, o), webhook.WithBearerToken(s.token))

	res, err := s.webhook.client.Send(ctx, s.url, msg, reqOpts...)
	if err != nil {
		return Result{}, classifyWebhookError(err)
	}
	return Result{
		Provider:  s.provider,
		MessageID: res.RequestID(),
		Metadata:  responseMetadata(res),
	}, nil
}

// LogSender stands in for a gateway that is not configured. It logs the
// message and reports success.
type LogSender struct {
	provider string
	logger   *slog.Logger
}

func NewLogSender(provider string, log *slog.Logger) *LogSender {
	if log == nil {
		log = slog.Default()
	}
	return &LogSender{provider: provider, logger: log}
}

func (s *LogSender) Send(ctx context.Context, address string, n notification.Notification, opts ...SendOption) (Result, error) {
	o := applyOptions(opts)
	id := uuid.NewString()
	s.logger.LogAttrs(ctx, slog.LevelInfo, "notification logged instead of sent",
		slog.String("provider", s.provider),
		slog.String("recipient", address),
		logger.NotificationID(n.ID),
		logger.DeliveryID(o.deliveryID),
		logger.ProviderMessageID(id),
		slog.String("title", n.Title),
	)
	return Result{Provider: s.provider, MessageID: id}, nil
}
