package sender

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/dmitrymomot/courier/pkg/channel"
	"github.com/dmitrymomot/courier/pkg/email"
	"github.com/dmitrymomot/courier/pkg/webhook"
)

// Registry maps channel types to senders. It is built once at startup and
// read-only afterwards.
type Registry struct {
	senders map[channel.Type]Sender
}

// RegistryOption registers a sender.
type RegistryOption func(*Registry)

// WithSender binds s to channel type t, replacing any earlier binding.
func WithSender(t channel.Type, s Sender) RegistryOption {
	return func(r *Registry) {
		if s != nil {
			r.senders[t] = s
		}
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{senders: make(map[channel.Type]Sender, len(channel.Types))}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lookup returns the sender for t or a *ConfigurationError.
func (r *Registry) Lookup(t channel.Type) (Sender, error) {
	s, ok := r.senders[t]
	if !ok {
		return nil, &ConfigurationError{
			Reason: fmt.Sprintf("channel type %q", t),
			Err:    ErrUnknownChannelType,
		}
	}
	return s, nil
}

// Types lists the registered channel types in a stable order.
func (r *Registry) Types() []channel.Type {
	out := make([]channel.Type, 0, len(r.senders))
	for t := range r.senders {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Build wires the standard senders from cfg. mailer may be nil when email
// is not configured. The returned InAppSender is also registered for
// in_app and exposes Subscribe for transports.
func Build(cfg Config, mailer email.EmailSender, emailProvider string, log *slog.Logger) (*Registry, *InAppSender) {
	if log == nil {
		log = slog.Default()
	}
	client := webhook.NewSender()
	breakers := webhook.NewBreakers(cfg.BreakerFailureThreshold, cfg.BreakerSuccessThreshold, cfg.BreakerRecoveryTimeout)
	webhookOpts := []WebhookOption{
		WithWebhookTimeout(cfg.WebhookTimeout),
		WithSigningSecret(cfg.WebhookSigningSecret),
		WithBreakers(breakers),
	}

	inApp := NewInAppSender(cfg.InAppBufferSize, WithMaxUsers(cfg.InAppMaxUsers), WithInAppLogger(log))
	opts := []RegistryOption{
		WithSender(channel.TypeWebhook, NewWebhookSender(client, webhookOpts...)),
		WithSender(channel.TypeInApp, inApp),
		WithSender(channel.TypeSMS, gateway("sms", cfg.SMSGatewayURL, cfg.SMSGatewayToken, client, log, webhookOpts)),
		WithSender(channel.TypePush, gateway("push", cfg.PushGatewayURL, cfg.PushGatewayToken, client, log, webhookOpts)),
	}
	if mailer != nil {
		opts = append(opts, WithSender(channel.TypeEmail, NewEmailSender(mailer, emailProvider)))
	}
	return NewRegistry(opts...), inApp
}

func gateway(provider, url, token string, client *webhook.Sender, log *slog.Logger, opts []WebhookOption) Sender {
	if url == "" {
		return NewLogSender(provider, log)
	}
	return NewGatewaySender(provider, url, token, client, opts...)
}
