package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/courier/pkg/channel"
	"github.com/dmitrymomot/courier/pkg/ledger"
	"github.com/dmitrymomot/courier/pkg/logger"
	"github.com/dmitrymomot/courier/pkg/notification"
	"github.com/dmitrymomot/courier/pkg/sender"
)

// ChannelSource lists the channels a notification may be delivered to.
// channel.Registry implements it.
type ChannelSource interface {
	EligibleChannels(ctx context.Context, userID uuid.UUID) ([]channel.Channel, error)
}

// SenderLookup resolves the sender of a channel type. sender.Registry
// implements it.
type SenderLookup interface {
	Lookup(t channel.Type) (sender.Sender, error)
}

// Dispatcher turns a stored notification into pending deliveries.
type Dispatcher struct {
	channels      ChannelSource
	ledger        *ledger.Ledger
	notifications notification.Store
	senders       SenderLookup
	policy        Policy
	logger        *slog.Logger
	now           func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithNotificationStore enables Send.
func WithNotificationStore(s notification.Store) Option {
	return func(d *Dispatcher) { d.notifications = s }
}

// WithSenders enables synchronous delivery for channel types the policy
// marks Synchronous. Without senders every row is left to the worker.
func WithSenders(s SenderLookup) Option {
	return func(d *Dispatcher) { d.senders = s }
}

// WithPolicy replaces DefaultPolicy.
func WithPolicy(p Policy) Option {
	return func(d *Dispatcher) {
		if p != nil {
			d.policy = p
		}
	}
}

func New(channels ChannelSource, led *ledger.Ledger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		channels: channels,
		ledger:   led,
		policy:   DefaultPolicy(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send stores n and fans it out. When fan-out fails the stored
// notification is still returned together with the error.
func (d *Dispatcher) Send(ctx context.Context, n notification.Notification) (notification.Notification, []ledger.Delivery, error) {
	if d.notifications == nil {
		return notification.Notification{}, nil, ErrNoNotificationStore
	}

	n.Normalize(d.now())
	if err := n.Validate(); err != nil {
		return notification.Notification{}, nil, err
	}
	if err := d.notifications.Create(ctx, n); err != nil {
		return notification.Notification{}, nil, err
	}

	deliveries, err := d.FanOut(ctx, n)
	if err != nil {
		return n, nil, err
	}
	return n, deliveries, nil
}

// FanOut creates one pending delivery per eligible channel of the
// notification's user. The rows are written in one batch; if that fails no
// row exists and FanOut may be called again. A user without eligible
// channels yields an empty slice.
func (d *Dispatcher) FanOut(ctx context.Context, n notification.Notification) ([]ledger.Delivery, error) {
	if n.ID == uuid.Nil {
		return nil, ErrMissingNotificationID
	}

	channels, err := d.channels.EligibleChannels(ctx, n.UserID)
	if err != nil {
		return nil, errors.Join(ErrFanOutFailed, err)
	}
	if len(channels) == 0 {
		d.logger.LogAttrs(ctx, slog.LevelInfo, "no eligible channels",
			logger.NotificationID(n.ID),
			logger.UserID(n.UserID),
		)
		return []ledger.Delivery{}, nil
	}

	now := d.now()
	deliveries := make([]ledger.Delivery, 0, len(channels))
	for _, ch := range channels {
		deliveries = append(deliveries, ledger.NewPending(n.ID, ch, now))
	}
	if err := d.ledger.Store().CreateBatch(ctx, deliveries); err != nil {
		d.logger.LogAttrs(ctx, slog.LevelError, "fan-out failed",
			logger.NotificationID(n.ID),
			slog.Int("channels", len(channels)),
			logger.Error(err),
		)
		return nil, errors.Join(ErrFanOutFailed, err)
	}

	d.logger.LogAttrs(ctx, slog.LevelInfo, "notification fanned out",
		logger.NotificationID(n.ID),
		logger.UserID(n.UserID),
		slog.Int("deliveries", len(deliveries)),
	)

	for i, row := range deliveries {
		if d.policy.mode(row.ChannelType) != Synchronous {
			continue
		}
		if updated, ok := d.sendNow(ctx, n, row); ok {
			deliveries[i] = updated
		}
	}
	return deliveries, nil
}

// sendNow transmits a synchronous row inline. Any failure leaves the row
// pending for the worker.
func (d *Dispatcher) sendNow(ctx context.Context, n notification.Notification, row ledger.Delivery) (ledger.Delivery, bool) {
	if d.senders == nil {
		return row, false
	}
	attrs := []slog.Attr{
		logger.DeliveryID(row.ID),
		logger.NotificationID(n.ID),
		logger.ChannelType(row.ChannelType.String()),
	}

	s, err := d.senders.Lookup(row.ChannelType)
	if err != nil {
		d.logger.LogAttrs(ctx, slog.LevelWarn, "synchronous delivery skipped", append(attrs, logger.Error(err))...)
		return row, false
	}
	res, err := s.Send(ctx, row.Recipient, n, sender.WithDeliveryID(row.ID), sender.WithAttempt(row.AttemptCount))
	if err != nil {
		d.logger.LogAttrs(ctx, slog.LevelWarn, "synchronous delivery failed", append(attrs, logger.Error(err))...)
		return row, false
	}
	updated, err := d.ledger.MarkDelivered(ctx, row.ID, ledger.DeliveredInfo{
		Provider:          res.Provider,
		ProviderMessageID: res.MessageID,
		Metadata:          res.Metadata,
	})
	if err != nil {
		d.logger.LogAttrs(ctx, slog.LevelWarn, "synchronous delivery not recorded", append(attrs, logger.Error(err))...)
		return row, false
	}
	return updated, true
}
