package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/courier/pkg/logger"
	"github.com/dmitrymomot/courier/pkg/statemachine"
)

// DefaultPendingLimit is used by GetPending when no positive limit is given.
const DefaultPendingLimit = 100

// Ledger applies delivery outcomes to stored rows. Every write is a
// conditional update on the row version it read, so concurrent callers
// cannot both move the same row.
type Ledger struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(led *Ledger) {
		if l != nil {
			led.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(led *Ledger) {
		if now != nil {
			led.now = now
		}
	}
}

func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Store returns the underlying store.
func (l *Ledger) Store() Store { return l.store }

// MarkDelivered moves a pending row to delivered. On a delivered row it
// backfills provider data without changing state. Failed and bounced rows
// are returned unchanged.
func (l *Ledger) MarkDelivered(ctx context.Context, id uuid.UUID, info DeliveredInfo) (Delivery, error) {
	return l.apply(ctx, id, EventDeliver, change{delivered: info})
}

// MarkFailed records a failed attempt. While ShouldRetry is set and the
// attempt count stays below MaxRetries the row remains pending with a retry
// time from the backoff table; otherwise it becomes failed. Terminal rows
// are returned unchanged.
func (l *Ledger) MarkFailed(ctx context.Context, id uuid.UUID, report FailureReport) (Delivery, error) {
	return l.apply(ctx, id, EventFail, change{failure: report})
}

// MarkBounced records a hard bounce reported by the provider. Terminal rows
// are returned unchanged.
func (l *Ledger) MarkBounced(ctx context.Context, id uuid.UUID, report FailureReport) (Delivery, error) {
	return l.apply(ctx, id, EventBounce, change{failure: report})
}

// GetPending returns up to limit rows due now, oldest first.
func (l *Ledger) GetPending(ctx context.Context, limit int) ([]Delivery, error) {
	if limit <= 0 {
		limit = DefaultPendingLimit
	}
	return l.store.ListDue(ctx, l.now(), limit)
}

func (l *Ledger) Get(ctx context.Context, id uuid.UUID) (Delivery, error) {
	d, err := l.store.Get(ctx, id)
	if errors.Is(err, ErrDeliveryNotFound) {
		l.logger.LogAttrs(ctx, slog.LevelWarn, "delivery not found", logger.DeliveryID(id))
	}
	return d, err
}

func (l *Ledger) ListByNotification(ctx context.Context, notificationID uuid.UUID) ([]Delivery, error) {
	return l.store.ListByNotification(ctx, notificationID)
}

// Stats summarizes the deliveries of one notification. Pending includes
// rows in the sent state.
type Stats struct {
	Total       int     `json:"total"`
	Delivered   int     `json:"delivered"`
	Failed      int     `json:"failed"`
	Bounced     int     `json:"bounced"`
	Pending     int     `json:"pending"`
	SuccessRate float64 `json:"success_rate"` // Delivered / Total * 100, 0 without deliveries
}

// Statistics reports delivery counts for a notification.
func (l *Ledger) Statistics(ctx context.Context, notificationID uuid.UUID) (Stats, error) {
	counts, err := l.store.CountByState(ctx, notificationID)
	if err != nil {
		return Stats{}, err
	}

	s := Stats{
		Delivered: counts[StateDelivered],
		Failed:    counts[StateFailed],
		Bounced:   counts[StateBounced],
		Pending:   counts[StatePending] + counts[StateSent],
	}
	for _, n := range counts {
		s.Total += n
	}
	if s.Total > 0 {
		s.SuccessRate = float64(s.Delivered) / float64(s.Total) * 100
	}
	return s, nil
}

// apply reads the row, runs event through the transition table and writes
// the result conditioned on the version it read. A lost race is retried
// once against the fresh row.
func (l *Ledger) apply(ctx context.Context, id uuid.UUID, event Event, c change) (Delivery, error) {
	var lastErr error
	for range 2 {
		cur, err := l.store.Get(ctx, id)
		if errors.Is(err, ErrDeliveryNotFound) {
			l.logger.LogAttrs(ctx, slog.LevelWarn, "delivery not found",
				logger.DeliveryID(id),
				slog.String("event", string(event)),
			)
			return Delivery{}, err
		}
		if err != nil {
			return Delivery{}, err
		}

		next := cur.Clone()
		c.next = &next
		c.now = l.now()

		state, err := transitions.Fire(ctx, cur.State, event, &c)
		if statemachine.IsNoTransitionAvailableError(err) {
			l.logger.LogAttrs(ctx, slog.LevelDebug, "delivery outcome ignored",
				logger.DeliveryID(id),
				logger.State(cur.State.String()),
				slog.String("event", string(event)),
			)
			return cur, nil
		}
		if err != nil {
			return Delivery{}, err
		}
		next.State = state
		next.UpdatedAt = c.now

		err = l.store.Update(ctx, next, cur.Version())
		if errors.Is(err, ErrConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return Delivery{}, err
		}

		l.logTransition(ctx, cur, next, event)
		return next, nil
	}
	return Delivery{}, lastErr
}

func (l *Ledger) logTransition(ctx context.Context, from, to Delivery, event Event) {
	level := slog.LevelInfo
	if to.State == StateFailed || to.State == StateBounced {
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{
		logger.DeliveryID(to.ID),
		logger.NotificationID(to.NotificationID),
		logger.ChannelType(to.ChannelType.String()),
		slog.String("from", from.State.String()),
		logger.State(to.State.String()),
		logger.Attempt(to.AttemptCount),
	}
	if to.NextRetryAt != nil {
		attrs = append(attrs, slog.Time("next_retry_at", *to.NextRetryAt))
	}
	if event != EventDeliver && to.ErrorMessage != "" {
		attrs = append(attrs, slog.String("error_message", to.ErrorMessage))
	}
	l.logger.LogAttrs(ctx, level, "delivery "+string(event), attrs...)
}
