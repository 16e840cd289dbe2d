package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/courier/pkg/cache"
	"github.com/dmitrymomot/courier/pkg/channel"
	"github.com/dmitrymomot/courier/pkg/ledger"
	"github.com/dmitrymomot/courier/pkg/logger"
	"github.com/dmitrymomot/courier/pkg/notification"
	"github.com/dmitrymomot/courier/pkg/sender"
)

// Failure codes recorded for rows that cannot be sent.
const (
	CodeChannelNotFound      = "channel_not_found"
	CodeChannelInactive      = "channel_inactive"
	CodeNotificationNotFound = "notification_not_found"
	CodeNotificationExpired  = "notification_expired"
	CodePanic                = "panic"
)

// lookups caches channels and notifications for the rows of one cycle.
// Several rows of a batch usually share a notification.
type lookups struct {
	channelGetter      ChannelGetter
	notificationGetter NotificationGetter
	channels           *cache.LRUCache[uuid.UUID, channel.Channel]
	notifications      *cache.LRUCache[uuid.UUID, notification.Notification]
}

func newLookups(channels ChannelGetter, notifications NotificationGetter, size int) *lookups {
	return &lookups{
		channelGetter:      channels,
		notificationGetter: notifications,
		channels:           cache.NewLRUCache[uuid.UUID, channel.Channel](size),
		notifications:      cache.NewLRUCache[uuid.UUID, notification.Notification](size),
	}
}

func (l *lookups) channel(ctx context.Context, id uuid.UUID) (channel.Channel, error) {
	if c, ok := l.channels.Get(id); ok {
		return c, nil
	}
	c, err := l.channelGetter.Get(ctx, id)
	if err != nil {
		return channel.Channel{}, err
	}
	l.channels.Put(id, c)
	return c, nil
}

func (l *lookups) notification(ctx context.Context, id uuid.UUID) (notification.Notification, error) {
	if n, ok := l.notifications.Get(id); ok {
		return n, nil
	}
	n, err := l.notificationGetter.Get(ctx, id)
	if err != nil {
		return notification.Notification{}, err
	}
	l.notifications.Put(id, n)
	return n, nil
}

// process makes one attempt for a row and records the outcome. Errors and
// panics stay inside the row. It reports whether the outcome reached the
// ledger; a row left untouched is still due.
func (w *Worker) process(ctx context.Context, d ledger.Delivery, lk *lookups) (recorded bool) {
	log := w.logger.With(
		logger.DeliveryID(d.ID),
		logger.NotificationID(d.NotificationID),
		logger.ChannelType(d.ChannelType.String()),
		logger.Attempt(d.AttemptCount+1),
	)

	defer func() {
		if r := recover(); r != nil {
			log.LogAttrs(ctx, slog.LevelError, "delivery panicked", slog.Any("panic", r))
			recorded = w.fail(ctx, log, d, ledger.FailureReport{
				Message:     fmt.Errorf("%w: %v", ErrPanic, r).Error(),
				Code:        CodePanic,
				ShouldRetry: true,
			})
		}
	}()

	ch, err := lk.channel(ctx, d.ChannelID)
	switch {
	case errors.Is(err, channel.ErrNotFound):
		return w.fail(ctx, log, d, ledger.FailureReport{Message: err.Error(), Code: CodeChannelNotFound})
	case err != nil:
		log.LogAttrs(ctx, slog.LevelWarn, "channel lookup failed, row left for next cycle", logger.Error(err))
		return false
	case !ch.Active:
		return w.fail(ctx, log, d, ledger.FailureReport{Message: "channel is inactive", Code: CodeChannelInactive})
	}

	n, err := lk.notification(ctx, d.NotificationID)
	switch {
	case errors.Is(err, notification.ErrNotFound):
		return w.fail(ctx, log, d, ledger.FailureReport{Message: err.Error(), Code: CodeNotificationNotFound})
	case err != nil:
		log.LogAttrs(ctx, slog.LevelWarn, "notification lookup failed, row left for next cycle", logger.Error(err))
		return false
	case n.IsExpired(time.Now()):
		return w.fail(ctx, log, d, ledger.FailureReport{Message: "notification expired", Code: CodeNotificationExpired})
	}

	s, err := w.senders.Lookup(d.ChannelType)
	if err != nil {
		return w.fail(ctx, log, d, ledger.FailureReport{Message: err.Error(), Code: sender.ErrorCode(err)})
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.opts.sendTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.Send(sendCtx, d.Recipient, n, sender.WithDeliveryID(d.ID), sender.WithAttempt(d.AttemptCount))
	took := time.Since(start)
	if err != nil {
		log.LogAttrs(ctx, slog.LevelWarn, "send failed", logger.Duration(took), logger.Error(err))
		return w.fail(ctx, log, d, ledger.FailureReport{
			Message:     err.Error(),
			Code:        sender.ErrorCode(err),
			ShouldRetry: sender.ShouldRetry(err),
		})
	}

	if _, err := w.ledger.MarkDelivered(ctx, d.ID, ledger.DeliveredInfo{
		Provider:          res.Provider,
		ProviderMessageID: res.MessageID,
		Metadata:          res.Metadata,
	}); err != nil {
		log.LogAttrs(ctx, slog.LevelError, "failed to record delivery", logger.Error(err))
		return false
	}
	log.LogAttrs(ctx, slog.LevelDebug, "sent",
		logger.ProviderMessageID(res.MessageID),
		logger.Duration(took),
	)
	return true
}

func (w *Worker) fail(ctx context.Context, log *slog.Logger, d ledger.Delivery, report ledger.FailureReport) bool {
	if _, err := w.ledger.MarkFailed(ctx, d.ID, report); err != nil {
		log.LogAttrs(ctx, slog.LevelError, "failed to record failure",
			slog.String("error_code", report.Code),
			logger.Error(err),
		)
		return false
	}
	return true
}
