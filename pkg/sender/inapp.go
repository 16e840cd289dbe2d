package sender

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/courier/pkg/broadcast"
	"github.com/dmitrymomot/courier/pkg/cache"
	"github.com/dmitrymomot/courier/pkg/logger"
	"github.com/dmitrymomot/courier/pkg/notification"
)

type userBroadcaster = *broadcast.MemoryBroadcaster[notification.Notification]

// InAppSender publishes notifications to connected clients of the user. The
// notification itself is the in-app inbox, so a send with no listeners
// still succeeds.
type InAppSender struct {
	users      *cache.LRUCache[uuid.UUID, userBroadcaster]
	bufferSize int
	maxUsers   int
	logger     *slog.Logger
}

// InAppOption configures an InAppSender.
type InAppOption func(*InAppSender)

// WithInAppLogger sets the logger. Default is slog.Default().
func WithInAppLogger(l *slog.Logger) InAppOption {
	return func(s *InAppSender) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxUsers caps the number of per-user broadcasters kept in memory.
// The least recently used one is closed when the cap is hit. Default is
// 10,000.
func WithMaxUsers(n int) InAppOption {
	return func(s *InAppSender) {
		if n > 0 {
			s.maxUsers = n
		}
	}
}

// NewInAppSender buffers bufferSize messages per subscriber.
func NewInAppSender(bufferSize int, opts ...InAppOption) *InAppSender {
	s := &InAppSender{
		bufferSize: bufferSize,
		maxUsers:   10000,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.users = cache.NewLRUCache[uuid.UUID, userBroadcaster](s.maxUsers)
	s.users.SetEvictCallback(func(userID uuid.UUID, b userBroadcaster) {
		if err := b.Close(); err != nil {
			s.logger.LogAttrs(context.Background(), slog.LevelError, "failed to close evicted broadcaster",
				logger.UserID(userID),
				logger.Error(err),
			)
		}
	})
	return s
}

func (s *InAppSender) broadcaster(userID uuid.UUID) userBroadcaster {
	return s.users.GetOrCreate(userID, func() userBroadcaster {
		return broadcast.NewMemoryBroadcaster[notification.Notification](s.bufferSize)
	})
}

// Send publishes n to the user's subscribers. address is ignored; the
// recipient is always n.UserID.
func (s *InAppSender) Send(ctx context.Context, _ string, n notification.Notification, _ ...SendOption) (Result, error) {
	listeners, err := s.broadcaster(n.UserID).Broadcast(ctx, broadcast.Message[notification.Notification]{Data: n})
	if err != nil {
		// Evicted between lookup and publish; the inbox row is what counts.
		s.logger.LogAttrs(ctx, slog.LevelDebug, "in-app publish skipped",
			logger.UserID(n.UserID),
			logger.NotificationID(n.ID),
			logger.Error(err),
		)
	}
	return Result{
		Provider:  "in_app",
		MessageID: n.ID.String(),
		Metadata:  map[string]any{"listeners": listeners},
	}, nil
}

// Subscribe streams the user's notifications until ctx is done.
func (s *InAppSender) Subscribe(ctx context.Context, userID uuid.UUID) broadcast.Subscriber[notification.Notification] {
	return s.broadcaster(userID).Subscribe(ctx)
}

// Close closes every user broadcaster and their subscribers.
func (s *InAppSender) Close() error {
	s.users.Clear()
	return nil
}
