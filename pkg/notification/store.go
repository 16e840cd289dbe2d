package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists notifications. Soft-deleted notifications are invisible to
// every read method.
type Store interface {
	Create(ctx context.Context, n Notification) error
	// Get returns ErrNotFound for unknown or deleted notifications.
	Get(ctx context.Context, id uuid.UUID) (Notification, error)
	// ListByUser returns the user's notifications, newest first. Expired
	// notifications are skipped.
	ListByUser(ctx context.Context, userID uuid.UUID, opts ListOptions) ([]Notification, error)
	// MarkRead marks the given notifications of userID as read and returns
	// how many changed. Unknown ids and already read ones are ignored.
	MarkRead(ctx context.Context, userID uuid.UUID, ids ...uuid.UUID) (int, error)
	Dismiss(ctx context.Context, userID, id uuid.UUID) error
	// Delete soft-deletes the notification. Deliveries stay until Purge.
	Delete(ctx context.Context, userID, id uuid.UUID) error
	// Purge hard-deletes the notification together with its deliveries.
	Purge(ctx context.Context, id uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// ListOptions filters ListByUser.
type ListOptions struct {
	Limit            int        // 0 = no limit
	Offset           int        // Number of notifications to skip
	OnlyUnread       bool       // Skip read notifications
	IncludeDismissed bool       // Dismissed notifications are hidden unless set
	Since            *time.Time // Only notifications created at or after Since
}
