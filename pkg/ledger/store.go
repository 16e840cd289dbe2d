package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists deliveries.
type Store interface {
	// CreateBatch inserts all rows or none. A row repeating an existing
	// (notification, channel) pair fails the batch with ErrDuplicateDelivery.
	CreateBatch(ctx context.Context, ds []Delivery) error
	// Get returns ErrDeliveryNotFound for unknown ids.
	Get(ctx context.Context, id uuid.UUID) (Delivery, error)
	// Update writes next only if the stored row still matches expected,
	// otherwise it returns ErrConflict.
	Update(ctx context.Context, next Delivery, expected Version) error
	// ListDue returns pending rows whose retry time is unset or not after
	// now, oldest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]Delivery, error)
	ListByNotification(ctx context.Context, notificationID uuid.UUID) ([]Delivery, error)
	// CountByState tallies a notification's deliveries per state.
	CountByState(ctx context.Context, notificationID uuid.UUID) (map[State]int, error)
}
