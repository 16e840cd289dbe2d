package sender

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/courier/pkg/notification"
)

// Sender transmits one notification to one address. Implementations make a
// single attempt per call and never retry internally.
type Sender interface {
	Send(ctx context.Context, address string, n notification.Notification, opts ...SendOption) (Result, error)
}

// Result is what the provider reported for an accepted message.
type Result struct {
	Provider  string
	MessageID string
	Metadata  map[string]any
}

type sendOptions struct {
	deliveryID uuid.UUID
	attempt    int
}

// SendOption carries per-delivery context into a send.
type SendOption func(*sendOptions)

// WithDeliveryID tags the send with the delivery it belongs to.
func WithDeliveryID(id uuid.UUID) SendOption {
	return func(o *sendOptions) { o.deliveryID = id }
}

// WithAttempt sets the zero-based attempt number of the send.
func WithAttempt(n int) SendOption {
	return func(o *sendOptions) {
		if n >= 0 {
			o.attempt = n
		}
	}
}

func applyOptions(opts []SendOption) sendOptions {
	var o sendOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// idempotencyKey is stable across duplicate transmissions of one attempt.
func (o sendOptions) idempotencyKey() string {
	if o.deliveryID == uuid.Nil {
		return ""
	}
	return fmt.Sprintf("%s-%d", o.deliveryID, o.attempt)
}
