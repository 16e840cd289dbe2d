package channel

import (
	"context"

	"github.com/google/uuid"
)

// Store persists channels. Soft-deleted channels are invisible to every
// read method.
type Store interface {
	// Create inserts c. When c.Primary is set, other primary channels of the
	// same user and type are demoted in the same operation.
	Create(ctx context.Context, c Channel) error
	Get(ctx context.Context, id uuid.UUID) (Channel, error)
	// ListByUser returns the user's channels, primary ones first.
	ListByUser(ctx context.Context, userID uuid.UUID, opts ListOptions) ([]Channel, error)
	// Update overwrites the mutable fields of c: Active, Primary,
	// VerifiedAt and VerificationToken.
	Update(ctx context.Context, c Channel) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ListOptions filters ListByUser.
type ListOptions struct {
	Type         Type // Empty means any type
	VerifiedOnly bool
	EligibleOnly bool // Active and verified
}
