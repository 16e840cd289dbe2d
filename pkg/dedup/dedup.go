package dedup

import (
	"context"
	"errors"
)

var (
	ErrEmptyKey = errors.New("dedup: key is required")
	ErrStore    = errors.New("dedup: store unavailable")
)

// Store remembers event keys for a bounded time.
type Store interface {
	// Claim records key and reports whether it was new. A false result
	// means the event was already handled within the retention window.
	Claim(ctx context.Context, key string) (bool, error)
	// Release forgets key so a redelivered event is processed again.
	Release(ctx context.Context, key string) error
}
