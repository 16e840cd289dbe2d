package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority indicates how urgent a notification is.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Notification is one message intended for one user. The delivery pipeline
// only reads it; read, dismiss and delete are the only mutations.
type Notification struct {
	ID          uuid.UUID      `json:"id"`
	UserID      uuid.UUID      `json:"user_id"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Priority    Priority       `json:"priority"`
	Source      string         `json:"source,omitempty"`  // Tag of the system that emitted it
	Payload     map[string]any `json:"payload,omitempty"` // Arbitrary structured data
	Read        bool           `json:"read"`
	ReadAt      *time.Time     `json:"read_at,omitempty"`
	Dismissed   bool           `json:"dismissed"`
	DismissedAt *time.Time     `json:"dismissed_at,omitempty"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   *time.Time     `json:"-"`
}

// IsExpired reports whether the notification expired before now.
func (n Notification) IsExpired(now time.Time) bool {
	return n.ExpiresAt != nil && now.After(*n.ExpiresAt)
}

// Normalize fills defaults for a notification about to be created:
// a fresh ID, normal priority and creation timestamps.
func (n *Notification) Normalize(now time.Time) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.Priority == "" {
		n.Priority = PriorityNormal
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = n.CreatedAt
}

// Validate checks the fields required for creation.
func (n Notification) Validate() error {
	switch {
	case n.UserID == uuid.Nil:
		return fmt.Errorf("%w: user id is required", ErrInvalidNotification)
	case strings.TrimSpace(n.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidNotification)
	case !n.Priority.Valid():
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidNotification, n.Priority)
	case n.ExpiresAt != nil && !n.ExpiresAt.After(n.CreatedAt):
		return fmt.Errorf("%w: expiry must be after creation", ErrInvalidNotification)
	}
	return nil
}
