package ledger

import (
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/courier/pkg/channel"
)

// State is the lifecycle state of a delivery.
type State string

const (
	StatePending   State = "pending"
	StateSent      State = "sent" // Reserved: accepted by a provider, outcome unknown
	StateDelivered State = "delivered"
	StateFailed    State = "failed"
	StateBounced   State = "bounced"
)

// Terminal reports whether s is final.
func (s State) Terminal() bool {
	return s == StateDelivered || s == StateFailed || s == StateBounced
}

func (s State) Valid() bool {
	switch s {
	case StatePending, StateSent, StateDelivered, StateFailed, StateBounced:
		return true
	}
	return false
}

func (s State) String() string { return string(s) }

// MaxRetries is the attempt ceiling of every delivery.
const MaxRetries = 3

// retryBackoff maps the attempt count after a failure to the retry delay.
var retryBackoff = map[int]time.Duration{
	1: time.Minute,
	2: 5 * time.Minute,
	3: 15 * time.Minute,
}

// Backoff returns the delay before retrying after the given failed attempt.
// Attempts beyond the table reuse its last step.
func Backoff(attempt int) time.Duration {
	switch {
	case attempt < 1:
		return retryBackoff[1]
	case attempt > len(retryBackoff):
		return retryBackoff[len(retryBackoff)]
	}
	return retryBackoff[attempt]
}

// Delivery is one attempt series for delivering a notification over a
// channel. Recipient is copied from the channel at fan-out time and does not
// follow later channel edits.
type Delivery struct {
	ID             uuid.UUID    `json:"id"`
	NotificationID uuid.UUID    `json:"notification_id"`
	ChannelID      uuid.UUID    `json:"channel_id"`
	ChannelType    channel.Type `json:"channel_type"`
	Recipient      string       `json:"recipient"`
	State          State        `json:"state"`

	// AttemptCount counts failed attempts.
	AttemptCount  int        `json:"attempt_count"`
	MaxRetries    int        `json:"max_retries"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	// NextRetryAt is set only while pending after at least one failure.
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`

	Provider          string         `json:"provider,omitempty"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
	ErrorCode         string         `json:"error_code,omitempty"`
	ErrorMessage      string         `json:"error_message,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	DeliveredAt       *time.Time     `json:"delivered_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPending builds the initial pending row for a notification and channel.
func NewPending(notificationID uuid.UUID, ch channel.Channel, now time.Time) Delivery {
	return Delivery{
		ID:             uuid.New(),
		NotificationID: notificationID,
		ChannelID:      ch.ID,
		ChannelType:    ch.Type,
		Recipient:      ch.Address,
		State:          StatePending,
		MaxRetries:     MaxRetries,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Due reports whether the worker should attempt the delivery at now.
func (d Delivery) Due(now time.Time) bool {
	return d.State == StatePending && (d.NextRetryAt == nil || !d.NextRetryAt.After(now))
}

// Version is the part of a row an optimistic update is conditioned on.
type Version struct {
	State        State
	AttemptCount int
}

func (d Delivery) Version() Version {
	return Version{State: d.State, AttemptCount: d.AttemptCount}
}

// Clone returns a copy that shares no mutable memory with d.
func (d Delivery) Clone() Delivery {
	c := d
	c.Metadata = maps.Clone(d.Metadata)
	return c
}
