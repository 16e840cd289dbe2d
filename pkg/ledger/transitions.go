package ledger

import (
	"context"
	"maps"
	"time"

	"github.com/dmitrymomot/courier/pkg/statemachine"
)

// Event is an outcome applied to a delivery.
type Event string

const (
	EventDeliver Event = "deliver"
	EventFail    Event = "fail"
	EventBounce  Event = "bounce"
)

// FailureReport describes a failed attempt.
type FailureReport struct {
	Message     string
	Code        string
	ShouldRetry bool
}

// DeliveredInfo carries what a provider reported for a successful delivery.
// Empty fields leave the stored values untouched.
type DeliveredInfo struct {
	Provider          string
	ProviderMessageID string
	Metadata          map[string]any
}

// change is the data passed through the transition table. Actions mutate
// next in place.
type change struct {
	next      *Delivery
	now       time.Time
	failure   FailureReport
	delivered DeliveredInfo
}

type (
	guard  = statemachine.Guard[State, Event]
	action = statemachine.Action[State, Event]
)

// retryable passes when the failure asked for a retry and the attempt it
// records stays below the ceiling.
var retryable guard = func(_ context.Context, _ State, _ Event, data any) bool {
	c := data.(*change)
	return c.failure.ShouldRetry && c.next.AttemptCount+1 < c.next.MaxRetries
}

var recordAttempt action = func(_ context.Context, _, _ State, _ Event, data any) error {
	c := data.(*change)
	c.next.AttemptCount++
	c.next.LastAttemptAt = &c.now
	c.next.ErrorMessage = c.failure.Message
	c.next.ErrorCode = c.failure.Code
	return nil
}

var scheduleRetry action = func(_ context.Context, _, _ State, _ Event, data any) error {
	c := data.(*change)
	at := c.now.Add(Backoff(c.next.AttemptCount))
	c.next.NextRetryAt = &at
	return nil
}

var clearRetry action = func(_ context.Context, _, _ State, _ Event, data any) error {
	data.(*change).next.NextRetryAt = nil
	return nil
}

var markDelivered action = func(_ context.Context, from, _ State, _ Event, data any) error {
	c := data.(*change)
	if from != StateDelivered {
		c.next.DeliveredAt = &c.now
		c.next.LastAttemptAt = &c.now
		c.next.NextRetryAt = nil
	}
	if c.delivered.Provider != "" {
		c.next.Provider = c.delivered.Provider
	}
	if c.delivered.ProviderMessageID != "" {
		c.next.ProviderMessageID = c.delivered.ProviderMessageID
	}
	if len(c.delivered.Metadata) > 0 {
		if c.next.Metadata == nil {
			c.next.Metadata = make(map[string]any, len(c.delivered.Metadata))
		}
		maps.Copy(c.next.Metadata, c.delivered.Metadata)
	}
	return nil
}

var markBounced action = func(_ context.Context, _, _ State, _ Event, data any) error {
	c := data.(*change)
	c.next.ErrorMessage = c.failure.Message
	c.next.ErrorCode = c.failure.Code
	c.next.NextRetryAt = nil
	return nil
}

// transitions is the delivery lifecycle. Terminal states have no outgoing
// edges except deliver on delivered, which backfills provider data.
var transitions = statemachine.MustNew(
	statemachine.WithTransition(StatePending, StateDelivered, EventDeliver, statemachine.WithAction(markDelivered)),
	statemachine.WithTransition(StateSent, StateDelivered, EventDeliver, statemachine.WithAction(markDelivered)),
	statemachine.WithTransition(StateDelivered, StateDelivered, EventDeliver, statemachine.WithAction(markDelivered)),

	statemachine.WithTransition(StatePending, StatePending, EventFail,
		statemachine.WithGuard(retryable),
		statemachine.WithAction(recordAttempt, scheduleRetry),
	),
	statemachine.WithTransition(StatePending, StateFailed, EventFail, statemachine.WithAction(recordAttempt, clearRetry)),
	statemachine.WithTransition(StateSent, StatePending, EventFail,
		statemachine.WithGuard(retryable),
		statemachine.WithAction(recordAttempt, scheduleRetry),
	),
	statemachine.WithTransition(StateSent, StateFailed, EventFail, statemachine.WithAction(recordAttempt, clearRetry)),

	statemachine.WithTransition(StatePending, StateBounced, EventBounce, statemachine.WithAction(markBounced)),
	statemachine.WithTransition(StateSent, StateBounced, EventBounce, statemachine.WithAction(markBounced)),
)
