package webhook

import (
	"errors"
	"fmt"
)

var (
	ErrDeliveryFailed   = errors.New("webhook delivery failed")
	ErrPermanentFailure = errors.New("permanent webhook failure")
	ErrTemporaryFailure = errors.New("temporary webhook failure")
	ErrCircuitOpen      = errors.New("webhook circuit breaker is open")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
	ErrInvalidURL       = errors.New("invalid webhook URL")
	ErrTimeout          = errors.New("webhook request timeout")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMissingSecret    = errors.New("webhook signing secret is required")
)

// StatusError is returned when the endpoint answered with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("webhook returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("webhook returned status %d: %s", e.StatusCode, e.Body)
}

// Permanent reports whether the status will not change on retry.
// 4xx codes are permanent except 408, 425 and 429.
func (e *StatusError) Permanent() bool {
	return IsPermanentStatus(e.StatusCode)
}

// IsPermanentStatus classifies an HTTP status code by retry semantics.
func IsPermanentStatus(code int) bool {
	if code < 400 || code >= 500 {
		return false
	}
	switch code {
	case 408, 425, 429:
		return false
	default:
		return true
	}
}

// StatusCode extracts the HTTP status from err, or 0 if none.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsCircuitOpen checks if an error indicates the circuit breaker is open.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}
