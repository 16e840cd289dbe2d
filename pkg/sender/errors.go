package sender

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownChannelType = errors.New("no sender registered for channel type")
	ErrInvalidAddress     = errors.New("invalid recipient address")
	ErrNotConfigured      = errors.New("sender is not configured")
)

// TransmissionError is a failed attempt to hand a message to a provider.
// It is retryable unless Permanent is set.
type TransmissionError struct {
	Code       string
	StatusCode int
	Permanent  bool
	Err        error
}

func (e *TransmissionError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transmission failed (%s, status %d): %v", e.Code, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transmission failed (%s): %v", e.Code, e.Err)
}

func (e *TransmissionError) Unwrap() error { return e.Err }

// ConfigurationError means the send can never succeed without operator
// action. It is never retried.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err == nil {
		return "sender configuration: " + e.Reason
	}
	return fmt.Sprintf("sender configuration: %s: %v", e.Reason, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func temporary(code string, status int, err error) *TransmissionError {
	return &TransmissionError{Code: code, StatusCode: status, Err: err}
}

func permanent(code string, status int, err error) *TransmissionError {
	return &TransmissionError{Code: code, StatusCode: status, Permanent: true, Err: err}
}

// ShouldRetry classifies err. Configuration errors and permanent
// transmission errors are final; everything else is retried.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return false
	}
	var te *TransmissionError
	if errors.As(err, &te) {
		return !te.Permanent
	}
	return true
}

// ErrorCode returns a short machine-readable code for err.
func ErrorCode(err error) string {
	var te *TransmissionError
	if errors.As(err, &te) {
		return te.Code
	}
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return "configuration"
	}
	if err == nil {
		return ""
	}
	return "unknown"
}

func IsTransmissionError(err error) bool {
	var te *TransmissionError
	return errors.As(err, &te)
}

func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
