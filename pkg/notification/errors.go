package notification

import "errors"

var (
	ErrNotFound            = errors.New("notification not found")
	ErrInvalidNotification = errors.New("invalid notification")
	ErrAlreadyExists       = errors.New("notification already exists")
)
