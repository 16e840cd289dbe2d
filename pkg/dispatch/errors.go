package dispatch

import "errors"

var (
	ErrMissingNotificationID = errors.New("notification has no id")
	ErrFanOutFailed          = errors.New("failed to create deliveries")
	ErrNoNotificationStore   = errors.New("dispatcher has no notification store")
)
