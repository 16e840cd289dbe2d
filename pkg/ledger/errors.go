package ledger

import "errors"

var (
	ErrDeliveryNotFound    = errors.New("delivery not found")
	ErrDuplicateDelivery   = errors.New("delivery already exists for notification and channel")
	ErrConflict            = errors.New("delivery was modified concurrently")
	ErrUnknownNotification = errors.New("notification does not exist")
)
