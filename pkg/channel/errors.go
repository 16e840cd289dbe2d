package channel

import "errors"

var (
	ErrNotFound          = errors.New("channel not found")
	ErrUnknownType       = errors.New("unknown channel type")
	ErrInvalidAddress    = errors.New("invalid channel address")
	ErrInvalidToken      = errors.New("invalid verification token")
	ErrAlreadyVerified   = errors.New("channel already verified")
	ErrDuplicateChannel  = errors.New("channel already registered")
	ErrInvalidPreference = errors.New("invalid preference")
)
