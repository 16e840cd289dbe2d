package worker

import "errors"

var (
	ErrLedgerNil      = errors.New("worker: ledger is required")
	ErrSendersNil     = errors.New("worker: sender lookup is required")
	ErrLookupsNil     = errors.New("worker: channel and notification lookups are required")
	ErrAlreadyStarted = errors.New("worker: already started")
	ErrNotStarted     = errors.New("worker: not started")
	ErrFetchFailed    = errors.New("worker: failed to fetch due deliveries")
	ErrPanic          = errors.New("worker: panic while processing delivery")
)
