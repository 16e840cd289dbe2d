package worker

import (
	"log/slog"
	"time"
)

// Option configures a Worker.
type Option func(*options)

type options struct {
	batchSize     int
	maxConcurrent int
	pollInterval  time.Duration
	maxBackoff    time.Duration
	sendTimeout   time.Duration
	logger        *slog.Logger
}

func defaultOptions() *options {
	return &options{
		batchSize:     100,
		maxConcurrent: 10,
		pollInterval:  5 * time.Second,
		maxBackoff:    time.Minute,
		sendTimeout:   30 * time.Second,
		logger:        slog.Default(),
	}
}

// WithConfig applies every positive value of cfg.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		for _, opt := range []Option{
			WithBatchSize(cfg.BatchSize),
			WithMaxConcurrent(cfg.MaxConcurrent),
			WithPollInterval(cfg.PollInterval),
			WithMaxBackoff(cfg.MaxBackoff),
			WithSendTimeout(cfg.SendTimeout),
		} {
			opt(o)
		}
	}
}

// WithBatchSize sets how many due rows one cycle fetches.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithMaxConcurrent bounds the rows processed at the same time.
func WithMaxConcurrent(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConcurrent = n
		}
	}
}

// WithPollInterval sets the sleep after a cycle that left rows due or found
// nothing to do.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithMaxBackoff caps the delay after consecutive fetch failures.
func WithMaxBackoff(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.maxBackoff = d
		}
	}
}

// WithSendTimeout bounds each sender call.
func WithSendTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.sendTimeout = d
		}
	}
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
