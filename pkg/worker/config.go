package worker

import "time"

// Config holds the delivery worker settings.
type Config struct {
	BatchSize     int           `env:"WORKER_BATCH_SIZE" envDefault:"100"`
	MaxConcurrent int           `env:"WORKER_MAX_CONCURRENT" envDefault:"10"`
	PollInterval  time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"5s"`
	MaxBackoff    time.Duration `env:"WORKER_MAX_BACKOFF" envDefault:"1m"`
	SendTimeout   time.Duration `env:"WORKER_SEND_TIMEOUT" envDefault:"30s"`
}
