package dedup

import "time"

type Config struct {
	TTL       time.Duration `env:"DEDUP_TTL" envDefault:"24h"`                   // How long a handled event id is remembered.
	KeyPrefix string        `env:"DEDUP_KEY_PREFIX" envDefault:"courier:dedup:"` // Namespace for Redis keys.
}
