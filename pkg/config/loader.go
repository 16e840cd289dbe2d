package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// entry holds the parsed value for one config type.
type entry struct {
	once  sync.Once
	value any
	err   error
}

var (
	entries sync.Map // type name -> *entry

	dotenvOnce sync.Once
)

// Load parses environment variables into v using `env` struct tags.
//
// A .env file in the working directory is read once per process if present.
// Each config type is parsed once; later calls for the same type copy the
// cached value, so every package sees the same settings.
//
//	type WorkerConfig struct {
//		BatchSize    int           `env:"WORKER_BATCH_SIZE" envDefault:"50"`
//		PollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"15s"`
//	}
//
//	var cfg WorkerConfig
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	dotenvOnce.Do(func() {
		// A missing .env file is the normal case outside local development.
		_ = godotenv.Load()
	})

	raw, _ := entries.LoadOrStore(typeName[T](), &entry{})
	e := raw.(*entry)

	e.once.Do(func() {
		var parsed T
		if err := env.Parse(&parsed); err != nil {
			e.err = errors.Join(ErrParsingConfig, err)
			return
		}
		e.value = parsed
	})

	if e.err != nil {
		return e.err
	}

	cached, ok := e.value.(T)
	if !ok {
		return ErrConfigNotLoaded
	}
	*v = cached
	return nil
}

// MustLoad works like Load but panics on failure. Use it for settings the
// process cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

func typeName[T any]() string {
	t := reflect.TypeFor[T]()
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}
