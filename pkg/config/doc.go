// Package config loads typed configuration structs from environment
// variables (github.com/caarlos0/env) with optional .env support
// (github.com/joho/godotenv).
//
// Each courier package that needs settings declares its own Config struct
// with `env` and `envDefault` tags; cmd/courier loads them through Load or
// MustLoad. Parsing happens once per type and the result is cached for the
// lifetime of the process.
package config
