package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/courier/pkg/api"
	"github.com/dmitrymomot/courier/pkg/config"
	"github.com/dmitrymomot/courier/pkg/httpserver"
	"github.com/dmitrymomot/courier/pkg/logger"
)

type appConfig struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"courier"`

	// LogLevel and LogFormat override the APP_ENV preset when set.
	LogLevel  string `env:"LOG_LEVEL"`
	LogFormat string `env:"LOG_FORMAT"`

	// Storage selects the persistence backend: "postgres" or "memory".
	// Memory keeps everything in process and skips Postgres and Redis.
	Storage string `env:"STORAGE" envDefault:"postgres"`

	CallbackSigningSecret string        `env:"CALLBACK_SIGNING_SECRET"`
	CallbackMaxAge        time.Duration `env:"CALLBACK_MAX_AGE" envDefault:"5m"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cfg appConfig
	config.MustLoad(&cfg)

	opts, err := logOptions(cfg)
	if err != nil {
		slog.Error("invalid logging configuration", logger.Error(err))
		os.Exit(1)
	}
	log := logger.New(opts...)
	logger.SetAsDefault(log)

	if err := run(ctx, cfg, log); err != nil {
		log.LogAttrs(ctx, slog.LevelError, "courier stopped with error", logger.Error(err))
		os.Exit(1)
	}
	log.LogAttrs(context.Background(), slog.LevelInfo, "courier stopped")
}

func logOptions(cfg appConfig) ([]logger.Option, error) {
	opts := []logger.Option{
		logger.WithEnvironment(cfg.Env, cfg.ServiceName),
		logger.WithContextExtractors(api.RequestIDExtractor()),
	}
	if cfg.LogLevel != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return nil, fmt.Errorf("LOG_LEVEL: %w", err)
		}
		opts = append(opts, logger.WithLevel(l))
	}
	switch f := logger.Format(cfg.LogFormat); f {
	case "":
	case logger.FormatJSON, logger.FormatText:
		opts = append(opts, logger.WithFormat(f))
	default:
		return nil, fmt.Errorf("LOG_FORMAT: unknown format %q", cfg.LogFormat)
	}
	return opts, nil
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	svc, cleanup, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	var httpCfg httpserver.Config
	if err := config.Load(&httpCfg); err != nil {
		return err
	}
	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(svc.worker.Run(ctx))
	g.Go(srv.RunFunc(ctx, svc.api.Handler()))
	return g.Wait()
}
