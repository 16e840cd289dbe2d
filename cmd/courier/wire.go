package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/courier/pkg/api"
	"github.com/dmitrymomot/courier/pkg/channel"
	"github.com/dmitrymomot/courier/pkg/config"
	"github.com/dmitrymomot/courier/pkg/dedup"
	"github.com/dmitrymomot/courier/pkg/dispatch"
	"github.com/dmitrymomot/courier/pkg/email"
	"github.com/dmitrymomot/courier/pkg/ledger"
	"github.com/dmitrymomot/courier/pkg/logger"
	"github.com/dmitrymomot/courier/pkg/notification"
	"github.com/dmitrymomot/courier/pkg/pg"
	"github.com/dmitrymomot/courier/pkg/redis"
	"github.com/dmitrymomot/courier/pkg/sender"
	"github.com/dmitrymomot/courier/pkg/worker"
)

const (
	storagePostgres = "postgres"
	storageMemory   = "memory"
)

var errUnknownStorage = errors.New("unknown storage backend")

type app struct {
	worker *worker.Worker
	api    *api.API
}

type stores struct {
	notifications notification.Store
	channels      channel.Store
	preferences   channel.PreferenceStore
	deliveries    ledger.Store
	dedup         dedup.Store
	checks        []api.Option
}

// build wires every component. cleanup releases connections and must be
// called once the worker and server have stopped.
func build(ctx context.Context, cfg appConfig, log *slog.Logger) (_ *app, _ func(), err error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	defer func() {
		if err != nil {
			cleanup()
		}
	}()

	st, closeStores, err := buildStores(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, closeStores)

	var senderCfg sender.Config
	if err = config.Load(&senderCfg); err != nil {
		return nil, nil, err
	}
	mailer, provider := buildMailer(ctx, log)
	senders, inApp := sender.Build(senderCfg, mailer, provider, log)
	closers = append(closers, func() { _ = inApp.Close() })

	var workerCfg worker.Config
	if err = config.Load(&workerCfg); err != nil {
		return nil, nil, err
	}

	led := ledger.New(st.deliveries, ledger.WithLogger(log))
	registry := channel.NewRegistry(st.channels,
		channel.WithPreferences(st.preferences),
		channel.WithLogger(log),
	)
	dispatcher := dispatch.New(registry, led,
		dispatch.WithLogger(log),
		dispatch.WithNotificationStore(st.notifications),
		dispatch.WithSenders(senders),
	)

	w, err := worker.New(led, registry, st.notifications, senders,
		worker.WithConfig(workerCfg),
		worker.WithLogger(log),
	)
	if err != nil {
		return nil, nil, err
	}

	apiOpts := append([]api.Option{
		api.WithLogger(log),
		api.WithDedup(st.dedup),
		api.WithDispatcher(dispatcher),
		api.WithChannels(registry),
		api.WithNotifications(st.notifications),
		api.WithStreamer(inApp),
	}, st.checks...)
	if cfg.CallbackSigningSecret != "" {
		apiOpts = append(apiOpts, api.WithSigningSecret(cfg.CallbackSigningSecret, cfg.CallbackMaxAge))
	}
	a, err := api.New(led, apiOpts...)
	if err != nil {
		return nil, nil, err
	}

	log.LogAttrs(ctx, slog.LevelInfo, "courier configured",
		slog.String("storage", cfg.Storage),
		slog.Any("channel_types", senders.Types()),
		slog.String("email_provider", provider),
	)
	return &app{worker: w, api: a}, cleanup, nil
}

func buildStores(ctx context.Context, cfg appConfig, log *slog.Logger) (stores, func(), error) {
	switch cfg.Storage {
	case storageMemory:
		var dedupCfg dedup.Config
		if err := config.Load(&dedupCfg); err != nil {
			return stores{}, func() {}, err
		}
		deliveries := ledger.NewMemoryStore()
		return stores{
			notifications: notification.NewMemoryStore(notification.WithPurgeHook(deliveries.DeleteByNotification)),
			channels:      channel.NewMemoryStore(),
			preferences:   channel.NewMemoryPreferences(),
			deliveries:    deliveries,
			dedup:         dedup.NewMemoryStore(dedupCfg.TTL),
		}, func() {}, nil

	case storagePostgres:
		return buildPersistentStores(ctx, log)

	default:
		return stores{}, func() {}, fmt.Errorf("%w: %q", errUnknownStorage, cfg.Storage)
	}
}

func buildPersistentStores(ctx context.Context, log *slog.Logger) (stores, func(), error) {
	var (
		pgCfg    pg.Config
		redisCfg redis.Config
		dedupCfg dedup.Config
	)
	if err := errors.Join(config.Load(&pgCfg), config.Load(&redisCfg), config.Load(&dedupCfg)); err != nil {
		return stores{}, func() {}, err
	}

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return stores{}, func() {}, err
	}
	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		pool.Close()
		return stores{}, func() {}, err
	}

	rdb, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		pool.Close()
		return stores{}, func() {}, err
	}

	closeAll := func() {
		if err := rdb.Close(); err != nil {
			log.LogAttrs(context.Background(), slog.LevelError, "failed to close redis client", logger.Error(err))
		}
		pool.Close()
	}
	return stores{
		notifications: notification.NewPostgresStore(pool),
		channels:      channel.NewPostgresStore(pool),
		preferences:   channel.NewPostgresPreferences(pool),
		deliveries:    ledger.NewPostgresStore(pool),
		dedup:         dedup.NewRedisStore(rdb, dedupCfg),
		checks: []api.Option{
			api.WithReadinessCheck("postgres", pg.Healthcheck(pool)),
			api.WithReadinessCheck("redis", redis.Healthcheck(rdb)),
		},
	}, closeAll, nil
}

// buildMailer returns the Postmark client when credentials are configured,
// the file-based development sender otherwise, and nil when email is not
// configured at all.
func buildMailer(ctx context.Context, log *slog.Logger) (email.EmailSender, string) {
	var cfg email.Config
	if err := config.Load(&cfg); err != nil {
		log.LogAttrs(ctx, slog.LevelWarn, "email channel disabled", logger.Error(err))
		return nil, ""
	}
	if !cfg.UsePostmark() {
		return email.NewDevSender(cfg.DevOutputDir), "dev"
	}
	client, err := email.NewPostmarkClient(cfg)
	if err != nil {
		log.LogAttrs(ctx, slog.LevelWarn, "email channel disabled", logger.Error(err))
		return nil, ""
	}
	return client, "postmark"
}
