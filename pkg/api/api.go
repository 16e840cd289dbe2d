package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dmitrymomot/courier/pkg/channel"
	"github.com/dmitrymomot/courier/pkg/dedup"
	"github.com/dmitrymomot/courier/pkg/httpserver"
	"github.com/dmitrymomot/courier/pkg/ledger"
	"github.com/dmitrymomot/courier/pkg/logger"
	"github.com/dmitrymomot/courier/pkg/notification"
)

const (
	DefaultMaxBodySize      = 1 << 20
	DefaultReadinessTimeout = 5 * time.Second
	DefaultSignatureMaxAge  = 5 * time.Minute
	MaxPendingLimit         = 1000
)

// Dispatcher stores a notification and fans it out. dispatch.Dispatcher
// implements it.
type Dispatcher interface {
	Send(ctx context.Context, n notification.Notification) (notification.Notification, []ledger.Delivery, error)
}

// ChannelManager manages user channels. channel.Registry implements it.
type ChannelManager interface {
	Add(ctx context.Context, p channel.AddParams) (channel.Channel, error)
	Verify(ctx context.Context, id uuid.UUID, token string) (channel.Channel, error)
	Deactivate(ctx context.Context, id uuid.UUID) (channel.Channel, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID, opts channel.ListOptions) ([]channel.Channel, error)
	Preference(ctx context.Context, userID uuid.UUID) (channel.Preference, error)
	SetPreference(ctx context.Context, userID uuid.UUID, p channel.Preference) (channel.Preference, error)
}

// API serves the delivery ledger over HTTP for operators and provider
// callbacks.
type API struct {
	ledger           *ledger.Ledger
	dispatcher       Dispatcher
	channels         ChannelManager
	notifications    notification.Store
	streamer         Streamer
	dedup            dedup.Store
	signingSecret    string
	signatureMaxAge  time.Duration
	checks           map[string]httpserver.Check
	readinessTimeout time.Duration
	maxBodySize      int64
	logger           *slog.Logger
}

type Option func(*API)

// WithDispatcher enables POST /notifications.
func WithDispatcher(d Dispatcher) Option {
	return func(a *API) {
		a.dispatcher = d
	}
}

// WithChannels enables the channel management endpoints.
func WithChannels(m ChannelManager) Option {
	return func(a *API) {
		a.channels = m
	}
}

// WithNotifications enables the per-user inbox endpoints.
func WithNotifications(s notification.Store) Option {
	return func(a *API) {
		a.notifications = s
	}
}

// WithStreamer enables GET /users/{userID}/stream.
func WithStreamer(s Streamer) Option {
	return func(a *API) {
		a.streamer = s
	}
}

// WithDedup drops provider callbacks whose event_id was already handled.
func WithDedup(s dedup.Store) Option {
	return func(a *API) {
		a.dedup = s
	}
}

// WithSigningSecret requires callbacks to carry a valid webhook signature
// no older than maxAge. A zero maxAge disables the age check.
func WithSigningSecret(secret string, maxAge time.Duration) Option {
	return func(a *API) {
		a.signingSecret = secret
		a.signatureMaxAge = maxAge
	}
}

// WithReadinessCheck adds a named dependency check to /readyz.
func WithReadinessCheck(name string, check httpserver.Check) Option {
	return func(a *API) {
		if check != nil {
			a.checks[name] = check
		}
	}
}

func WithReadinessTimeout(d time.Duration) Option {
	return func(a *API) {
		if d > 0 {
			a.readinessTimeout = d
		}
	}
}

func WithMaxBodySize(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxBodySize = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.logger = l
		}
	}
}

// New builds the API on top of led.
func New(led *ledger.Ledger, opts ...Option) (*API, error) {
	if led == nil {
		return nil, ErrLedgerNil
	}
	a := &API{
		ledger:           led,
		checks:           make(map[string]httpserver.Check),
		readinessTimeout: DefaultReadinessTimeout,
		signatureMaxAge:  DefaultSignatureMaxAge,
		maxBodySize:      DefaultMaxBodySize,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(logger.Component("api"))
	return a, nil
}

// Handler returns the router with every endpoint mounted.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID, middleware.Recoverer, a.accessLog)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = writeJSON(w, http.StatusNotFound, Response{Error: &ErrorDetail{
			Code:    "not_found",
			Message: http.StatusText(http.StatusNotFound),
		}})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = writeJSON(w, http.StatusMethodNotAllowed, Response{Error: &ErrorDetail{
			Code:    "method_not_allowed",
			Message: http.StatusText(http.StatusMethodNotAllowed),
		}})
	})

	r.Get("/healthz", httpserver.Liveness())
	r.Get("/readyz", httpserver.Readiness(a.logger, a.readinessTimeout, a.checks))

	r.Route("/deliveries", func(r chi.Router) {
		r.Get("/pending", a.listPending)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.getDelivery)
			r.Post("/delivered", a.markDelivered)
			r.Post("/failed", a.markFailed)
			r.Post("/bounced", a.markBounced)
		})
	})
	r.Route("/notifications", func(r chi.Router) {
		if a.dispatcher != nil {
			r.Post("/", a.createNotification)
		}
		r.Get("/{id}/deliveries", a.listDeliveries)
		r.Get("/{id}/statistics", a.statistics)
	})

	if a.channels != nil {
		r.Route("/channels/{id}", func(r chi.Router) {
			r.Post("/verify", a.verifyChannel)
			r.Post("/deactivate", a.deactivateChannel)
			r.Delete("/", a.deleteChannel)
		})
	}
	if a.channels != nil || a.notifications != nil || a.streamer != nil {
		r.Route("/users/{userID}", func(r chi.Router) {
			if a.channels != nil {
				r.Get("/channels", a.listChannels)
				r.Post("/channels", a.addChannel)
				r.Get("/preferences", a.getPreference)
				r.Put("/preferences", a.putPreference)
			}
			if a.notifications != nil {
				r.Get("/notifications", a.listNotifications)
				r.Post("/notifications/read", a.markRead)
				r.Post("/notifications/{id}/dismiss", a.dismissNotification)
				r.Delete("/notifications/{id}", a.deleteNotification)
			}
			if a.streamer != nil {
				r.Get("/stream", a.stream)
			}
		})
	}

	return r
}

func (a *API) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		a.logger.LogAttrs(r.Context(), slog.LevelDebug, "request served",
			logger.RequestID(RequestIDFromContext(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			logger.Duration(time.Since(start)),
		)
	})
}
