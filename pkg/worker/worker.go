package worker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/courier/pkg/channel"
	"github.com/dmitrymomot/courier/pkg/ledger"
	"github.com/dmitrymomot/courier/pkg/logger"
	"github.com/dmitrymomot/courier/pkg/notification"
	"github.com/dmitrymomot/courier/pkg/sender"
)

// ChannelGetter resolves the channel of a delivery. channel.Registry
// implements it.
type ChannelGetter interface {
	Get(ctx context.Context, id uuid.UUID) (channel.Channel, error)
}

// NotificationGetter resolves the notification of a delivery.
// notification.Store implements it.
type NotificationGetter interface {
	Get(ctx context.Context, id uuid.UUID) (notification.Notification, error)
}

// SenderLookup resolves the sender of a channel type. sender.Registry
// implements it.
type SenderLookup interface {
	Lookup(t channel.Type) (sender.Sender, error)
}

// Worker drains due deliveries from the ledger and drives them through
// channel senders.
type Worker struct {
	ledger        *ledger.Ledger
	channels      ChannelGetter
	notifications NotificationGetter
	senders       SenderLookup

	workerID uuid.UUID
	sem      chan struct{}
	opts     *options
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(led *ledger.Ledger, channels ChannelGetter, notifications NotificationGetter, senders SenderLookup, opts ...Option) (*Worker, error) {
	switch {
	case led == nil:
		return nil, ErrLedgerNil
	case senders == nil:
		return nil, ErrSendersNil
	case channels == nil || notifications == nil:
		return nil, ErrLookupsNil
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	id := uuid.New()
	return &Worker{
		ledger:        led,
		channels:      channels,
		notifications: notifications,
		senders:       senders,
		workerID:      id,
		sem:           make(chan struct{}, o.maxConcurrent),
		opts:          o,
		logger:        o.logger.With(logger.Component("delivery_worker"), logger.WorkerID(id)),
	}, nil
}

// ID identifies the worker in logs.
func (w *Worker) ID() uuid.UUID { return w.workerID }

// Start runs the polling loop in the background until Stop is called or ctx
// is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return ErrAlreadyStarted
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(loopCtx, w.done)

	hostname, _ := os.Hostname()
	w.logger.LogAttrs(ctx, slog.LevelInfo, "worker started",
		slog.String("hostname", hostname),
		slog.Int("pid", os.Getpid()),
		slog.Int("batch_size", w.opts.batchSize),
		slog.Int("max_concurrent", cap(w.sem)),
	)
	return nil
}

// Stop ends the loop and waits for rows in flight. No new batch is fetched
// after Stop is called.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return ErrNotStarted
	}
	cancel, done := w.cancel, w.done
	w.cancel = nil
	w.mu.Unlock()

	w.logger.LogAttrs(context.Background(), slog.LevelInfo, "worker stopping, waiting for in-flight deliveries")
	cancel()
	<-done
	w.logger.LogAttrs(context.Background(), slog.LevelInfo, "worker stopped")
	return nil
}

// Run starts the worker and returns a function suitable for errgroup.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return w.Stop()
	}
}

func (w *Worker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	var failures int
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		c, err := w.cycle(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			failures++
			wait = w.backoff(failures)
			w.logger.LogAttrs(ctx, slog.LevelError, "delivery cycle failed",
				slog.Int("consecutive_failures", failures),
				slog.Duration("retry_in", wait),
				logger.Error(err),
			)
		case c.started > 0 && c.recorded == c.started:
			// Every row moved on; more may be due right away.
			failures = 0
		default:
			failures = 0
			wait = w.opts.pollInterval
		}
		timer.Reset(wait)
	}
}

// backoff doubles the poll interval per consecutive failure up to the cap.
func (w *Worker) backoff(failures int) time.Duration {
	d := w.opts.pollInterval
	for i := 1; i < failures && d < w.opts.maxBackoff; i++ {
		d *= 2
	}
	return min(d, w.opts.maxBackoff)
}

// ProcessBatch runs one cycle: it fetches up to the batch size of due rows
// and processes them with bounded concurrency. It returns the number of rows
// processed. Only the fetch can fail; per-row errors are logged. Once ctx is
// done no further row of the batch is started.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	c, err := w.cycle(ctx)
	return c.started, err
}

type cycleResult struct {
	started  int
	recorded int
}

func (w *Worker) cycle(ctx context.Context) (cycleResult, error) {
	rows, err := w.ledger.GetPending(ctx, w.opts.batchSize)
	if err != nil {
		return cycleResult{}, errors.Join(ErrFetchFailed, err)
	}
	if len(rows) == 0 {
		return cycleResult{}, nil
	}

	lk := newLookups(w.channels, w.notifications, len(rows))
	var (
		wg       sync.WaitGroup
		started  int
		recorded atomic.Int64
	)
loop:
	for _, row := range rows {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break loop
		case w.sem <- struct{}{}:
		}
		started++
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-w.sem }()
			if w.process(context.WithoutCancel(ctx), row, lk) {
				recorded.Add(1)
			}
		}()
	}
	wg.Wait()

	w.logger.LogAttrs(ctx, slog.LevelDebug, "delivery cycle finished",
		slog.Int("due", len(rows)),
		slog.Int("processed", started),
		slog.Int64("recorded", recorded.Load()),
	)
	return cycleResult{started: started, recorded: int(recorded.Load())}, nil
}
