// Package httpserver runs an http.Handler with graceful shutdown and
// provides liveness and readiness handlers.
//
// Run blocks until its context is cancelled, then shuts the server down
// within the configured timeout. Signal handling belongs to the caller:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(srv.RunFunc(ctx, router))
//
// Listen errors are wrapped with ErrStart and shutdown errors with
// ErrShutdown.
package httpserver
