// Package worker drains due deliveries from the ledger.
//
// Each cycle fetches a batch of due rows, resolves their channel and
// notification, hands them to the sender registered for the channel type
// and records the outcome. Rows run concurrently up to MaxConcurrent and
// are isolated from each other: errors and panics are logged and recorded
// on the row, never propagated to the batch.
//
// Sender calls use a context detached from the worker lifecycle and bounded
// by SendTimeout, so Stop lets in-flight sends finish and record their
// outcome. The worker fits an errgroup:
//
//	w, err := worker.New(led, channels, notifications, senders, worker.WithConfig(cfg))
//	if err != nil {
//		return err
//	}
//	g.Go(w.Run(ctx))
package worker
