// Package ledger tracks the delivery of notifications over channels.
//
// Each (notification, channel) pair owns one Delivery row that moves through
// a small lifecycle:
//
//	pending ──deliver──▶ delivered
//	pending ──fail────▶ pending   (retryable, below MaxRetries)
//	pending ──fail────▶ failed
//	pending ──bounce──▶ bounced
//
// Retries follow a fixed backoff of 1, 5 and 15 minutes. Delivered, failed
// and bounced rows never leave their state; outcomes reported for them are
// ignored, except that deliver on a delivered row backfills provider data.
//
// Writes are conditional on the row version that was read, so two callers
// racing on the same delivery cannot both apply an outcome:
//
//	led := ledger.New(ledger.NewPostgresStore(db), ledger.WithLogger(log))
//	d, err := led.MarkFailed(ctx, id, ledger.FailureReport{
//		Message:     "upstream timeout",
//		ShouldRetry: true,
//	})
package ledger
