// Package sender transmits notifications over concrete channels.
//
// Every channel type maps to one Sender in a Registry fixed at startup:
// email goes through pkg/email (Postmark or the development file sender),
// webhooks through pkg/webhook, SMS and push through an HTTP gateway (or a
// LogSender when none is configured), and in-app messages through per-user
// broadcasters.
//
// Senders make one attempt per call. Failures are classified rather than
// retried:
//
//	res, err := s.Send(ctx, addr, n, sender.WithDeliveryID(d.ID), sender.WithAttempt(d.AttemptCount))
//	if err != nil {
//		retry := sender.ShouldRetry(err) // false for permanent and configuration errors
//		...
//	}
package sender
