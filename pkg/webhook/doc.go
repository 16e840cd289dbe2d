// Package webhook posts JSON payloads to HTTP endpoints on behalf of the
// webhook, SMS and push channel senders.
//
// Each Send is a single attempt. Retry scheduling is owned by the delivery
// ledger, so the package only classifies failures: a non-2xx response is a
// *StatusError joined with ErrPermanentFailure (4xx except 408, 425 and 429)
// or ErrTemporaryFailure; network errors and timeouts are temporary.
//
//	res, err := sender.Send(ctx, endpoint, payload,
//		webhook.WithTimeout(5*time.Second),
//		webhook.WithSignature(secret),
//		webhook.WithIdempotencyKey(key),
//		webhook.WithCircuitBreaker(breakers.For(endpoint)),
//	)
//
// # Signatures
//
// WithSignature adds X-Webhook-Signature, X-Webhook-Timestamp and
// X-Webhook-ID headers. The signature is the hex HMAC-SHA256 of
// "<unix timestamp>.<body>". Receivers use VerifyRequest; courier itself
// uses it to authenticate provider status callbacks.
//
// # Circuit breaking
//
// Breakers keeps one CircuitBreaker per endpoint host. Permanent client
// errors count as successes for the breaker since they do not indicate an
// unhealthy endpoint.
package webhook
