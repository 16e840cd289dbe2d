package webhook

import (
	"net/http"
	"time"
)

// Result describes a single webhook request.
type Result struct {
	StatusCode int
	Header     http.Header
	Duration   time.Duration
}

// RequestID returns the id the endpoint assigned to the request, taken
// from the X-Request-Id response header.
func (r Result) RequestID() string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get("X-Request-Id")
}

// DeliveryHook is called after each request, successful or not.
type DeliveryHook func(url string, result Result, err error)

type sendOptions struct {
	timeout         time.Duration
	headers         map[string]string
	httpClient      *http.Client
	signatureSecret string
	circuitBreaker  *CircuitBreaker
	onDelivery      DeliveryHook
}

func defaultSendOptions() *sendOptions {
	return &sendOptions{
		timeout: 10 * time.Second,
		headers: make(map[string]string),
	}
}

// SendOption is a functional option for configuring webhook sends.
type SendOption func(*sendOptions)

// WithTimeout sets the HTTP request timeout. Default is 10 seconds.
func WithTimeout(timeout time.Duration) SendOption {
	return func(o *sendOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithHeader adds a custom header to the request.
func WithHeader(key, value string) SendOption {
	return func(o *sendOptions) {
		if key != "" && value != "" {
			o.headers[key] = value
		}
	}
}

// WithIdempotencyKey sets the Idempotency-Key header so receivers can drop
// duplicates of an at-least-once delivery.
func WithIdempotencyKey(key string) SendOption {
	return WithHeader("Idempotency-Key", key)
}

// WithBearerToken sets the Authorization header.
func WithBearerToken(token string) SendOption {
	if token == "" {
		return func(*sendOptions) {}
	}
	return WithHeader("Authorization", "Bearer "+token)
}

// WithSignature enables HMAC-SHA256 request signing with the given secret.
func WithSignature(secret string) SendOption {
	return func(o *sendOptions) {
		o.signatureSecret = secret
	}
}

// WithHTTPClient overrides the sender's HTTP client for one request.
func WithHTTPClient(client *http.Client) SendOption {
	return func(o *sendOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithCircuitBreaker guards the request with cb. Reuse one breaker per
// endpoint; see Breakers.
func WithCircuitBreaker(cb *CircuitBreaker) SendOption {
	return func(o *sendOptions) {
		o.circuitBreaker = cb
	}
}

// WithOnDelivery sets a callback invoked after the request completes.
func WithOnDelivery(hook DeliveryHook) SendOption {
	return func(o *sendOptions) {
		o.onDelivery = hook
	}
}
