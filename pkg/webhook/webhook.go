package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const userAgent = "courier-webhook/1.0"

// Sender posts JSON payloads to HTTP endpoints. It makes exactly one attempt
// per call; retry scheduling belongs to the caller.
type Sender struct {
	client *http.Client
}

// NewSender creates a webhook sender with a pooled HTTP client.
func NewSender() *Sender {
	return &Sender{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// NewSenderWithClient creates a webhook sender with a custom HTTP client.
func NewSenderWithClient(client *http.Client) *Sender {
	if client == nil {
		return NewSender()
	}
	return &Sender{client: client}
}

// Send marshals data to JSON and POSTs it to webhookURL.
//
// A non-2xx answer yields a *StatusError joined with ErrPermanentFailure or
// ErrTemporaryFailure depending on the status. Network errors and timeouts
// are temporary.
func (s *Sender) Send(ctx context.Context, webhookURL string, data any, opts ...SendOption) (Result, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return Result{}, errors.Join(ErrInvalidPayload, err)
	}
	if err := validateURL(webhookURL); err != nil {
		return Result{}, err
	}
	if len(payload) == 0 || string(payload) == "null" {
		return Result{}, fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}

	options := defaultSendOptions()
	for _, opt := range opts {
		opt(options)
	}

	client := s.client
	if options.httpClient != nil {
		client = options.httpClient
	}

	if cb := options.circuitBreaker; cb != nil && !cb.Allow() {
		return Result{}, ErrCircuitOpen
	}

	result, err := s.do(ctx, client, webhookURL, payload, options)

	if cb := options.circuitBreaker; cb != nil {
		// Permanent client errors say nothing about endpoint health.
		if err == nil || errors.Is(err, ErrPermanentFailure) {
			cb.RecordSuccess()
		} else {
			cb.RecordFailure()
		}
	}
	if options.onDelivery != nil {
		options.onDelivery(webhookURL, result, err)
	}

	return result, err
}

func validateURL(webhookURL string) error {
	if webhookURL == "" {
		return fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}
	u, err := url.Parse(webhookURL)
	if err != nil {
		return errors.Join(ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	return nil
}

func (s *Sender) do(ctx context.Context, client *http.Client, webhookURL string, payload []byte, options *sendOptions) (Result, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, options.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		return Result{Duration: time.Since(start)}, errors.Join(ErrInvalidURL, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range options.headers {
		req.Header.Set(k, v)
	}
	if options.signatureSecret != "" {
		sig, err := Sign(options.signatureSecret, payload, time.Now())
		if err != nil {
			return Result{Duration: time.Since(start)}, err
		}
		sig.Apply(req.Header)
	}

	resp, err := client.Do(req)
	result := Result{Duration: time.Since(start)}
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return result, errors.Join(ErrDeliveryFailed, ErrTemporaryFailure, ErrTimeout, err)
		}
		return result, errors.Join(ErrDeliveryFailed, ErrTemporaryFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode
	result.Header = resp.Header

	// 64KB is enough for an error excerpt.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return result, nil
	}

	se := &StatusError{StatusCode: resp.StatusCode, Body: excerpt(body)}
	if se.Permanent() {
		return result, errors.Join(ErrDeliveryFailed, ErrPermanentFailure, se)
	}
	return result, errors.Join(ErrDeliveryFailed, ErrTemporaryFailure, se)
}

// excerpt flattens a response body into one short line for logs.
func excerpt(body []byte) string {
	s := strings.TrimSpace(strings.ReplaceAll(string(body), "\n", " "))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
