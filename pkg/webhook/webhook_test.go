package webhook_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/courier/pkg/webhook"
)

type event struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func TestSender_Send_Success(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "courier-webhook/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))

		var got event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, event{ID: "n1", Title: "hello"}, got)

		w.Header().Set("X-Request-Id", "req-42")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	res, err := webhook.NewSender().Send(context.Background(), server.URL, event{ID: "n1", Title: "hello"},
		webhook.WithIdempotencyKey("key-1"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, res.StatusCode)
	assert.Equal(t, "req-42", res.RequestID())
}

func TestSender_Send_StatusClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status    int
		permanent bool
	}{
		{http.StatusBadRequest, true},
		{http.StatusNotFound, true},
		{http.StatusGone, true},
		{http.StatusRequestTimeout, false},
		{http.StatusTooEarly, false},
		{http.StatusTooManyRequests, false},
		{http.StatusInternalServerError, false},
		{http.StatusServiceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("nope\nreally"))
			}))
			defer server.Close()

			_, err := webhook.NewSender().Send(context.Background(), server.URL, event{ID: "x"})
			require.Error(t, err)
			assert.Equal(t, int32(1), calls.Load(), "sender must not retry")
			assert.Equal(t, tt.status, webhook.StatusCode(err))
			assert.ErrorIs(t, err, webhook.ErrDeliveryFailed)
			if tt.permanent {
				assert.ErrorIs(t, err, webhook.ErrPermanentFailure)
			} else {
				assert.ErrorIs(t, err, webhook.ErrTemporaryFailure)
			}
			assert.Contains(t, err.Error(), "nope really")
		})
	}
}

func TestSender_Send_Timeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	_, err := webhook.NewSender().Send(context.Background(), server.URL, event{ID: "x"},
		webhook.WithTimeout(20*time.Millisecond))
	assert.ErrorIs(t, err, webhook.ErrTimeout)
	assert.ErrorIs(t, err, webhook.ErrTemporaryFailure)
}

func TestSender_Send_InvalidInput(t *testing.T) {
	t.Parallel()

	sender := webhook.NewSender()
	ctx := context.Background()

	_, err := sender.Send(ctx, "", event{})
	assert.ErrorIs(t, err, webhook.ErrInvalidURL)

	_, err = sender.Send(ctx, "ftp://example.com", event{})
	assert.ErrorIs(t, err, webhook.ErrInvalidURL)

	_, err = sender.Send(ctx, "http://", event{})
	assert.ErrorIs(t, err, webhook.ErrInvalidURL)

	_, err = sender.Send(ctx, "http://example.com", nil)
	assert.ErrorIs(t, err, webhook.ErrInvalidPayload)

	_, err = sender.Send(ctx, "http://example.com", make(chan int))
	assert.ErrorIs(t, err, webhook.ErrInvalidPayload)
}

func TestSender_Send_Signature(t *testing.T) {
	t.Parallel()

	const secret = "s3cret"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.NoError(t, webhook.VerifyRequest(secret, r, body, time.Minute))
		assert.ErrorIs(t, webhook.VerifyRequest("other", r, body, time.Minute), webhook.ErrInvalidSignature)
	}))
	defer server.Close()

	_, err := webhook.NewSender().Send(context.Background(), server.URL, event{ID: "x"}, webhook.WithSignature(secret))
	require.NoError(t, err)
}

func TestSender_Send_CircuitBreaker(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cb := webhook.NewCircuitBreaker(2, 1, time.Hour)
	sender := webhook.NewSender()

	for range 2 {
		_, err := sender.Send(context.Background(), server.URL, event{ID: "x"}, webhook.WithCircuitBreaker(cb))
		assert.ErrorIs(t, err, webhook.ErrTemporaryFailure)
	}

	_, err := sender.Send(context.Background(), server.URL, event{ID: "x"}, webhook.WithCircuitBreaker(cb))
	assert.True(t, webhook.IsCircuitOpen(err))
	assert.Equal(t, int32(2), calls.Load())
}

func TestSender_Send_OnDelivery(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var hooked atomic.Bool
	_, err := webhook.NewSender().Send(context.Background(), server.URL, event{ID: "x"},
		webhook.WithOnDelivery(func(url string, res webhook.Result, err error) {
			hooked.Store(true)
			assert.Equal(t, server.URL, url)
			assert.Equal(t, http.StatusOK, res.StatusCode)
			assert.NoError(t, err)
		}))
	require.NoError(t, err)
	assert.True(t, hooked.Load())
}
