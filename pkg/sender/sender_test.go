package sender_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/courier/pkg/channel"
	"github.com/dmitrymomot/courier/pkg/email"
	"github.com/dmitrymomot/courier/pkg/logger"
	"github.com/dmitrymomot/courier/pkg/notification"
	"github.com/dmitrymomot/courier/pkg/sender"
	"github.com/dmitrymomot/courier/pkg/webhook"
)

func testNotification() notification.Notification {
	return notification.Notification{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		Title:    "Build finished",
		Body:     "Pipeline #42 passed",
		Priority: notification.PriorityHigh,
		Source:   "ci",
		Payload:  map[string]any{"pipeline": "42"},
	}
}

func TestShouldRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
		code string
	}{
		{name: "nil", err: nil, want: false, code: ""},
		{name: "plain error", err: errors.New("boom"), want: true, code: "unknown"},
		{name: "temporary", err: &sender.TransmissionError{Code: "timeout"}, want: true, code: "timeout"},
		{name: "permanent", err: &sender.TransmissionError{Code: "http_404", StatusCode: 404, Permanent: true}, want: false, code: "http_404"},
		{name: "configuration", err: &sender.ConfigurationError{Reason: "x"}, want: false, code: "configuration"},
		{name: "wrapped permanent", err: fmt.Errorf("send: %w", &sender.TransmissionError{Code: "rejected", Permanent: true}), want: false, code: "rejected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, sender.ShouldRetry(tt.err))
			assert.Equal(t, tt.code, sender.ErrorCode(tt.err))
		})
	}
}

func TestRegistry_Lookup(t *testing.T) {
	t.Parallel()

	logSender := sender.NewLogSender("sms", logger.Discard())
	r := sender.NewRegistry(sender.WithSender(channel.TypeSMS, logSender))

	s, err := r.Lookup(channel.TypeSMS)
	require.NoError(t, err)
	assert.Same(t, logSender, s)

	_, err = r.Lookup(channel.TypePush)
	require.Error(t, err)
	assert.True(t, sender.IsConfigurationError(err))
	assert.ErrorIs(t, err, sender.ErrUnknownChannelType)
	assert.False(t, sender.ShouldRetry(err))

	assert.Equal(t, []channel.Type{channel.TypeSMS}, r.Types())
}

func TestBuild(t *testing.T) {
	t.Parallel()

	cfg := sender.Config{WebhookTimeout: time.Second, BreakerFailureThreshold: 5, BreakerSuccessThreshold: 1, BreakerRecoveryTimeout: time.Second, InAppBufferSize: 4, InAppMaxUsers: 10}

	withoutMail, inApp := sender.Build(cfg, nil, "", logger.Discard())
	t.Cleanup(func() { _ = inApp.Close() })
	assert.ElementsMatch(t,
		[]channel.Type{channel.TypeSMS, channel.TypePush, channel.TypeWebhook, channel.TypeInApp},
		withoutMail.Types(),
	)
	s, err := withoutMail.Lookup(channel.TypeInApp)
	require.NoError(t, err)
	assert.Same(t, inApp, s)
	s, err = withoutMail.Lookup(channel.TypeSMS)
	require.NoError(t, err)
	assert.IsType(t, &sender.LogSender{}, s)

	cfg.PushGatewayURL = "https://push.example.com/send"
	withMail, inApp2 := sender.Build(cfg, mailerFunc(nil), "postmark", logger.Discard())
	t.Cleanup(func() { _ = inApp2.Close() })
	assert.Len(t, withMail.Types(), len(channel.Types))
	s, err = withMail.Lookup(channel.TypePush)
	require.NoError(t, err)
	assert.IsType(t, &sender.GatewaySender{}, s)
}

type mailerFunc func(ctx context.Context, p email.SendEmailParams) (string, error)

func (f mailerFunc) SendEmail(ctx context.Context, p email.SendEmailParams) (string, error) {
	return f(ctx, p)
}

func TestEmailSender(t *testing.T) {
	t.Parallel()

	n := testNotification()
	deliveryID := uuid.New()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		var got email.SendEmailParams
		s := sender.NewEmailSender(mailerFunc(func(_ context.Context, p email.SendEmailParams) (string, error) {
			got = p
			return "pm-123", nil
		}), "postmark")

		res, err := s.Send(context.Background(), "user@example.com", n, sender.WithDeliveryID(deliveryID))
		require.NoError(t, err)
		assert.Equal(t, sender.Result{Provider: "postmark", MessageID: "pm-123"}, res)
		assert.Equal(t, "user@example.com", got.SendTo)
		assert.Equal(t, n.Title, got.Subject)
		assert.Equal(t, n.Body, got.BodyText)
		assert.Equal(t, "ci", got.Tag)
		assert.Equal(t, n.ID.String(), got.Metadata["notification_id"])
		assert.Equal(t, deliveryID.String(), got.Metadata["delivery_id"])
	})

	tests := []struct {
		name      string
		address   string
		err       error
		code      string
		retryable bool
	}{
		{name: "invalid address", address: "not-an-email", code: "invalid_address", retryable: false},
		{name: "rejected", address: "user@example.com", err: errors.Join(email.ErrFailedToSendEmail, email.ErrRejected), code: "rejected", retryable: false},
		{name: "invalid params", address: "user@example.com", err: email.ErrInvalidParams, code: "invalid_params", retryable: false},
		{name: "transport", address: "user@example.com", err: errors.Join(email.ErrFailedToSendEmail, errors.New("connection reset")), code: "provider_error", retryable: true},
		{name: "deadline", address: "user@example.com", err: context.DeadlineExceeded, code: "timeout", retryable: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := sender.NewEmailSender(mailerFunc(func(context.Context, email.SendEmailParams) (string, error) {
				return "", tt.err
			}), "")
			_, err := s.Send(context.Background(), tt.address, n)
			require.Error(t, err)
			assert.True(t, sender.IsTransmissionError(err))
			assert.Equal(t, tt.code, sender.ErrorCode(err))
			assert.Equal(t, tt.retryable, sender.ShouldRetry(err))
		})
	}

	t.Run("body falls back to title", func(t *testing.T) {
		t.Parallel()

		var got email.SendEmailParams
		s := sender.NewEmailSender(mailerFunc(func(_ context.Context, p email.SendEmailParams) (string, error) {
			got = p
			return "id", nil
		}), "")
		noBody := n
		noBody.Body = ""
		res, err := s.Send(context.Background(), "user@example.com", noBody)
		require.NoError(t, err)
		assert.Equal(t, "email", res.Provider)
		assert.Equal(t, n.Title, got.BodyText)
	})
}

func TestEmailSender_WithDevSender(t *testing.T) {
	t.Parallel()

	s := sender.NewEmailSender(email.NewDevSender(t.TempDir()), "dev")
	res, err := s.Send(context.Background(), "user@example.com", testNotification())
	require.NoError(t, err)
	assert.Equal(t, "dev", res.Provider)
	assert.NotEmpty(t, res.MessageID)
}

func TestWebhookSender(t *testing.T) {
	t.Parallel()

	t.Run("posts payload and reads request id", func(t *testing.T) {
		t.Parallel()

		n := testNotification()
		deliveryID := uuid.New()
		var (
			mu      sync.Mutex
			headers http.Header
			body    []byte
		)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			headers = r.Header.Clone()
			body, _ = io.ReadAll(r.Body)
			mu.Unlock()
			w.Header().Set("X-Request-Id", "req-1")
			w.WriteHeader(http.StatusAccepted)
		}))
		t.Cleanup(srv.Close)

		s := sender.NewWebhookSender(nil, sender.WithSigningSecret("s3cret"), sender.WithWebhookTimeout(time.Second))
		res, err := s.Send(context.Background(), srv.URL, n, sender.WithDeliveryID(deliveryID), sender.WithAttempt(2))
		require.NoError(t, err)
		assert.Equal(t, "webhook", res.Provider)
		assert.Equal(t, "req-1", res.MessageID)
		assert.Equal(t, http.StatusAccepted, res.Metadata["status_code"])

		mu.Lock()
		defer mu.Unlock()
		var payload sender.WebhookPayload
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, n.ID, payload.NotificationID)
		assert.Equal(t, n.Title, payload.Title)
		assert.Equal(t, n.Body, payload.Message)
		assert.Equal(t, "42", payload.Data["pipeline"])
		assert.Equal(t, deliveryID.String()+"-2", headers.Get("Idempotency-Key"))

		sig, err := webhook.ParseSignature(headers)
		require.NoError(t, err)
		require.NoError(t, webhook.Verify("s3cret", body, sig, time.Minute))
	})

	statusTests := []struct {
		status    int
		retryable bool
	}{
		{status: http.StatusBadRequest, retryable: false},
		{status: http.StatusGone, retryable: false},
		{status: http.StatusRequestTimeout, retryable: true},
		{status: http.StatusTooManyRequests, retryable: true},
		{status: http.StatusInternalServerError, retryable: true},
		{status: http.StatusServiceUnavailable, retryable: true},
	}
	for _, tt := range statusTests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			t.Cleanup(srv.Close)

			_, err := sender.NewWebhookSender(nil).Send(context.Background(), srv.URL, testNotification())
			require.Error(t, err)

			var te *sender.TransmissionError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.status, te.StatusCode)
			assert.Equal(t, fmt.Sprintf("http_%d", tt.status), te.Code)
			assert.Equal(t, tt.retryable, sender.ShouldRetry(err))
		})
	}

	t.Run("invalid url is permanent", func(t *testing.T) {
		t.Parallel()

		_, err := sender.NewWebhookSender(nil).Send(context.Background(), "ftp://example.com", testNotification())
		require.Error(t, err)
		assert.ErrorIs(t, err, sender.ErrInvalidAddress)
		assert.False(t, sender.ShouldRetry(err))
	})

	t.Run("timeout is retryable", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		t.Cleanup(func() {
			close(release)
			srv.Close()
		})

		_, err := sender.NewWebhookSender(nil, sender.WithWebhookTimeout(50*time.Millisecond)).
			Send(context.Background(), srv.URL, testNotification())
		require.Error(t, err)
		assert.Equal(t, "timeout", sender.ErrorCode(err))
		assert.True(t, sender.ShouldRetry(err))
	})

	t.Run("open circuit short-circuits", func(t *testing.T) {
		t.Parallel()

		var calls int
		var mu sync.Mutex
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			mu.Lock()
			calls++
			mu.Unlock()
			w.WriteHeader(http.StatusBadGateway)
		}))
		t.Cleanup(srv.Close)

		s := sender.NewWebhookSender(nil, sender.WithBreakers(webhook.NewBreakers(2, 1, time.Hour)))
		for range 2 {
			_, err := s.Send(context.Background(), srv.URL, testNotification())
			require.Error(t, err)
		}
		_, err := s.Send(context.Background(), srv.URL, testNotification())
		require.Error(t, err)
		assert.Equal(t, "circuit_open", sender.ErrorCode(err))
		assert.True(t, sender.ShouldRetry(err))

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 2, calls)
	})
}

func TestGatewaySender(t *testing.T) {
	t.Parallel()

	t.Run("posts message with bearer token", func(t *testing.T) {
		t.Parallel()

		n := testNotification()
		var (
			mu   sync.Mutex
			auth string
			msg  sender.GatewayMessage
		)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			auth = r.Header.Get("Authorization")
			_ = json.NewDecoder(r.Body).Decode(&msg)
			mu.Unlock()
			w.Header().Set("X-Request-Id", "sms-9")
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(srv.Close)

		s := sender.NewGatewaySender("sms", srv.URL, "tok", nil)
		res, err := s.Send(context.Background(), "+15555550100", n)
		require.NoError(t, err)
		assert.Equal(t, "sms", res.Provider)
		assert.Equal(t, "sms-9", res.MessageID)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "Bearer tok", auth)
		assert.Equal(t, "+15555550100", msg.To)
		assert.Equal(t, n.ID, msg.NotificationID)
		assert.Equal(t, notification.PriorityHigh, msg.Priority)
	})

	t.Run("missing url is a configuration error", func(t *testing.T) {
		t.Parallel()

		_, err := sender.NewGatewaySender("push", "", "", nil).Send(context.Background(), "device-token", testNotification())
		require.Error(t, err)
		assert.True(t, sender.IsConfigurationError(err))
		assert.False(t, sender.ShouldRetry(err))
	})

	t.Run("empty address is permanent", func(t *testing.T) {
		t.Parallel()

		_, err := sender.NewGatewaySender("push", "https://push.example.com", "", nil).Send(context.Background(), "", testNotification())
		require.ErrorIs(t, err, sender.ErrInvalidAddress)
		assert.False(t, sender.ShouldRetry(err))
	})
}

func TestLogSender(t *testing.T) {
	t.Parallel()

	res, err := sender.NewLogSender("push", logger.Discard()).Send(context.Background(), "device", testNotification())
	require.NoError(t, err)
	assert.Equal(t, "push", res.Provider)
	assert.NotEmpty(t, res.MessageID)
}

func TestInAppSender(t *testing.T) {
	t.Parallel()

	t.Run("publishes to subscribers", func(t *testing.T) {
		t.Parallel()

		s := sender.NewInAppSender(4, sender.WithInAppLogger(logger.Discard()))
		t.Cleanup(func() { _ = s.Close() })

		n := testNotification()
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		sub := s.Subscribe(ctx, n.UserID)

		res, err := s.Send(context.Background(), n.UserID.String(), n)
		require.NoError(t, err)
		assert.Equal(t, "in_app", res.Provider)
		assert.Equal(t, n.ID.String(), res.MessageID)
		assert.Equal(t, 1, res.Metadata["listeners"])

		select {
		case msg := <-sub.Receive():
			assert.Equal(t, n.ID, msg.Data.ID)
		case <-time.After(time.Second):
			t.Fatal("no message received")
		}
	})

	t.Run("succeeds without listeners", func(t *testing.T) {
		t.Parallel()

		s := sender.NewInAppSender(1)
		t.Cleanup(func() { _ = s.Close() })

		res, err := s.Send(context.Background(), "", testNotification())
		require.NoError(t, err)
		assert.Equal(t, 0, res.Metadata["listeners"])
	})

	t.Run("evicted user is closed", func(t *testing.T) {
		t.Parallel()

		s := sender.NewInAppSender(1, sender.WithMaxUsers(1), sender.WithInAppLogger(logger.Discard()))
		t.Cleanup(func() { _ = s.Close() })

		first := testNotification()
		sub := s.Subscribe(context.Background(), first.UserID)
		_, err := s.Send(context.Background(), "", testNotification())
		require.NoError(t, err)

		select {
		case _, ok := <-sub.Receive():
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("subscriber was not closed")
		}
	})
}
