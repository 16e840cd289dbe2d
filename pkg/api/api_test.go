package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/courier/pkg/api"
	"github.com/dmitrymomot/courier/pkg/channel"
	"github.com/dmitrymomot/courier/pkg/dedup"
	"github.com/dmitrymomot/courier/pkg/ledger"
	"github.com/dmitrymomot/courier/pkg/logger"
	"github.com/dmitrymomot/courier/pkg/webhook"
)

type envelope struct {
	Data  json.RawMessage  `json:"data"`
	Meta  map[string]any   `json:"meta"`
	Error *api.ErrorDetail `json:"error"`
}

type recordingDedup struct {
	dedup.Store
	mu       sync.Mutex
	released []string
}

func (r *recordingDedup) Release(ctx context.Context, key string) error {
	r.mu.Lock()
	r.released = append(r.released, key)
	r.mu.Unlock()
	return r.Store.Release(ctx, key)
}

type failingDedup struct{}

func (failingDedup) Claim(context.Context, string) (bool, error) { return false, dedup.ErrStore }
func (failingDedup) Release(context.Context, string) error       { return nil }

type fixture struct {
	store  *ledger.MemoryStore
	ledger *ledger.Ledger
	dedup  *recordingDedup
}

func newFixture(t *testing.T, opts ...api.Option) (*fixture, http.Handler) {
	t.Helper()
	store := ledger.NewMemoryStore()
	f := &fixture{
		store:  store,
		ledger: ledger.New(store, ledger.WithLogger(logger.Discard())),
		dedup:  &recordingDedup{Store: dedup.NewMemoryStore(time.Hour)},
	}
	opts = append([]api.Option{api.WithLogger(logger.Discard()), api.WithDedup(f.dedup)}, opts...)
	a, err := api.New(f.ledger, opts...)
	require.NoError(t, err)
	return f, a.Handler()
}

func (f *fixture) seed(t *testing.T, notificationID uuid.UUID, types ...channel.Type) []ledger.Delivery {
	t.Helper()
	now := time.Now().Add(-time.Minute)
	ds := make([]ledger.Delivery, 0, len(types))
	for i, typ := range types {
		ch := channel.Channel{ID: uuid.New(), Type: typ, Address: "addr-" + string(typ)}
		ds = append(ds, ledger.NewPending(notificationID, ch, now.Add(time.Duration(i)*time.Second)))
	}
	require.NoError(t, f.store.CreateBatch(context.Background(), ds))
	return ds
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestNew_RequiresLedger(t *testing.T) {
	t.Parallel()

	_, err := api.New(nil)
	assert.ErrorIs(t, err, api.ErrLedgerNil)
}

func TestAPI_Health(t *testing.T) {
	t.Parallel()

	t.Run("liveness", func(t *testing.T) {
		t.Parallel()
		_, h := newFixture(t)
		rec, _ := do(t, h, http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ALIVE", rec.Body.String())
	})

	t.Run("readiness reports failing checks", func(t *testing.T) {
		t.Parallel()
		_, h := newFixture(t,
			api.WithReadinessCheck("postgres", func(context.Context) error { return nil }),
			api.WithReadinessCheck("redis", func(context.Context) error { return errors.New("down") }),
		)
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body["postgres"])
		assert.Equal(t, "down", body["redis"])
	})
}

func TestAPI_RequestID(t *testing.T) {
	t.Parallel()

	_, h := newFixture(t)

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "generated when missing", incoming: "", keep: false},
		{name: "reused when valid", incoming: "req-123_abc", keep: true},
		{name: "replaced when malformed", incoming: "bad id<script>", keep: false},
		{name: "replaced when too long", incoming: strings.Repeat("a", 129), keep: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			if tt.incoming != "" {
				req.Header.Set(api.HeaderRequestID, tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get(api.HeaderRequestID)
			require.NotEmpty(t, got)
			if tt.keep {
				assert.Equal(t, tt.incoming, got)
			} else {
				assert.NotEqual(t, tt.incoming, got)
			}
		})
	}
}

func TestRequestIDExtractor(t *testing.T) {
	t.Parallel()

	_, ok := api.RequestIDExtractor()(context.Background())
	assert.False(t, ok)
	assert.Empty(t, api.RequestIDFromContext(context.Background()))
}

func TestAPI_ListPending(t *testing.T) {
	t.Parallel()

	f, h := newFixture(t)
	seeded := f.seed(t, uuid.New(), channel.TypeEmail, channel.TypeSMS, channel.TypeWebhook)

	tests := []struct {
		name   string
		query  string
		status int
		count  int
	}{
		{name: "default limit", query: "", status: http.StatusOK, count: 3},
		{name: "explicit limit", query: "?limit=2", status: http.StatusOK, count: 2},
		{name: "zero uses default", query: "?limit=0", status: http.StatusOK, count: 3},
		{name: "negative", query: "?limit=-1", status: http.StatusBadRequest},
		{name: "not a number", query: "?limit=abc", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec, env := do(t, h, http.MethodGet, "/deliveries/pending"+tt.query, "")
			require.Equal(t, tt.status, rec.Code)
			if tt.status != http.StatusOK {
				require.NotNil(t, env.Error)
				assert.Equal(t, "invalid_query", env.Error.Code)
				return
			}
			var rows []ledger.Delivery
			require.NoError(t, json.Unmarshal(env.Data, &rows))
			require.Len(t, rows, tt.count)
			assert.Equal(t, seeded[0].ID, rows[0].ID)
			assert.EqualValues(t, tt.count, env.Meta["count"])
		})
	}
}

func TestAPI_GetDelivery(t *testing.T) {
	t.Parallel()

	f, h := newFixture(t)
	d := f.seed(t, uuid.New(), channel.TypeEmail)[0]

	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{name: "found", path: "/deliveries/" + d.ID.String(), status: http.StatusOK},
		{name: "unknown", path: "/deliveries/" + uuid.NewString(), status: http.StatusNotFound, code: "delivery_not_found"},
		{name: "malformed id", path: "/deliveries/not-a-uuid", status: http.StatusBadRequest, code: "invalid_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec, env := do(t, h, http.MethodGet, tt.path, "")
			require.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				require.NotNil(t, env.Error)
				assert.Equal(t, tt.code, env.Error.Code)
				return
			}
			var got ledger.Delivery
			require.NoError(t, json.Unmarshal(env.Data, &got))
			assert.Equal(t, d.ID, got.ID)
			assert.Equal(t, ledger.StatePending, got.State)
		})
	}
}

func TestAPI_Callbacks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		suffix  string
		body    string
		state   ledger.State
		attempt int
		code    string
	}{
		{
			name:   "delivered",
			suffix: "delivered",
			body:   `{"provider_message_id":"pm-1","event_id":"ev-1"}`,
			state:  ledger.StateDelivered,
		},
		{
			name:    "failed retryable",
			suffix:  "failed",
			body:    `{"error_message":"mailbox busy","error_code":"busy","should_retry":true}`,
			state:   ledger.StatePending,
			attempt: 1,
			code:    "busy",
		},
		{
			name:    "failed permanent",
			suffix:  "failed",
			body:    `{"error_message":"no such user","error_code":"unknown_user","should_retry":false}`,
			state:   ledger.StateFailed,
			attempt: 1,
			code:    "unknown_user",
		},
		{
			name:   "bounced",
			suffix: "bounced",
			body:   `{"error_message":"hard bounce","error_code":"bounce"}`,
			state:  ledger.StateBounced,
			code:   "bounce",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f, h := newFixture(t)
			d := f.seed(t, uuid.New(), channel.TypeEmail)[0]

			rec, env := do(t, h, http.MethodPost, "/deliveries/"+d.ID.String()+"/"+tt.suffix, tt.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var got ledger.Delivery
			require.NoError(t, json.Unmarshal(env.Data, &got))
			assert.Equal(t, tt.state, got.State)
			assert.Equal(t, tt.attempt, got.AttemptCount)
			assert.Equal(t, tt.code, got.ErrorCode)

			stored, err := f.ledger.Get(context.Background(), d.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.state, stored.State)
		})
	}
}

func TestAPI_Callbacks_Rejected(t *testing.T) {
	t.Parallel()

	f, h := newFixture(t)
	d := f.seed(t, uuid.New(), channel.TypeEmail)[0]
	path := "/deliveries/" + d.ID.String() + "/delivered"

	tests := []struct {
		name        string
		contentType string
		body        string
		status      int
		code        string
	}{
		{name: "missing content type", body: `{}`, status: http.StatusUnsupportedMediaType, code: "unsupported_media_type"},
		{name: "wrong media type", contentType: "text/plain", body: `{}`, status: http.StatusUnsupportedMediaType, code: "unsupported_media_type"},
		{name: "empty body", contentType: "application/json", body: ``, status: http.StatusBadRequest, code: "invalid_json"},
		{name: "malformed", contentType: "application/json", body: `{"provider_message_id":`, status: http.StatusBadRequest, code: "invalid_json"},
		{name: "unknown field", contentType: "application/json", body: `{"nope":1}`, status: http.StatusBadRequest, code: "invalid_json"},
		{name: "trailing data", contentType: "application/json", body: `{} {}`, status: http.StatusBadRequest, code: "invalid_json"},
		{name: "charset parameter accepted", contentType: "application/json; charset=utf-8", body: `{"provider_message_id":"x"}`, status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.code != "" {
				var env envelope
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
				require.NotNil(t, env.Error)
				assert.Equal(t, tt.code, env.Error.Code)
			}
		})
	}
}

func TestAPI_Callbacks_BodyTooLarge(t *testing.T) {
	t.Parallel()

	f, h := newFixture(t, api.WithMaxBodySize(16))
	d := f.seed(t, uuid.New(), channel.TypeEmail)[0]

	rec, env := do(t, h, http.MethodPost, "/deliveries/"+d.ID.String()+"/delivered",
		`{"provider_message_id":"a-rather-long-message-id"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "body_too_large", env.Error.Code)
}

func TestAPI_Callbacks_Dedup(t *testing.T) {
	t.Parallel()

	t.Run("repeated event is applied once", func(t *testing.T) {
		t.Parallel()
		f, h := newFixture(t)
		d := f.seed(t, uuid.New(), channel.TypeEmail)[0]
		path := "/deliveries/" + d.ID.String() + "/failed"
		body := `{"error_message":"busy","error_code":"busy","should_retry":true,"event_id":"ev-7"}`

		rec, env := do(t, h, http.MethodPost, path, body)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, env.Meta)

		rec, env = do(t, h, http.MethodPost, path, body)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, env.Meta["duplicate"])

		stored, err := f.ledger.Get(context.Background(), d.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.AttemptCount)
	})

	t.Run("events without id are not deduplicated", func(t *testing.T) {
		t.Parallel()
		f, h := newFixture(t)
		d := f.seed(t, uuid.New(), channel.TypeEmail)[0]
		path := "/deliveries/" + d.ID.String() + "/failed"
		body := `{"error_message":"busy","error_code":"busy","should_retry":true}`

		for range 2 {
			rec, _ := do(t, h, http.MethodPost, path, body)
			require.Equal(t, http.StatusOK, rec.Code)
		}
		stored, err := f.ledger.Get(context.Background(), d.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, stored.AttemptCount)
	})

	t.Run("claim is released when the ledger rejects the event", func(t *testing.T) {
		t.Parallel()
		f, h := newFixture(t)
		id := uuid.New()

		rec, _ := do(t, h, http.MethodPost, "/deliveries/"+id.String()+"/delivered",
			`{"provider_message_id":"pm","event_id":"ev-9"}`)
		require.Equal(t, http.StatusNotFound, rec.Code)

		f.dedup.mu.Lock()
		defer f.dedup.mu.Unlock()
		assert.Equal(t, []string{id.String() + ":ev-9"}, f.dedup.released)
	})

	t.Run("store outage", func(t *testing.T) {
		t.Parallel()
		store := ledger.NewMemoryStore()
		led := ledger.New(store, ledger.WithLogger(logger.Discard()))
		a, err := api.New(led, api.WithLogger(logger.Discard()), api.WithDedup(failingDedup{}))
		require.NoError(t, err)

		rec, env := do(t, a.Handler(), http.MethodPost, "/deliveries/"+uuid.NewString()+"/delivered",
			`{"provider_message_id":"pm","event_id":"ev-1"}`)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "dedup_unavailable", env.Error.Code)
	})
}

func TestAPI_Callbacks_Signature(t *testing.T) {
	t.Parallel()

	const secret = "callback-secret"
	f, h := newFixture(t, api.WithSigningSecret(secret, time.Minute))
	d := f.seed(t, uuid.New(), channel.TypeEmail, channel.TypeSMS)
	body := []byte(`{"provider_message_id":"pm-1"}`)

	send := func(id uuid.UUID, sig *webhook.Signature) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/deliveries/"+id.String()+"/delivered", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if sig != nil {
			sig.Apply(req.Header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	sig, err := webhook.Sign(secret, body, time.Now())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, send(d[0].ID, &sig).Code)

	wrong, err := webhook.Sign("other-secret", body, time.Now())
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, send(d[1].ID, &wrong).Code)

	stale, err := webhook.Sign(secret, body, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, send(d[1].ID, &stale).Code)

	assert.Equal(t, http.StatusUnauthorized, send(d[1].ID, nil).Code)

	stored, err := f.ledger.Get(context.Background(), d[1].ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatePending, stored.State)
}

func TestAPI_Statistics(t *testing.T) {
	t.Parallel()

	f, h := newFixture(t)
	nid := uuid.New()
	ds := f.seed(t, nid, channel.TypeEmail, channel.TypeSMS, channel.TypePush, channel.TypeWebhook)
	ctx := context.Background()

	_, err := f.ledger.MarkDelivered(ctx, ds[0].ID, ledger.DeliveredInfo{ProviderMessageID: "a"})
	require.NoError(t, err)
	_, err = f.ledger.MarkFailed(ctx, ds[1].ID, ledger.FailureReport{Code: "x"})
	require.NoError(t, err)

	rec, env := do(t, h, http.MethodGet, "/notifications/"+nid.String()+"/statistics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats ledger.Stats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, ledger.Stats{Total: 4, Delivered: 1, Failed: 1, Pending: 2, SuccessRate: 25}, stats)

	rec, _ = do(t, h, http.MethodGet, "/notifications/nope/statistics", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_UnknownRoutes(t *testing.T) {
	t.Parallel()

	_, h := newFixture(t)

	rec, env := do(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_found", env.Error.Code)

	rec, env = do(t, h, http.MethodPost, "/healthz", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "method_not_allowed", env.Error.Code)
}
