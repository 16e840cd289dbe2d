package webhook_test

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/courier/pkg/webhook"
)

func TestSignAndVerify(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"id":"1"}`)
	sig, err := webhook.Sign("secret", payload, time.Now())
	require.NoError(t, err)
	assert.Len(t, sig.Value, 64)
	assert.NotEmpty(t, sig.ID)

	assert.NoError(t, webhook.Verify("secret", payload, sig, time.Minute))
	assert.ErrorIs(t, webhook.Verify("secret", []byte(`{"id":"2"}`), sig, time.Minute), webhook.ErrInvalidSignature)
	assert.ErrorIs(t, webhook.Verify("", payload, sig, time.Minute), webhook.ErrMissingSecret)
}

func TestVerify_Age(t *testing.T) {
	t.Parallel()

	payload := []byte(`{}`)

	old, err := webhook.Sign("secret", payload, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.ErrorIs(t, webhook.Verify("secret", payload, old, time.Minute), webhook.ErrInvalidSignature)
	assert.NoError(t, webhook.Verify("secret", payload, old, 0))

	future, err := webhook.Sign("secret", payload, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.ErrorIs(t, webhook.Verify("secret", payload, future, time.Minute), webhook.ErrInvalidSignature)
}

func TestSign_Errors(t *testing.T) {
	t.Parallel()

	_, err := webhook.Sign("", []byte("x"), time.Now())
	assert.ErrorIs(t, err, webhook.ErrMissingSecret)

	_, err = webhook.Sign("secret", nil, time.Now())
	assert.ErrorIs(t, err, webhook.ErrInvalidPayload)
}

func TestParseSignature(t *testing.T) {
	t.Parallel()

	sig, err := webhook.Sign("secret", []byte("x"), time.Now())
	require.NoError(t, err)

	h := http.Header{}
	sig.Apply(h)
	got, err := webhook.ParseSignature(h)
	require.NoError(t, err)
	assert.Equal(t, sig, got)

	_, err = webhook.ParseSignature(http.Header{})
	assert.ErrorIs(t, err, webhook.ErrInvalidSignature)

	bad := http.Header{}
	bad.Set(webhook.HeaderSignature, "abc")
	bad.Set(webhook.HeaderTimestamp, "yesterday")
	_, err = webhook.ParseSignature(bad)
	assert.ErrorIs(t, err, webhook.ErrInvalidSignature)

	bad.Set(webhook.HeaderTimestamp, strconv.FormatInt(time.Now().Unix(), 10))
	_, err = webhook.ParseSignature(bad)
	assert.NoError(t, err)
}
