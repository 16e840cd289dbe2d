package email_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/courier/pkg/email"
)

func validConfig() email.Config {
	return email.Config{
		PostmarkServerToken:  "server-token",
		PostmarkAccountToken: "account-token",
		SenderEmail:          "sender@example.com",
		SupportEmail:         "support@example.com",
	}
}

func TestNewPostmarkClient(t *testing.T) {
	t.Parallel()

	client, err := email.NewPostmarkClient(validConfig())
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.True(t, validConfig().UsePostmark())
}

func TestNewPostmarkClient_InvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*email.Config)
		wantErr string
	}{
		{"empty server token", func(c *email.Config) { c.PostmarkServerToken = "" }, "PostmarkServerToken is required"},
		{"empty account token", func(c *email.Config) { c.PostmarkAccountToken = "" }, "PostmarkAccountToken is required"},
		{"missing sender", func(c *email.Config) { c.SenderEmail = "" }, "SenderEmail is required"},
		{"invalid sender", func(c *email.Config) { c.SenderEmail = "nope" }, "SenderEmail must be a valid email address"},
		{"missing support", func(c *email.Config) { c.SupportEmail = "" }, "SupportEmail is required"},
		{"invalid support", func(c *email.Config) { c.SupportEmail = "x@" }, "SupportEmail must be a valid email address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(&cfg)

			client, err := email.NewPostmarkClient(cfg)
			assert.Nil(t, client)
			assert.ErrorIs(t, err, email.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMustNewPostmarkClient_Panics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { email.MustNewPostmarkClient(email.Config{}) })
}
