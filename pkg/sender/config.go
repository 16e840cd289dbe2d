package sender

import "time"

// Config holds channel sender settings.
type Config struct {
	WebhookTimeout       time.Duration `env:"SENDER_WEBHOOK_TIMEOUT" envDefault:"10s"`
	WebhookSigningSecret string        `env:"SENDER_WEBHOOK_SIGNING_SECRET"`

	BreakerFailureThreshold int           `env:"SENDER_BREAKER_FAILURE_THRESHOLD" envDefault:"5"`
	BreakerSuccessThreshold int           `env:"SENDER_BREAKER_SUCCESS_THRESHOLD" envDefault:"2"`
	BreakerRecoveryTimeout  time.Duration `env:"SENDER_BREAKER_RECOVERY_TIMEOUT" envDefault:"30s"`

	// Empty gateway URLs fall back to logging the message.
	SMSGatewayURL    string `env:"SENDER_SMS_GATEWAY_URL"`
	SMSGatewayToken  string `env:"SENDER_SMS_GATEWAY_TOKEN"`
	PushGatewayURL   string `env:"SENDER_PUSH_GATEWAY_URL"`
	PushGatewayToken string `env:"SENDER_PUSH_GATEWAY_TOKEN"`

	InAppBufferSize int `env:"SENDER_IN_APP_BUFFER_SIZE" envDefault:"16"`
	InAppMaxUsers   int `env:"SENDER_IN_APP_MAX_USERS" envDefault:"10000"`
}
