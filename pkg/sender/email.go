package sender

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/courier/pkg/email"
	"github.com/dmitrymomot/courier/pkg/notification"
)

// EmailSender delivers notifications through an email.EmailSender.
type EmailSender struct {
	mailer   email.EmailSender
	provider string
}

// NewEmailSender wraps mailer. provider names it in delivery results,
// e.g. "postmark".
func NewEmailSender(mailer email.EmailSender, provider string) *EmailSender {
	if provider == "" {
		provider = "email"
	}
	return &EmailSender{mailer: mailer, provider: provider}
}

func (s *EmailSender) Send(ctx context.Context, address string, n notification.Notification, opts ...SendOption) (Result, error) {
	if s.mailer == nil {
		return Result{}, &ConfigurationError{Reason: "email", Err: ErrNotConfigured}
	}
	if !email.ValidAddress(address) {
		return Result{}, permanent("invalid_address", 0, ErrInvalidAddress)
	}

	o := applyOptions(opts)
	body := n.Body
	if strings.TrimSpace(body) == "" {
		body = n.Title
	}
	params := email.SendEmailParams{
		SendTo:   address,
		Subject:  n.Title,
		BodyText: body,
		Tag:      n.Source,
		Metadata: map[string]string{"notification_id": n.ID.String()},
	}
	if o.deliveryID != uuid.Nil {
		params.Metadata["delivery_id"] = o.deliveryID.String()
	}

	id, err := s.mailer.SendEmail(ctx, params)
	switch {
	case err == nil:
		return Result{Provider: s.provider, MessageID: id}, nil
	case errors.Is(err, email.ErrInvalidParams):
		return Result{}, permanent("invalid_params", 0, err)
	case errors.Is(err, email.ErrRejected):
		return Result{}, permanent("rejected", 0, err)
	case errors.Is(err, context.DeadlineExceeded):
		return Result{}, temporary("timeout", 0, err)
	default:
		return Result{}, temporary("provider_error", 0, err)
	}
}
