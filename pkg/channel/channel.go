package channel

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/courier/pkg/email"
)

// Type is the transport a channel delivers over.
type Type string

const (
	TypeEmail   Type = "email"
	TypeSMS     Type = "sms"
	TypePush    Type = "push"
	TypeWebhook Type = "webhook"
	TypeInApp   Type = "in_app"
)

// Types lists every supported channel type.
var Types = []Type{TypeEmail, TypeSMS, TypePush, TypeWebhook, TypeInApp}

// Valid reports whether t is a supported channel type.
func (t Type) Valid() bool {
	switch t {
	case TypeEmail, TypeSMS, TypePush, TypeWebhook, TypeInApp:
		return true
	}
	return false
}

func (t Type) String() string { return string(t) }

// Channel is a destination owned by a user: an email address, phone number,
// push token or webhook URL.
type Channel struct {
	ID                uuid.UUID  `json:"id"`
	UserID            uuid.UUID  `json:"user_id"`
	Type              Type       `json:"type"`
	Address           string     `json:"address"`
	Primary           bool       `json:"primary"`
	Active            bool       `json:"active"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty"`
	VerificationToken string     `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	DeletedAt         *time.Time `json:"-"`
}

// Verified reports whether the channel has been verified.
func (c Channel) Verified() bool {
	return c.VerifiedAt != nil
}

// Eligible reports whether fan-out may deliver to the channel.
func (c Channel) Eligible() bool {
	return c.Active && c.Verified() && c.DeletedAt == nil
}

var phoneRegex = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// ValidateAddress checks that address is well formed for channel type t.
func ValidateAddress(t Type, address string) error {
	address = strings.TrimSpace(address)
	switch t {
	case TypeEmail:
		if !email.ValidAddress(address) {
			return fmt.Errorf("%w: %q is not an email address", ErrInvalidAddress, address)
		}
	case TypeSMS:
		if !phoneRegex.MatchString(address) {
			return fmt.Errorf("%w: %q is not an E.164 phone number", ErrInvalidAddress, address)
		}
	case TypeWebhook:
		u, err := url.Parse(address)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %q is not an http(s) URL", ErrInvalidAddress, address)
		}
	case TypePush, TypeInApp:
		if address == "" {
			return fmt.Errorf("%w: address is required", ErrInvalidAddress)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	return nil
}
