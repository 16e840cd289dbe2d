package api

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/courier/pkg/channel"
	"github.com/dmitrymomot/courier/pkg/dedup"
	"github.com/dmitrymomot/courier/pkg/ledger"
	"github.com/dmitrymomot/courier/pkg/notification"
	"github.com/dmitrymomot/courier/pkg/webhook"
)

var (
	ErrLedgerNil            = errors.New("api: ledger is required")
	ErrInvalidID            = errors.New("invalid id")
	ErrInvalidQuery         = errors.New("invalid query parameter")
	ErrInvalidJSON          = errors.New("invalid JSON")
	ErrMissingContentType   = errors.New("missing content type")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrBodyTooLarge         = errors.New("request body too large")
)

// errorStatus maps err to an HTTP status and a stable error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidID):
		return http.StatusBadRequest, "invalid_id"
	case errors.Is(err, ErrInvalidQuery):
		return http.StatusBadRequest, "invalid_query"
	case errors.Is(err, ErrInvalidJSON):
		return http.StatusBadRequest, "invalid_json"
	case errors.Is(err, ErrMissingContentType), errors.Is(err, ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, "unsupported_media_type"
	case errors.Is(err, ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge, "body_too_large"
	case errors.Is(err, webhook.ErrInvalidSignature):
		return http.StatusUnauthorized, "invalid_signature"
	case errors.Is(err, notification.ErrInvalidNotification):
		return http.StatusUnprocessableEntity, "invalid_notification"
	case errors.Is(err, notification.ErrAlreadyExists):
		return http.StatusConflict, "notification_exists"
	case errors.Is(err, notification.ErrNotFound):
		return http.StatusNotFound, "notification_not_found"
	case errors.Is(err, channel.ErrNotFound):
		return http.StatusNotFound, "channel_not_found"
	case errors.Is(err, channel.ErrUnknownType), errors.Is(err, channel.ErrInvalidAddress):
		return http.StatusUnprocessableEntity, "invalid_channel"
	case errors.Is(err, channel.ErrInvalidToken):
		return http.StatusUnprocessableEntity, "invalid_token"
	case errors.Is(err, channel.ErrAlreadyVerified):
		return http.StatusConflict, "already_verified"
	case errors.Is(err, channel.ErrDuplicateChannel):
		return http.StatusConflict, "channel_exists"
	case errors.Is(err, channel.ErrInvalidPreference):
		return http.StatusUnprocessableEntity, "invalid_preference"
	case errors.Is(err, ledger.ErrDeliveryNotFound):
		return http.StatusNotFound, "delivery_not_found"
	case errors.Is(err, ledger.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, dedup.ErrStore):
		return http.StatusServiceUnavailable, "dedup_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
