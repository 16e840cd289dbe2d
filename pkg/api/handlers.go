package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/courier/pkg/ledger"
	"github.com/dmitrymomot/courier/pkg/logger"
	"github.com/dmitrymomot/courier/pkg/notification"
	"github.com/dmitrymomot/courier/pkg/webhook"
)

// DeliveredRequest is the body of POST /deliveries/{id}/delivered.
type DeliveredRequest struct {
	Provider          string         `json:"provider,omitempty"`
	ProviderMessageID string         `json:"provider_message_id"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	EventID           string         `json:"event_id,omitempty"`
}

// FailedRequest is the body of POST /deliveries/{id}/failed.
type FailedRequest struct {
	ErrorMessage string `json:"error_message"`
	ErrorCode    string `json:"error_code"`
	ShouldRetry  bool   `json:"should_retry"`
	EventID      string `json:"event_id,omitempty"`
}

// BouncedRequest is the body of POST /deliveries/{id}/bounced.
type BouncedRequest struct {
	ErrorMessage string `json:"error_message"`
	ErrorCode    string `json:"error_code"`
	EventID      string `json:"event_id,omitempty"`
}

// NotificationRequest is the body of POST /notifications.
type NotificationRequest struct {
	UserID    uuid.UUID             `json:"user_id"`
	Title     string                `json:"title"`
	Body      string                `json:"body"`
	Priority  notification.Priority `json:"priority,omitempty"`
	Source    string                `json:"source,omitempty"`
	Payload   map[string]any        `json:"payload,omitempty"`
	ExpiresAt *time.Time            `json:"expires_at,omitempty"`
}

// NotificationResponse is the data of a successful POST /notifications.
type NotificationResponse struct {
	Notification notification.Notification `json:"notification"`
	Deliveries   []ledger.Delivery         `json:"deliveries"`
}

func (a *API) createNotification(w http.ResponseWriter, r *http.Request) {
	var req NotificationRequest
	if !a.bind(w, r, &req) {
		return
	}

	n, rows, err := a.dispatcher.Send(r.Context(), notification.Notification{
		UserID:    req.UserID,
		Title:     req.Title,
		Body:      req.Body,
		Priority:  req.Priority,
		Source:    req.Source,
		Payload:   req.Payload,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.respondStatus(w, r, http.StatusCreated, NotificationResponse{Notification: n, Deliveries: rows}, nil)
}

func (a *API) listDeliveries(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	rows, err := a.ledger.ListByNotification(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, rows, map[string]any{"count": len(rows)})
}

func (a *API) listPending(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r.URL.Query().Get("limit"), ledger.DefaultPendingLimit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	limit = min(limit, MaxPendingLimit)

	rows, err := a.ledger.GetPending(r.Context(), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, rows, map[string]any{"count": len(rows), "limit": limit})
}

func (a *API) getDelivery(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	d, err := a.ledger.Get(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, d, nil)
}

func (a *API) statistics(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	stats, err := a.ledger.Statistics(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, stats, nil)
}

func (a *API) markDelivered(w http.ResponseWriter, r *http.Request) {
	var req DeliveredRequest
	a.callback(w, r, &req, func() string { return req.EventID },
		func(ctx context.Context, id uuid.UUID) (ledger.Delivery, error) {
			return a.ledger.MarkDelivered(ctx, id, ledger.DeliveredInfo{
				Provider:          req.Provider,
				ProviderMessageID: req.ProviderMessageID,
				Metadata:          req.Metadata,
			})
		})
}

func (a *API) markFailed(w http.ResponseWriter, r *http.Request) {
	var req FailedRequest
	a.callback(w, r, &req, func() string { return req.EventID },
		func(ctx context.Context, id uuid.UUID) (ledger.Delivery, error) {
			return a.ledger.MarkFailed(ctx, id, ledger.FailureReport{
				Message:     req.ErrorMessage,
				Code:        req.ErrorCode,
				ShouldRetry: req.ShouldRetry,
			})
		})
}

func (a *API) markBounced(w http.ResponseWriter, r *http.Request) {
	var req BouncedRequest
	a.callback(w, r, &req, func() string { return req.EventID },
		func(ctx context.Context, id uuid.UUID) (ledger.Delivery, error) {
			return a.ledger.MarkBounced(ctx, id, ledger.FailureReport{
				Message: req.ErrorMessage,
				Code:    req.ErrorCode,
			})
		})
}

// callback runs the shared part of every provider callback: path and body
// parsing, signature verification and event deduplication. A repeated event
// is answered with the current row and meta.duplicate set. The event claim
// is released when apply fails so the provider can redeliver it.
func (a *API) callback(
	w http.ResponseWriter,
	r *http.Request,
	req any,
	eventID func() string,
	apply func(ctx context.Context, id uuid.UUID) (ledger.Delivery, error),
) {
	ctx := r.Context()

	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	body, err := readBody(w, r, a.maxBodySize)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if a.signingSecret != "" {
		if err := webhook.VerifyRequest(a.signingSecret, r, body, a.signatureMaxAge); err != nil {
			a.fail(w, r, err)
			return
		}
	}
	if err := decodeJSON(body, req); err != nil {
		a.fail(w, r, err)
		return
	}

	key := ""
	if ev := eventID(); ev != "" && a.dedup != nil {
		key = id.String() + ":" + ev
		claimed, err := a.dedup.Claim(ctx, key)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		if !claimed {
			a.logger.LogAttrs(ctx, slog.LevelInfo, "duplicate callback ignored",
				logger.DeliveryID(id),
				slog.String("event_id", ev),
			)
			d, err := a.ledger.Get(ctx, id)
			if err != nil {
				a.fail(w, r, err)
				return
			}
			a.respond(w, r, d, map[string]any{"duplicate": true})
			return
		}
	}

	d, err := apply(ctx, id)
	if err != nil {
		if key != "" {
			if rerr := a.dedup.Release(context.WithoutCancel(ctx), key); rerr != nil {
				a.logger.LogAttrs(ctx, slog.LevelWarn, "failed to release callback event",
					logger.DeliveryID(id),
					logger.Error(rerr),
				)
			}
		}
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, d, nil)
}

func pathID(r *http.Request) (uuid.UUID, error) {
	return pathUUID(r, "id")
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidID, raw)
	}
	return id, nil
}
