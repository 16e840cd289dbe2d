package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/courier/pkg/broadcast"
	"github.com/dmitrymomot/courier/pkg/logger"
	"github.com/dmitrymomot/courier/pkg/notification"
)

const streamHeartbeat = 30 * time.Second

// Streamer hands out live in-app notification feeds. sender.InAppSender
// implements it.
type Streamer interface {
	Subscribe(ctx context.Context, userID uuid.UUID) broadcast.Subscriber[notification.Notification]
}

// stream serves the user's in-app notifications as Server-Sent Events
// until the client disconnects or the feed is closed.
func (a *API) stream(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "userID")
	if err != nil {
		a.fail(w, r, err)
		return
	}

	ctx := r.Context()
	sub := a.streamer.Subscribe(ctx, userID)
	defer func() { _ = sub.Close() }()

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		a.logger.LogAttrs(ctx, slog.LevelError, "stream flush unsupported", logger.Error(err))
		return
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case msg, ok := <-sub.Receive():
			if !ok {
				return
			}
			data, err := json.Marshal(msg.Data)
			if err != nil {
				a.logger.LogAttrs(ctx, slog.LevelError, "failed to encode stream event",
					logger.NotificationID(msg.Data.ID),
					logger.Error(err),
				)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: notification\nid: %s\ndata: %s\n\n", msg.Data.ID, data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
