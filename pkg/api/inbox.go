package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/dmitrymomot/courier/pkg/notification"
)

const defaultInboxLimit = 50

// MarkReadRequest is the body of POST /users/{userID}/notifications/read.
type MarkReadRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

func (a *API) listNotifications(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "userID")
	if err != nil {
		a.fail(w, r, err)
		return
	}

	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"), defaultInboxLimit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	offset, err := queryInt(q.Get("offset"), 0)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	ctx := r.Context()
	list, err := a.notifications.ListByUser(ctx, userID, notification.ListOptions{
		Limit:            min(limit, MaxPendingLimit),
		Offset:           offset,
		OnlyUnread:       q.Get("unread") == "true",
		IncludeDismissed: q.Get("dismissed") == "true",
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	unread, err := a.notifications.CountUnread(ctx, userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, list, map[string]any{"count": len(list), "unread": unread})
}

func (a *API) markRead(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "userID")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req MarkReadRequest
	if !a.bind(w, r, &req) {
		return
	}
	n, err := a.notifications.MarkRead(r.Context(), userID, req.IDs...)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, map[string]int{"updated": n}, nil)
}

func (a *API) dismissNotification(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := a.userNotification(w, r)
	if !ok {
		return
	}
	if err := a.notifications.Dismiss(r.Context(), userID, id); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) deleteNotification(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := a.userNotification(w, r)
	if !ok {
		return
	}
	if err := a.notifications.Delete(r.Context(), userID, id); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) userNotification(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, err := pathUUID(r, "userID")
	if err != nil {
		a.fail(w, r, err)
		return uuid.Nil, uuid.Nil, false
	}
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, id, true
}

// queryInt parses a non-negative integer query value. Empty and zero
// values yield def.
func queryInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidQuery, raw)
	}
	if n == 0 {
		return def, nil
	}
	return n, nil
}
