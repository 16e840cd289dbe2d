package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/courier/pkg/notification"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newStore(t *testing.T, opts ...notification.MemoryOption) (*notification.MemoryStore, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	return notification.NewMemoryStore(append([]notification.MemoryOption{notification.WithClock(c.now)}, opts...)...), c
}

func create(t *testing.T, s *notification.MemoryStore, userID uuid.UUID, title string) notification.Notification {
	t.Helper()
	n := notification.Notification{ID: uuid.New(), UserID: userID, Title: title, Body: "body"}
	require.NoError(t, s.Create(context.Background(), n))
	got, err := s.Get(context.Background(), n.ID)
	require.NoError(t, err)
	return got
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	t.Parallel()

	s, c := newStore(t)
	ctx := context.Background()
	userID := uuid.New()

	n := notification.Notification{
		UserID:  userID,
		Title:   "Order shipped",
		Payload: map[string]any{"order": "A-1"},
	}
	require.NoError(t, s.Create(ctx, n))

	list, err := s.ListByUser(ctx, userID, notification.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)

	got := list[0]
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.Equal(t, notification.PriorityNormal, got.Priority)
	assert.Equal(t, c.t, got.CreatedAt)
	assert.Equal(t, "A-1", got.Payload["order"])

	got.Payload["order"] = "mutated"
	again, err := s.Get(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, "A-1", again.Payload["order"])
}

func TestMemoryStore_Create_Invalid(t *testing.T) {
	t.Parallel()

	s, _ := newStore(t)
	ctx := context.Background()

	err := s.Create(ctx, notification.Notification{Title: "x"})
	assert.ErrorIs(t, err, notification.ErrInvalidNotification)

	err = s.Create(ctx, notification.Notification{UserID: uuid.New(), Title: " "})
	assert.ErrorIs(t, err, notification.ErrInvalidNotification)

	err = s.Create(ctx, notification.Notification{UserID: uuid.New(), Title: "x", Priority: "urgent"})
	assert.ErrorIs(t, err, notification.ErrInvalidNotification)

	n := notification.Notification{ID: uuid.New(), UserID: uuid.New(), Title: "x"}
	require.NoError(t, s.Create(ctx, n))
	assert.ErrorIs(t, s.Create(ctx, n), notification.ErrAlreadyExists)
}

func TestMemoryStore_Get_NotFound(t *testing.T) {
	t.Parallel()

	s, _ := newStore(t)
	_, err := s.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, notification.ErrNotFound)
}

func TestMemoryStore_ListByUser_Filters(t *testing.T) {
	t.Parallel()

	s, c := newStore(t)
	ctx := context.Background()
	userID := uuid.New()

	first := create(t, s, userID, "first")
	c.advance(time.Minute)
	second := create(t, s, userID, "second")
	c.advance(time.Minute)
	third := create(t, s, userID, "third")
	create(t, s, uuid.New(), "someone else")

	list, err := s.ListByUser(ctx, userID, notification.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, third.ID, list[0].ID, "newest first")

	_, err = s.MarkRead(ctx, userID, first.ID)
	require.NoError(t, err)
	require.NoError(t, s.Dismiss(ctx, userID, second.ID))

	unread, err := s.ListByUser(ctx, userID, notification.ListOptions{OnlyUnread: true, IncludeDismissed: true})
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	visible, err := s.ListByUser(ctx, userID, notification.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, visible, 2)

	page, err := s.ListByUser(ctx, userID, notification.ListOptions{Limit: 1, Offset: 1, IncludeDismissed: true})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, second.ID, page[0].ID)

	since := first.CreatedAt.Add(30 * time.Second)
	recent, err := s.ListByUser(ctx, userID, notification.ListOptions{Since: &since, IncludeDismissed: true})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	empty, err := s.ListByUser(ctx, userID, notification.ListOptions{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStore_Expiry(t *testing.T) {
	t.Parallel()

	s, c := newStore(t)
	ctx := context.Background()
	userID := uuid.New()

	exp := c.t.Add(time.Hour)
	require.NoError(t, s.Create(ctx, notification.Notification{UserID: userID, Title: "flash sale", ExpiresAt: &exp}))

	count, err := s.CountUnread(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	c.advance(2 * time.Hour)

	count, err = s.CountUnread(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, count)

	list, err := s.ListByUser(ctx, userID, notification.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryStore_MarkReadAndCount(t *testing.T) {
	t.Parallel()

	s, _ := newStore(t)
	ctx := context.Background()
	userID := uuid.New()

	a := create(t, s, userID, "a")
	b := create(t, s, userID, "b")
	other := create(t, s, uuid.New(), "other")

	changed, err := s.MarkRead(ctx, userID, a.ID, other.ID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	changed, err = s.MarkRead(ctx, userID, a.ID)
	require.NoError(t, err)
	assert.Zero(t, changed)

	got, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Read)
	assert.NotNil(t, got.ReadAt)

	count, err := s.CountUnread(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, s.Dismiss(ctx, userID, b.ID))
	count, err = s.CountUnread(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMemoryStore_DismissAndDelete_Ownership(t *testing.T) {
	t.Parallel()

	s, _ := newStore(t)
	ctx := context.Background()
	n := create(t, s, uuid.New(), "mine")

	assert.ErrorIs(t, s.Dismiss(ctx, uuid.New(), n.ID), notification.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, uuid.New(), n.ID), notification.ErrNotFound)

	require.NoError(t, s.Delete(ctx, n.UserID, n.ID))
	_, err := s.Get(ctx, n.ID)
	assert.ErrorIs(t, err, notification.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, n.UserID, n.ID), notification.ErrNotFound)
}

func TestMemoryStore_PurgeCascades(t *testing.T) {
	t.Parallel()

	var purged []uuid.UUID
	s, _ := newStore(t, notification.WithPurgeHook(func(_ context.Context, id uuid.UUID) error {
		purged = append(purged, id)
		return nil
	}))
	ctx := context.Background()
	n := create(t, s, uuid.New(), "gone")

	require.NoError(t, s.Purge(ctx, n.ID))
	assert.Equal(t, []uuid.UUID{n.ID}, purged)
	assert.ErrorIs(t, s.Purge(ctx, n.ID), notification.ErrNotFound)
}
