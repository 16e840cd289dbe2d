package notification

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PurgeHook removes data owned by a purged notification, e.g. its deliveries.
type PurgeHook func(ctx context.Context, notificationID uuid.UUID) error

// MemoryStore is an in-memory Store for tests and development.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*Notification
	onPurge PurgeHook
	now     func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithPurgeHook cascades Purge to dependent data.
func WithPurgeHook(fn PurgeHook) MemoryOption {
	return func(s *MemoryStore) {
		s.onPurge = fn
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		byID: make(map[uuid.UUID]*Notification),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// visible is the single soft-delete predicate of the memory store.
func visible(n *Notification) bool {
	return n != nil && n.DeletedAt == nil
}

func (s *MemoryStore) Create(_ context.Context, n Notification) error {
	n.Normalize(s.now())
	if err := n.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[n.ID]; ok {
		return ErrAlreadyExists
	}
	n.Payload = maps.Clone(n.Payload)
	s.byID[n.ID] = &n
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.byID[id]
	if !visible(n) {
		return Notification{}, ErrNotFound
	}
	return copyOf(n), nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID uuid.UUID, opts ListOptions) ([]Notification, error) {
	now := s.now()

	s.mu.RLock()
	var out []Notification
	for _, n := range s.byID {
		if !visible(n) || n.UserID != userID || n.IsExpired(now) {
			continue
		}
		if opts.OnlyUnread && n.Read {
			continue
		}
		if n.Dismissed && !opts.IncludeDismissed {
			continue
		}
		if opts.Since != nil && n.CreatedAt.Before(*opts.Since) {
			continue
		}
		out = append(out, copyOf(n))
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Notification) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})

	if opts.Offset >= len(out) {
		return []Notification{}, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, userID uuid.UUID, ids ...uuid.UUID) (int, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var changed int
	for _, id := range ids {
		n := s.byID[id]
		if !visible(n) || n.UserID != userID || n.Read {
			continue
		}
		n.Read = true
		n.ReadAt = &now
		n.UpdatedAt = now
		changed++
	}
	return changed, nil
}

func (s *MemoryStore) Dismiss(_ context.Context, userID, id uuid.UUID) error {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.byID[id]
	if !visible(n) || n.UserID != userID {
		return ErrNotFound
	}
	if !n.Dismissed {
		n.Dismissed = true
		n.DismissedAt = &now
		n.UpdatedAt = now
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID, id uuid.UUID) error {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.byID[id]
	if !visible(n) || n.UserID != userID {
		return ErrNotFound
	}
	n.DeletedAt = &now
	n.UpdatedAt = now
	return nil
}

func (s *MemoryStore) Purge(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	_, ok := s.byID[id]
	delete(s.byID, id)
	s.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	if s.onPurge != nil {
		return s.onPurge(ctx, id)
	}
	return nil
}

func (s *MemoryStore) CountUnread(_ context.Context, userID uuid.UUID) (int, error) {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	for _, n := range s.byID {
		if visible(n) && n.UserID == userID && !n.Read && !n.Dismissed && !n.IsExpired(now) {
			count++
		}
	}
	return count, nil
}

func copyOf(n *Notification) Notification {
	c := *n
	c.Payload = maps.Clone(n.Payload)
	return c
}
