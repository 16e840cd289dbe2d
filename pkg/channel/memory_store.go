package channel

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and development.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*Channel
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[uuid.UUID]*Channel)}
}

// visible is the single soft-delete predicate of the memory store.
func visible(c *Channel) bool {
	return c != nil && c.DeletedAt == nil
}

func (s *MemoryStore) Create(_ context.Context, c Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[c.ID]; ok {
		return ErrDuplicateChannel
	}
	for _, other := range s.byID {
		if visible(other) && other.UserID == c.UserID && other.Type == c.Type &&
			strings.EqualFold(other.Address, c.Address) {
			return ErrDuplicateChannel
		}
	}
	if c.Primary {
		s.demotePrimary(c.UserID, c.Type, c.UpdatedAt)
	}
	s.byID[c.ID] = &c
	return nil
}

func (s *MemoryStore) demotePrimary(userID uuid.UUID, t Type, now time.Time) {
	for _, other := range s.byID {
		if visible(other) && other.UserID == userID && other.Type == t && other.Primary {
			other.Primary = false
			other.UpdatedAt = now
		}
	}
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := s.byID[id]
	if !visible(c) {
		return Channel{}, ErrNotFound
	}
	return *c, nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID uuid.UUID, opts ListOptions) ([]Channel, error) {
	s.mu.RLock()
	var out []Channel
	for _, c := range s.byID {
		switch {
		case !visible(c) || c.UserID != userID:
			continue
		case opts.Type != "" && c.Type != opts.Type:
			continue
		case opts.VerifiedOnly && !c.Verified():
			continue
		case opts.EligibleOnly && !c.Eligible():
			continue
		}
		out = append(out, *c)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Channel) int {
		if a.Primary != b.Primary {
			if a.Primary {
				return -1
			}
			return 1
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, c Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.byID[c.ID]
	if !visible(cur) {
		return ErrNotFound
	}
	if c.Primary && !cur.Primary {
		s.demotePrimary(cur.UserID, cur.Type, c.UpdatedAt)
	}
	cur.Active = c.Active
	cur.Primary = c.Primary
	cur.VerifiedAt = c.VerifiedAt
	cur.VerificationToken = c.VerificationToken
	cur.UpdatedAt = c.UpdatedAt
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.byID[id]
	if !visible(c) {
		return ErrNotFound
	}
	now := time.Now()
	c.DeletedAt = &now
	c.UpdatedAt = now
	c.Primary = false
	return nil
}
