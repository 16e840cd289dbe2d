package ledger

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

type pairKey struct {
	notificationID uuid.UUID
	channelID      uuid.UUID
}

// MemoryStore is an in-memory Store for tests and development.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*Delivery
	byPair map[pairKey]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[uuid.UUID]*Delivery),
		byPair: make(map[pairKey]uuid.UUID),
	}
}

func (s *MemoryStore) CreateBatch(_ context.Context, ds []Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[pairKey]struct{}, len(ds))
	for _, d := range ds {
		k := pairKey{d.NotificationID, d.ChannelID}
		if _, ok := s.byPair[k]; ok {
			return ErrDuplicateDelivery
		}
		if _, ok := seen[k]; ok {
			return ErrDuplicateDelivery
		}
		if _, ok := s.byID[d.ID]; ok {
			return ErrDuplicateDelivery
		}
		seen[k] = struct{}{}
	}

	for _, d := range ds {
		row := d.Clone()
		s.byID[d.ID] = &row
		s.byPair[pairKey{d.NotificationID, d.ChannelID}] = d.ID
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.byID[id]
	if !ok {
		return Delivery{}, ErrDeliveryNotFound
	}
	return d.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, next Delivery, expected Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byID[next.ID]
	if !ok {
		return ErrDeliveryNotFound
	}
	if cur.Version() != expected {
		return ErrConflict
	}

	row := next.Clone()
	row.NotificationID = cur.NotificationID
	row.ChannelID = cur.ChannelID
	row.CreatedAt = cur.CreatedAt
	s.byID[next.ID] = &row
	return nil
}

func (s *MemoryStore) ListDue(_ context.Context, now time.Time, limit int) ([]Delivery, error) {
	s.mu.RLock()
	var out []Delivery
	for _, d := range s.byID {
		if d.Due(now) {
			out = append(out, d.Clone())
		}
	}
	s.mu.RUnlock()

	sortByCreated(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListByNotification(_ context.Context, notificationID uuid.UUID) ([]Delivery, error) {
	s.mu.RLock()
	var out []Delivery
	for _, d := range s.byID {
		if d.NotificationID == notificationID {
			out = append(out, d.Clone())
		}
	}
	s.mu.RUnlock()

	sortByCreated(out)
	return out, nil
}

func (s *MemoryStore) CountByState(_ context.Context, notificationID uuid.UUID) (map[State]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[State]int)
	for _, d := range s.byID {
		if d.NotificationID == notificationID {
			counts[d.State]++
		}
	}
	return counts, nil
}

// DeleteByNotification removes every delivery of a notification. It mirrors
// the ON DELETE CASCADE foreign key of the Postgres schema and is meant to
// be wired as the notification store's purge hook.
func (s *MemoryStore) DeleteByNotification(_ context.Context, notificationID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, d := range s.byID {
		if d.NotificationID == notificationID {
			delete(s.byPair, pairKey{d.NotificationID, d.ChannelID})
			delete(s.byID, id)
		}
	}
	return nil
}

func sortByCreated(ds []Delivery) {
	slices.SortFunc(ds, func(a, b Delivery) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
}
