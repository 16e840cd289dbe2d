package broadcast

import (
	"context"
	"sync"
)

// Message wraps a broadcast payload.
type Message[T any] struct {
	Data T
}

// Subscriber receives messages until it is closed or its subscription
// context is cancelled.
type Subscriber[T any] interface {
	Receive() <-chan Message[T]
	Close() error
}

// Broadcaster fans a message out to all current subscribers.
type Broadcaster[T any] interface {
	Subscribe(ctx context.Context) Subscriber[T]
	// Broadcast returns the number of subscribers that accepted msg.
	Broadcast(ctx context.Context, msg Message[T]) (int, error)
	Close() error
}

type subscriber[T any] struct {
	ch     chan Message[T]
	closed bool
	mu     sync.RWMutex
}

func newSubscriber[T any](bufferSize int) *subscriber[T] {
	return &subscriber[T]{ch: make(chan Message[T], bufferSize)}
}

func (s *subscriber[T]) Receive() <-chan Message[T] {
	return s.ch
}

func (s *subscriber[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		close(s.ch)
		s.closed = true
	}
	return nil
}

// send never blocks; a full buffer means the subscriber is too slow.
func (s *subscriber[T]) send(msg Message[T]) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}
