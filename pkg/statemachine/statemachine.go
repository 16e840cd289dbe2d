package statemachine

import (
	"context"
	"fmt"
)

// Guard vetoes a transition based on runtime data.
type Guard[S, E comparable] func(ctx context.Context, from S, event E, data any) bool

// Action runs after all guards pass and before the new state is returned.
// A failing action aborts the transition.
type Action[S, E comparable] func(ctx context.Context, from, to S, event E, data any) error

// Transition is one edge of the table.
type Transition[S, E comparable] struct {
	From    S
	To      S
	Event   E
	Guards  []Guard[S, E]  // All must pass for the transition to apply
	Actions []Action[S, E] // Executed in order
}

// Table is an immutable transition table. It holds no current state: the
// caller passes the state it read from storage and persists the result, so a
// single Table serves any number of entities concurrently.
//
// Several transitions may share a (from, event) pair; they are tried in
// registration order and the first whose guards all pass wins.
type Table[S, E comparable] struct {
	edges map[S]map[E][]Transition[S, E]
}

// Option configures a Table during construction.
type Option[S, E comparable] func(*Table[S, E]) error

// New builds a transition table.
func New[S, E comparable](opts ...Option[S, E]) (*Table[S, E], error) {
	t := &Table[S, E]{edges: make(map[S]map[E][]Transition[S, E])}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustNew is like New but panics on error. Use it for package-level tables.
func MustNew[S, E comparable](opts ...Option[S, E]) *Table[S, E] {
	t, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create state machine: %v", err))
	}
	return t
}

func (t *Table[S, E]) add(tr Transition[S, E]) {
	byEvent, ok := t.edges[tr.From]
	if !ok {
		byEvent = make(map[E][]Transition[S, E])
		t.edges[tr.From] = byEvent
	}
	byEvent[tr.Event] = append(byEvent[tr.Event], tr)
}

// Fire applies event to an entity currently in from and returns the state
// it moves to.
//
// Returns *ErrNoTransitionAvailable when the table has no edge for
// (from, event) and *ErrTransitionRejected when every candidate was vetoed.
func (t *Table[S, E]) Fire(ctx context.Context, from S, event E, data any) (S, error) {
	tr, err := t.match(ctx, from, event, data)
	if err != nil {
		return from, err
	}

	for _, action := range tr.Actions {
		if err := action(ctx, from, tr.To, event, data); err != nil {
			return from, fmt.Errorf("action failed: %w", err)
		}
	}
	return tr.To, nil
}

// CanFire reports whether Fire would select a transition. Actions are not run.
func (t *Table[S, E]) CanFire(ctx context.Context, from S, event E, data any) bool {
	_, err := t.match(ctx, from, event, data)
	return err == nil
}

// Events lists the events with at least one edge out of from.
func (t *Table[S, E]) Events(from S) []E {
	byEvent := t.edges[from]
	events := make([]E, 0, len(byEvent))
	for e := range byEvent {
		events = append(events, e)
	}
	return events
}

// Terminal reports whether from has no outgoing edges.
func (t *Table[S, E]) Terminal(from S) bool {
	return len(t.edges[from]) == 0
}

func (t *Table[S, E]) match(ctx context.Context, from S, event E, data any) (Transition[S, E], error) {
	candidates := t.edges[from][event]
	if len(candidates) == 0 {
		return Transition[S, E]{}, NewErrNoTransitionAvailable(from, event)
	}

next:
	for _, tr := range candidates {
		for _, guard := range tr.Guards {
			if !guard(ctx, from, event, data) {
				continue next
			}
		}
		return tr, nil
	}
	return Transition[S, E]{}, NewErrTransitionRejected(from, event)
}
