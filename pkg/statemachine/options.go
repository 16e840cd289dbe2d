package statemachine

// TransitionOption configures a single transition.
type TransitionOption[S, E comparable] func(*Transition[S, E])

// WithTransition registers an edge from -> to on event.
func WithTransition[S, E comparable](from, to S, event E, opts ...TransitionOption[S, E]) Option[S, E] {
	return func(t *Table[S, E]) error {
		tr := Transition[S, E]{From: from, To: to, Event: event}
		for _, opt := range opts {
			opt(&tr)
		}
		t.add(tr)
		return nil
	}
}

// WithTransitions registers a list of prepared transitions.
func WithTransitions[S, E comparable](transitions ...Transition[S, E]) Option[S, E] {
	return func(t *Table[S, E]) error {
		for i, tr := range transitions {
			for _, g := range tr.Guards {
				if g == nil {
					return newInvalidTransitionError(i, tr.From, tr.To, tr.Event)
				}
			}
			for _, a := range tr.Actions {
				if a == nil {
					return newInvalidTransitionError(i, tr.From, tr.To, tr.Event)
				}
			}
			t.add(tr)
		}
		return nil
	}
}

// WithGuard adds guards to the transition. Nil guards are ignored.
func WithGuard[S, E comparable](guards ...Guard[S, E]) TransitionOption[S, E] {
	return func(tr *Transition[S, E]) {
		for _, g := range guards {
			if g != nil {
				tr.Guards = append(tr.Guards, g)
			}
		}
	}
}

// WithAction adds actions to the transition. Nil actions are ignored.
func WithAction[S, E comparable](actions ...Action[S, E]) TransitionOption[S, E] {
	return func(tr *Transition[S, E]) {
		for _, a := range actions {
			if a != nil {
				tr.Actions = append(tr.Actions, a)
			}
		}
	}
}
