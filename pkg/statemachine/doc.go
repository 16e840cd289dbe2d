// Package statemachine provides a generic, stateless finite-state-machine
// transition table.
//
// Unlike an in-memory machine that owns its current state, a Table maps
// (state, event) to the next state and leaves persistence to the caller.
// This fits entities stored in a database: read the row, Fire the event
// against its state, write the result with a conditional update.
//
//	type state string
//	type event string
//
//	table := statemachine.MustNew(
//		statemachine.WithTransition[state, event]("draft", "review", "submit"),
//		statemachine.WithTransition[state, event]("review", "published", "approve",
//			statemachine.WithGuard(isEditor),
//		),
//	)
//
//	next, err := table.Fire(ctx, "draft", "submit", nil)
//
// # Guards and Actions
//
// Guards veto a transition based on the data passed to Fire. When several
// edges share a (state, event) pair they are tried in registration order
// and the first one whose guards pass is applied, which allows conditional
// branches such as "retry while attempts remain, otherwise fail".
//
// Actions run after the guards, in order, and may mutate data. A failing
// action aborts the transition and Fire returns the original state.
//
// # Errors
//
//	if statemachine.IsNoTransitionAvailableError(err) { /* ... */ }
//	if statemachine.IsTransitionRejectedError(err)   { /* ... */ }
//
// A Table is immutable after construction and safe for concurrent use.
package statemachine
