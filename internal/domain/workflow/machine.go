package workflow

import "context"

// StateMachine tracks the state of one confirmation session. It is not safe
// for concurrent use; callers hold their own lock around Fire.
type StateMachine interface {
	State() State

	// Closed reports whether the machine reached a terminal state. No
	// trigger is permitted afterwards.
	Closed() bool

	// CanFire reports whether trigger has a configured transition from the
	// current state
	CanFire(trigger Trigger) bool

	// Fire moves the machine to the trigger's target state and notifies
	// listeners. An unconfigured trigger returns ErrInvalidTransition and
	// leaves the state unchanged.
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers lists the triggers configured for the current state
	// in a stable order.
	PermittedTriggers() []Trigger
}
