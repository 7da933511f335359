package workflow

import "errors"

var (
	// ErrInvalidTransition means the trigger has no transition from the current state
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState means a state outside the confirmation lifecycle was used
	ErrInvalidState = errors.New("invalid state")
)
