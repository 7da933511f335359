package workflow

// State represents a stage in the lifecycle of a confirmation session
type State string

const (
	StateIdle                 State = "IDLE"
	StateAwaitingConfirmation State = "AWAITING_CONFIRMATION"
	StateValidating           State = "VALIDATING"
	StateCommitted            State = "COMMITTED"
	StateCancelled            State = "CANCELLED"
)

var validStates = map[State]bool{
	StateIdle:                 true,
	StateAwaitingConfirmation: true,
	StateValidating:           true,
	StateCommitted:            true,
	StateCancelled:            true,
}

var terminalStates = map[State]bool{
	StateCommitted: true,
	StateCancelled: true,
}

// IsTerminal returns true if no further transitions are allowed from the state
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known session state
func (s State) IsValid() bool {
	return validStates[s]
}
