package workflow

// NewConfirmationMachine builds the state machine that governs one
// confirmation session, starting in StateIdle.
//
//	Idle --NEEDS_CONFIRMATION--> AwaitingConfirmation
//	AwaitingConfirmation --EDIT--> AwaitingConfirmation
//	AwaitingConfirmation --ATTEMPT_COMMIT--> Validating
//	Validating --VALIDATION_FAILED|COMMIT_FAILED--> AwaitingConfirmation
//	Validating --COMMIT_SUCCEEDED--> Committed
//	AwaitingConfirmation --CANCEL--> Cancelled
func NewConfirmationMachine(opts ...Option) StateMachine {
	builder := NewBuilder(opts...)

	builder.Configure(StateIdle).
		Permit(TriggerNeedsConfirmation, StateAwaitingConfirmation)

	builder.Configure(StateAwaitingConfirmation).
		PermitReentry(TriggerEdit).
		Permit(TriggerAttemptCommit, StateValidating).
		Permit(TriggerCancel, StateCancelled)

	builder.Configure(StateValidating).
		Permit(TriggerValidationFailed, StateAwaitingConfirmation).
		Permit(TriggerCommitFailed, StateAwaitingConfirmation).
		Permit(TriggerCommitSucceeded, StateCommitted)

	return builder.Build(StateIdle)
}
