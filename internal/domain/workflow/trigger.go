package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerNeedsConfirmation Trigger = "NEEDS_CONFIRMATION"
	TriggerEdit              Trigger = "EDIT"
	TriggerAttemptCommit     Trigger = "ATTEMPT_COMMIT"
	TriggerValidationFailed  Trigger = "VALIDATION_FAILED"
	TriggerCommitFailed      Trigger = "COMMIT_FAILED"
	TriggerCommitSucceeded   Trigger = "COMMIT_SUCCEEDED"
	TriggerCancel            Trigger = "CANCEL"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
