package api

// Status is the state of a run or of a single task within a run.
type Status string

const (
	// StatusPending default status, task is created but not yet eligible
	StatusPending Status = "PENDING"

	// StatusRunning status for tasks (or runs) currently executing
	StatusRunning Status = "RUNNING"

	// StatusSucceeded status for tasks (or runs) that completed successfully
	StatusSucceeded Status = "SUCCEEDED"

	// StatusFailed status for tasks (or runs) that exhausted their attempts
	StatusFailed Status = "FAILED"

	// StatusSkipped status for tasks never started because an upstream dependency failed or was skipped
	StatusSkipped Status = "SKIPPED"
)

// Finished returns true if the status is considered final
func (s Status) Finished() bool {
	for _, fs := range []Status{StatusSucceeded, StatusFailed, StatusSkipped} {
		if s == fs {
			return true
		}
	}
	return false
}
