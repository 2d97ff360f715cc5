package api

import (
	"time"
)

// RunInfo represents basic run information
type RunInfo struct {
	RunID    string `json:"runID"`
	Pipeline string `json:"pipeline"`
	Status   Status `json:"status"`
}

// RunState represents the full record of one execution of a pipeline.
type RunState struct {
	RunID      string      `json:"runID"`
	Pipeline   string      `json:"pipeline"`
	Status     Status      `json:"status"`
	Tasks      []TaskState `json:"tasks,omitempty"`
	Promoted   bool        `json:"promoted,omitempty"`
	CreateTime *time.Time  `json:"createTime,omitempty"`
	StartTime  *time.Time  `json:"startTime,omitempty"`
	EndTime    *time.Time  `json:"endTime,omitempty"`
}

// TaskState represents the state of one task within a run.
type TaskState struct {
	Name      string     `json:"name"`
	Status    Status     `json:"status"`
	Attempts  int        `json:"attempts,omitempty"`
	Failure   *Failure   `json:"failure,omitempty"`
	StartTime *time.Time `json:"startTime,omitempty"`
	EndTime   *time.Time `json:"endTime,omitempty"`

	// Artifacts maps output names to their location in the artifact store.
	Artifacts map[string]string `json:"artifacts,omitempty"`
}

// FailureKind classifies the terminal failure cause of a task.
type FailureKind string

const (
	// FailureTransient a retriable failure that exhausted its attempts
	FailureTransient FailureKind = "transient"

	// FailurePermanent a non-retriable failure, attempts were not exhausted
	FailurePermanent FailureKind = "permanent"

	// FailureTimeout the last attempt exceeded the task wall-clock limit
	FailureTimeout FailureKind = "timeout"

	// FailureCancelled the run was cancelled while the task was running
	FailureCancelled FailureKind = "cancelled"

	// FailureInputUnavailable an upstream reported success but a declared
	// output is missing from the artifact store
	FailureInputUnavailable FailureKind = "input unavailable"

	// FailureStorageWrite a task output could not be written to the artifact store
	FailureStorageWrite FailureKind = "storage write"
)

// Failure describes the terminal failure of a task within a run.
type Failure struct {
	Task     string      `json:"task"`
	Kind     FailureKind `json:"kind"`
	Attempts int         `json:"attempts"`
	Cause    string      `json:"cause"`
}

// TaskStatuses returns the status of each task, keyed by task name.
func (r RunState) TaskStatuses() map[string]Status {
	res := make(map[string]Status, len(r.Tasks))
	for _, t := range r.Tasks {
		res[t.Name] = t.Status
	}
	return res
}

// Failures returns the failures of the run, one per failed task.
func (r RunState) Failures() []Failure {
	var res []Failure
	for _, t := range r.Tasks {
		if t.Failure != nil {
			res = append(res, *t.Failure)
		}
	}
	return res
}
