// Package events defines the lifecycle notifications published by the
// engine so external systems can follow runs without polling the API.
package events

import (
	"fmt"
	"time"

	"github.com/volgapavel/popov-exem/pkg/api"
)

// EventType type of event
type EventType string

const (
	// TypeRunSubmitted a run record was created and execution started
	TypeRunSubmitted EventType = "RUN_SUBMITTED"
	// TypeRunFinished a run reached a final status
	TypeRunFinished EventType = "RUN_FINISHED"
	// TypeRunPromoted a run's artifacts were promoted as latest
	TypeRunPromoted EventType = "RUN_PROMOTED"
	// TypeTaskRunning a task started executing
	TypeTaskRunning EventType = "TASK_RUNNING"
	// TypeTaskFinished a task reached a final status
	TypeTaskFinished EventType = "TASK_FINISHED"
)

// Event represents a lifecycle notification to publish.
type Event struct {
	Type          EventType   `json:"type"`
	RunID         string      `json:"runID"`
	Task          string      `json:"task,omitempty"`
	Status        api.Status  `json:"status,omitempty"`
	CorrelationID string      `json:"correlationID,omitempty"`
	Data          interface{} `json:"data,omitempty"`
	Time          time.Time   `json:"time"`
}

func (e Event) String() string {
	if e.Task == "" {
		return fmt.Sprintf("%s for run %s", e.Type, e.RunID)
	}
	return fmt.Sprintf("%s for task %s of run %s", e.Type, e.Task, e.RunID)
}

// FailureEventData is the expected data type for TASK_FINISHED events of
// failed tasks.
type FailureEventData struct {
	Kind     api.FailureKind `json:"kind"`
	Attempts int             `json:"attempts"`
	Cause    string          `json:"cause"`
}
