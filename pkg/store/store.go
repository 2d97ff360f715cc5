// Package store persists run records: one record per execution of a
// pipeline, holding per-task statuses, attempts, failures and artifact
// locations. Records survive process restart when a filesystem-backed
// implementation is used, so an in-flight run's last known state can be
// inspected after a crash.
package store

import (
	"context"
	"time"

	"github.com/volgapavel/popov-exem/pkg/api"
)

// TimeOption is used when setting time is necessary
type TimeOption struct {
	CreateTime time.Time
	StartTime  time.Time
	EndTime    time.Time
}

// Store interface defines access to the run record backend
type Store interface {
	// CreateRun creates a new run record for the given spec with all tasks
	// pending. Args are kept for audit only.
	CreateRun(ctx context.Context, runID string, spec api.PipelineSpec, args interface{}) error

	// GetSpec returns the pipeline spec the run was created from.
	GetSpec(ctx context.Context, runID string) (api.PipelineSpec, error)

	// SetRunStatus sets the given status on the run with time options.
	SetRunStatus(ctx context.Context, runID string, status api.Status, opt TimeOption) error

	// SetPromoted records that the run's artifacts were promoted.
	SetPromoted(ctx context.Context, runID string) error

	// SetTaskStatus sets the given status on the task with time options.
	SetTaskStatus(ctx context.Context, runID, task string, status api.Status, opt TimeOption) error

	// SetTaskAttempts records how many times the task body was invoked.
	SetTaskAttempts(ctx context.Context, runID, task string, attempts int) error

	// SetTaskFailure records the terminal failure cause of the task.
	SetTaskFailure(ctx context.Context, runID, task string, failure api.Failure) error

	// SetTaskArtifacts records the locations of the task's outputs.
	SetTaskArtifacts(ctx context.Context, runID, task string, artifacts map[string]string) error

	// GetTaskStatuses returns the status of every task of the run.
	GetTaskStatuses(ctx context.Context, runID string) (map[string]api.Status, error)

	// GetTaskState returns the state of a single task of the run.
	GetTaskState(ctx context.Context, runID, task string) (api.TaskState, error)

	// GetRunState returns the full record of the run.
	GetRunState(ctx context.Context, runID string) (api.RunState, error)

	// ListRuns returns basic information about every known run.
	ListRuns(ctx context.Context) ([]api.RunInfo, error)
}
