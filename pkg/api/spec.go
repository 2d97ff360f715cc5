package api

import "time"

// PipelineSpec is the specification of a pipeline: an immutable DAG of tasks.
// It is constructed once and reused across runs.
type PipelineSpec struct {
	Name  string     `json:"name"` // Pipeline name.
	Tasks []TaskSpec `json:"tasks"`
}

// TaskSpec is the specification of a single task within a pipeline.
type TaskSpec struct {
	Name         string   `json:"name"`
	Dependencies []string `json:"dependencies,omitempty"`

	// Outputs are the artifact names this task declares it will produce.
	// Downstream tasks receive exactly these artifacts as inputs.
	Outputs []string `json:"outputs,omitempty"`

	Retry RetryPolicy `json:"retry,omitempty"`

	// Timeout is the wall-clock limit for a single attempt. Zero means no limit.
	// Expiry fails the attempt and counts against the retry policy.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// RetryPolicy controls how many times a task body is attempted and the
// back-off delay between attempts. The zero value means a single attempt.
type RetryPolicy struct {
	MaxAttempts     int           `json:"maxAttempts,omitempty"`
	InitialInterval time.Duration `json:"initialInterval,omitempty"`
	MaxInterval     time.Duration `json:"maxInterval,omitempty"`
	Multiplier      float64       `json:"multiplier,omitempty"`
}

const (
	// DefaultInitialInterval is the back-off delay after a first failed attempt.
	DefaultInitialInterval = 5 * time.Second

	// DefaultMaxInterval caps the back-off delay between attempts.
	DefaultMaxInterval = 2 * time.Minute

	// DefaultMultiplier is the back-off growth factor between attempts.
	DefaultMultiplier = 2.0
)

// Attempts returns the effective maximum number of attempts, at least 1.
func (r RetryPolicy) Attempts() int {
	if r.MaxAttempts < 1 {
		return 1
	}
	return r.MaxAttempts
}

// Task returns the spec of the task with the given name.
func (p PipelineSpec) Task(name string) (TaskSpec, bool) {
	for _, t := range p.Tasks {
		if t.Name == name {
			return t, true
		}
	}
	return TaskSpec{}, false
}

// Sinks returns the names of the terminal tasks, i.e. tasks no other task
// depends on, in declaration order.
func (p PipelineSpec) Sinks() []string {
	dependedOn := make(map[string]bool)
	for _, t := range p.Tasks {
		for _, d := range t.Dependencies {
			dependedOn[d] = true
		}
	}
	var sinks []string
	for _, t := range p.Tasks {
		if !dependedOn[t.Name] {
			sinks = append(sinks, t.Name)
		}
	}
	return sinks
}
