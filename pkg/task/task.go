// Package task defines the boundary a task body implements to plug into the
// pipeline engine. A body only sees the artifacts of its declared upstream
// dependencies and only communicates through its returned artifacts, which
// keeps each task independently retriable and testable.
package task

import (
	"github.com/volgapavel/popov-exem/pkg/util/context"
)

// Artifacts maps output names to their content.
type Artifacts map[string][]byte

// Inputs maps an upstream task name to the artifacts it produced.
type Inputs map[string]Artifacts

// Output returns the artifact produced by the given upstream under the given
// output name.
func (in Inputs) Output(task, name string) ([]byte, bool) {
	arts, ok := in[task]
	if !ok {
		return nil, false
	}
	data, ok := arts[name]
	return data, ok
}

// Body is the function executed for a task. It receives the artifacts of its
// declared dependencies and returns its own artifacts, or an error.
// Errors are retried according to the task retry policy unless marked
// permanent with Permanent.
type Body func(ctx context.Context, in Inputs) (Artifacts, error)
