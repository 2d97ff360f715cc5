package task

import "github.com/pkg/errors"

// Registry maps task names to their bodies. A pipeline spec only describes
// the graph; the registry supplies the code each task runs.
type Registry struct {
	bodies map[string]Body
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{bodies: make(map[string]Body)}
}

// Register binds the given body to the given task name.
func (r *Registry) Register(name string, b Body) {
	r.bodies[name] = b
}

// Body returns the body registered under the given task name.
func (r *Registry) Body(name string) (Body, error) {
	b, ok := r.bodies[name]
	if !ok {
		return nil, errors.Errorf("no body registered for task %s", name)
	}
	return b, nil
}
