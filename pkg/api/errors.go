package api

import "fmt"

// DefinitionErrorKind qualifies why a pipeline specification is invalid.
type DefinitionErrorKind string

const (
	// KindCycle the dependency graph contains a cycle
	KindCycle DefinitionErrorKind = "cycle"

	// KindUnknownDependency a task references a dependency that does not exist
	KindUnknownDependency DefinitionErrorKind = "unknown dependency"

	// KindDuplicateTask two tasks share the same name
	KindDuplicateTask DefinitionErrorKind = "duplicate task"

	// KindEmptyPipeline the pipeline declares no task
	KindEmptyPipeline DefinitionErrorKind = "empty pipeline"
)

// DefinitionError is the error returned when a pipeline specification is
// invalid. A run is never started from an invalid spec.
type DefinitionError struct {
	Kind    DefinitionErrorKind
	Message string
}

func (err DefinitionError) Error() string {
	return fmt.Sprintf("invalid pipeline: %s: %s", err.Kind, err.Message)
}

// CycleError returns a DefinitionError for a dependency cycle involving the
// given tasks.
func CycleError(tasks []string) error {
	return DefinitionError{Kind: KindCycle, Message: fmt.Sprintf("dependency cycle involving tasks %v", tasks)}
}

// UnknownDependencyError returns a DefinitionError for a task referencing a
// nonexistent upstream task.
func UnknownDependencyError(task, dep string) error {
	return DefinitionError{Kind: KindUnknownDependency, Message: fmt.Sprintf("task %s depends on unknown task %s", task, dep)}
}

// DuplicateTaskError returns a DefinitionError for a duplicated task name.
func DuplicateTaskError(task string) error {
	return DefinitionError{Kind: KindDuplicateTask, Message: fmt.Sprintf("task %s declared more than once", task)}
}

// EmptyPipelineError returns a DefinitionError for a pipeline without tasks.
func EmptyPipelineError() error {
	return DefinitionError{Kind: KindEmptyPipeline, Message: "pipeline declares no task"}
}
