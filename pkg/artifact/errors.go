package artifact

import "fmt"

// NotFoundError returns a new ErrNotFound
func NotFoundError(what string) error {
	return ErrNotFound{what}
}

// ErrNotFound is the error returned when a requested artifact does not exist
// under the requested run. When it surfaces while gathering a task's inputs
// it signals that an upstream reported success without producing a declared
// output; this is a contract violation and is not retried.
type ErrNotFound struct {
	what string
}

func (err ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found", err.what)
}

// WriteError returns a new ErrWrite wrapping the given cause.
func WriteError(what string, cause error) error {
	return ErrWrite{what: what, cause: cause}
}

// ErrWrite is the error returned when an artifact could not be written to
// the backend (e.g. disk full). It fails the producing task but never
// corrupts previously promoted artifacts.
type ErrWrite struct {
	what  string
	cause error
}

func (err ErrWrite) Error() string {
	return fmt.Sprintf("cannot write %s: %v", err.what, err.cause)
}

// Unwrap returns the underlying cause.
func (err ErrWrite) Unwrap() error {
	return err.cause
}
