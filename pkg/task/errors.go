package task

import "github.com/pkg/errors"

// Error is the error type a Body may return to control retry behavior.
type Error interface {
	error
	ShouldRetry() bool
}

// ErrPermanent is a failure that will not succeed on retry (validation
// errors, bad credentials, malformed input data). It exhausts the task
// immediately, even if attempts remain.
type ErrPermanent struct {
	error
}

// ShouldRetry is implementation of Error interface
func (e ErrPermanent) ShouldRetry() bool {
	return false
}

// Unwrap returns the underlying cause.
func (e ErrPermanent) Unwrap() error {
	return e.error
}

// ErrTransient is a failure worth retrying (network blips, resource
// contention). Plain errors are treated the same way; this type exists to
// make the intent explicit.
type ErrTransient struct {
	error
}

// ShouldRetry is implementation of Error interface
func (e ErrTransient) ShouldRetry() bool {
	return true
}

// Unwrap returns the underlying cause.
func (e ErrTransient) Unwrap() error {
	return e.error
}

// Permanent marks err as non-retriable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return ErrPermanent{err}
}

// Permanentf returns a new non-retriable error.
func Permanentf(format string, args ...interface{}) error {
	return ErrPermanent{errors.Errorf(format, args...)}
}

// Transient marks err as retriable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return ErrTransient{err}
}

// ShouldRetry reports whether the given body error is worth retrying.
// Errors that do not implement Error are retried: transience is the safe
// default for unclassified failures.
func ShouldRetry(err error) bool {
	var te Error
	if errors.As(err, &te) {
		return te.ShouldRetry()
	}
	return true
}
