// Package artifact provides run-scoped storage for the files tasks exchange.
// Every artifact lives under the namespace of the run that produced it, so
// concurrent runs never observe each other's intermediate outputs. A run's
// artifacts become visible to external consumers only through promotion,
// which happens once, after the whole run succeeded.
package artifact

import (
	"context"
)

// Store interface defines access to the artifact storage backend.
type Store interface {
	// Put writes an artifact under the namespace of the given run and
	// returns its location. Writes are append-only per (runID, task, name):
	// no task overwrites another task's or another run's artifact.
	Put(ctx context.Context, runID, task, name string, data []byte) (string, error)

	// Get reads an artifact from the namespace of the given run.
	// Returns ErrNotFound if the artifact was never written under this run.
	Get(ctx context.Context, runID, task, name string) ([]byte, error)

	// Promote atomically marks the given run's artifacts as the latest for
	// consumers outside the pipeline. A previously promoted run stays
	// readable until the switch happens.
	Promote(ctx context.Context, runID string) error

	// Latest returns the runID of the most recently promoted run.
	// Returns ErrNotFound if no run was ever promoted.
	Latest(ctx context.Context) (string, error)
}
