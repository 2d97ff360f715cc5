// Package client is the API client of the pipeline controller, one file per
// endpoint. The path constants are shared with the controller so both sides
// always agree on the routes.
package client

import (
	"context"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/volgapavel/popov-exem/pkg/api"
)

const (
	// RunIDParam is the param definition for the run identifier
	RunIDParam = "runID"

	// TaskParam is the param definition for the task name
	TaskParam = "task"

	// ArtifactParam is the param definition for the artifact name
	ArtifactParam = "artifact"
)

// Client is the API client that performs all operations to a pipeline
// controller.
type Client interface {
	// Pipeline returns the spec of the controller's built-in pipeline.
	Pipeline(ctx context.Context) (api.PipelineSpec, error)

	// Submit submits a new run of the given pipeline spec with the given
	// arguments. It returns the run identifier.
	Submit(ctx context.Context, spec api.PipelineSpec, args interface{}) (string, error)

	// ListRuns returns basic information about every known run.
	ListRuns(ctx context.Context) ([]api.RunInfo, error)

	// RunState returns the state of a run.
	RunState(ctx context.Context, runID string) (RunStateResponse, error)

	// TaskState returns the state of a task within a run.
	TaskState(ctx context.Context, runID, task string) (TaskStateResponse, error)

	// Artifact returns the content of an artifact produced by a task of a run.
	Artifact(ctx context.Context, runID, task, name string) ([]byte, error)

	// Cancel cancels a running run.
	Cancel(ctx context.Context, runID string) error

	// RerunFailed submits a new run reusing the successful artifacts of a
	// failed run. It returns the new run identifier.
	RerunFailed(ctx context.Context, runID string) (string, error)
}

// NewClient creates a pipeline controller client
func NewClient(uri string) (Client, error) {
	httpcli := retryablehttp.NewClient()
	httpcli.Logger = nil
	u := strings.TrimRight(uri, "/")
	return client{
		httpcli: httpcli,
		uri:     u,
	}, nil
}

type client struct {
	httpcli *retryablehttp.Client
	uri     string
}
