package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"github.com/volgapavel/popov-exem/pkg/api"
)

// TaskStateResponse is the response of the TaskState endpoint.
type TaskStateResponse api.TaskState

const (
	// TaskStateMethod is http method used for endpoint TaskState
	TaskStateMethod     = http.MethodGet
	taskStatePathFormat = "/runs/%s/tasks/%s/state"
)

var (
	// TaskStatePath is the path definition of the endpoint TaskState.
	TaskStatePath = fmt.Sprintf(taskStatePathFormat, fmt.Sprintf(":%s", RunIDParam), fmt.Sprintf(":%s", TaskParam))
)

func (cli client) TaskState(ctx context.Context, runID, task string) (TaskStateResponse, error) {
	req, err := retryablehttp.NewRequest(TaskStateMethod, fmt.Sprintf(cli.uri+taskStatePathFormat, runID, task), nil)
	if err != nil {
		return TaskStateResponse{}, errors.Wrap(err, "cannot create request")
	}
	resp, err := cli.httpcli.Do(req.WithContext(ctx))
	if err != nil {
		return TaskStateResponse{}, errors.Wrap(err, "cannot do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return TaskStateResponse{}, ErrNotFound{fmt.Sprintf("run %s or task %s", runID, task)}
	}

	var res TaskStateResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return TaskStateResponse{}, errors.Wrap(err, "cannot decode response")
	}
	return res, nil
}
