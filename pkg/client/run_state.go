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

// RunStateResponse is the response of the RunState endpoint.
type RunStateResponse api.RunState

const (
	// RunStateMethod is http method used for endpoint RunState
	RunStateMethod     = http.MethodGet
	runStatePathFormat = "/runs/%s/state"
)

var (
	// RunStatePath is the path definition of the endpoint RunState.
	RunStatePath = fmt.Sprintf(runStatePathFormat, fmt.Sprintf(":%s", RunIDParam))
)

func (cli client) RunState(ctx context.Context, runID string) (RunStateResponse, error) {
	req, err := retryablehttp.NewRequest(RunStateMethod, fmt.Sprintf(cli.uri+runStatePathFormat, runID), nil)
	if err != nil {
		return RunStateResponse{}, errors.Wrap(err, "cannot create request")
	}
	resp, err := cli.httpcli.Do(req.WithContext(ctx))
	if err != nil {
		return RunStateResponse{}, errors.Wrap(err, "cannot do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return RunStateResponse{}, ErrNotFound{fmt.Sprintf("run %s", runID)}
	}

	var res RunStateResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return RunStateResponse{}, errors.Wrap(err, "cannot decode response")
	}
	return res, nil
}
