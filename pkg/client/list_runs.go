package client

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"github.com/volgapavel/popov-exem/pkg/api"
)

const (
	// ListRunsMethod is http method used for endpoint ListRuns
	ListRunsMethod = http.MethodGet
	// ListRunsPath is the path definition of the endpoint ListRuns.
	ListRunsPath = "/runs"
)

func (cli client) ListRuns(ctx context.Context) ([]api.RunInfo, error) {
	req, err := retryablehttp.NewRequest(ListRunsMethod, cli.uri+ListRunsPath, nil)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create request")
	}
	resp, err := cli.httpcli.Do(req.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrap(err, "cannot do request")
	}
	defer resp.Body.Close()

	var res []api.RunInfo
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, errors.Wrap(err, "cannot decode response")
	}
	return res, nil
}
