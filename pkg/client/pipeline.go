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
	// PipelineMethod is http method used for endpoint Pipeline
	PipelineMethod = http.MethodGet
	// PipelinePath is the path definition of the endpoint Pipeline.
	PipelinePath = "/pipeline"
)

// Pipeline returns the spec of the controller's built-in pipeline.
func (cli client) Pipeline(ctx context.Context) (api.PipelineSpec, error) {
	req, err := retryablehttp.NewRequest(PipelineMethod, cli.uri+PipelinePath, nil)
	if err != nil {
		return api.PipelineSpec{}, errors.Wrap(err, "cannot create request")
	}
	resp, err := cli.httpcli.Do(req.WithContext(ctx))
	if err != nil {
		return api.PipelineSpec{}, errors.Wrap(err, "cannot do request")
	}
	defer resp.Body.Close()

	var res api.PipelineSpec
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return api.PipelineSpec{}, errors.Wrap(err, "cannot decode response")
	}
	return res, nil
}
