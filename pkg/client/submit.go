package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"github.com/volgapavel/popov-exem/pkg/api"
)

const (
	// SubmitMethod is http method used for endpoint Submit
	SubmitMethod = http.MethodPost
	// SubmitPath is the path definition of the endpoint Submit.
	SubmitPath = "/runs"
)

// SubmitRequest is the request structure for the Submit endpoint
type SubmitRequest struct {
	api.PipelineSpec
	Args interface{} `json:"args,omitempty"`
}

// SubmitResponse is the response structure for the Submit endpoint
type SubmitResponse struct {
	RunID string `json:"runID"`
}

func (cli client) Submit(ctx context.Context, spec api.PipelineSpec, args interface{}) (string, error) {
	body, err := json.Marshal(SubmitRequest{PipelineSpec: spec, Args: args})
	if err != nil {
		return "", errors.Wrap(err, "cannot encode request")
	}
	req, err := retryablehttp.NewRequest(SubmitMethod, cli.uri+SubmitPath, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "cannot create request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := cli.httpcli.Do(req.WithContext(ctx))
	if err != nil {
		return "", errors.Wrap(err, "cannot do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		var httpErr HTTPError
		if err := json.NewDecoder(resp.Body).Decode(&httpErr); err != nil {
			return "", errors.Wrap(err, "cannot decode error response")
		}
		return "", ErrBadRequest{httpErr}
	}

	var res SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", errors.Wrap(err, "cannot decode response")
	}
	return res.RunID, nil
}
