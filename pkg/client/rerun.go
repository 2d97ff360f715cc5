package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
)

const (
	// RerunMethod is http method used for endpoint RerunFailed
	RerunMethod     = http.MethodPost
	rerunPathFormat = "/runs/%s/rerun"
)

var (
	// RerunPath is the path definition of the endpoint RerunFailed.
	RerunPath = fmt.Sprintf(rerunPathFormat, fmt.Sprintf(":%s", RunIDParam))
)

func (cli client) RerunFailed(ctx context.Context, runID string) (string, error) {
	req, err := retryablehttp.NewRequest(RerunMethod, fmt.Sprintf(cli.uri+rerunPathFormat, runID), nil)
	if err != nil {
		return "", errors.Wrap(err, "cannot create request")
	}
	resp, err := cli.httpcli.Do(req.WithContext(ctx))
	if err != nil {
		return "", errors.Wrap(err, "cannot do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNotFound{fmt.Sprintf("run %s", runID)}
	}
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
