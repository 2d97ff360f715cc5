package client

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
)

const (
	// ArtifactMethod is http method used for endpoint Artifact
	ArtifactMethod     = http.MethodGet
	artifactPathFormat = "/runs/%s/tasks/%s/artifacts/%s"
)

var (
	// ArtifactPath is the path definition of the endpoint Artifact.
	ArtifactPath = fmt.Sprintf(artifactPathFormat, fmt.Sprintf(":%s", RunIDParam), fmt.Sprintf(":%s", TaskParam), fmt.Sprintf(":%s", ArtifactParam))
)

func (cli client) Artifact(ctx context.Context, runID, task, name string) ([]byte, error) {
	req, err := retryablehttp.NewRequest(ArtifactMethod, fmt.Sprintf(cli.uri+artifactPathFormat, runID, task, name), nil)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create request")
	}
	resp, err := cli.httpcli.Do(req.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrap(err, "cannot do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound{fmt.Sprintf("artifact %s of task %s in run %s", name, task, runID)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read response")
	}
	return data, nil
}
