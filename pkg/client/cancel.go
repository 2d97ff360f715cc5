package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
)

const (
	// CancelMethod is http method used for endpoint Cancel
	CancelMethod     = http.MethodPost
	cancelPathFormat = "/runs/%s/cancel"
)

var (
	// CancelPath is the path definition of the endpoint Cancel.
	CancelPath = fmt.Sprintf(cancelPathFormat, fmt.Sprintf(":%s", RunIDParam))
)

func (cli client) Cancel(ctx context.Context, runID string) error {
	req, err := retryablehttp.NewRequest(CancelMethod, fmt.Sprintf(cli.uri+cancelPathFormat, runID), nil)
	if err != nil {
		return errors.Wrap(err, "cannot create request")
	}
	resp, err := cli.httpcli.Do(req.WithContext(ctx))
	if err != nil {
		return errors.Wrap(err, "cannot do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound{fmt.Sprintf("active run %s", runID)}
	}
	if resp.StatusCode >= 300 {
		return errors.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}
