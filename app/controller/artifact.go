package main

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/volgapavel/popov-exem/pkg/artifact"
	"github.com/volgapavel/popov-exem/pkg/client"
	"github.com/volgapavel/popov-exem/pkg/util/context"
)

func (h handlers) Artifact(c echo.Context) error {
	ctx := context.FromContext(c.Request().Context())
	runID := c.Param(client.RunIDParam)
	task := c.Param(client.TaskParam)
	name := c.Param(client.ArtifactParam)
	data, err := h.artifacts.Get(ctx, runID, task, name)
	if err != nil {
		if errors.As(errors.Cause(err), &artifact.ErrNotFound{}) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.Blob(http.StatusOK, "application/octet-stream", data)
}
