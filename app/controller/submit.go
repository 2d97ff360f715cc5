package main

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/volgapavel/popov-exem/pkg/api"
	"github.com/volgapavel/popov-exem/pkg/client"
	"github.com/volgapavel/popov-exem/pkg/util/context"
)

func (h handlers) Submit(c echo.Context) error {
	ctx := context.FromContext(c.Request().Context())
	ctx = context.WithCorrelationID(ctx, uuid.New().String())

	var req client.SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	// An empty body means the controller's built-in pipeline.
	if len(req.Tasks) == 0 {
		req.PipelineSpec = h.pipeline
	}

	runID, err := h.sc.Submit(ctx, req.PipelineSpec, req.Args)
	if err != nil {
		var defErr api.DefinitionError
		if errors.As(errors.Cause(err), &defErr) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusAccepted, client.SubmitResponse{
		RunID: runID,
	})
}
