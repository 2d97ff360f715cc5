package main

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/volgapavel/popov-exem/pkg/client"
	"github.com/volgapavel/popov-exem/pkg/store"
	"github.com/volgapavel/popov-exem/pkg/util/context"
)

func (h handlers) RerunFailed(c echo.Context) error {
	ctx := context.FromContext(c.Request().Context())
	ctx = context.WithCorrelationID(ctx, uuid.New().String())
	runID := c.Param(client.RunIDParam)
	newID, err := h.sc.RerunFailed(ctx, runID)
	if err != nil {
		if errors.As(errors.Cause(err), &store.ErrNotFound{}) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusAccepted, client.SubmitResponse{
		RunID: newID,
	})
}
