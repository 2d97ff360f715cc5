package main

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/volgapavel/popov-exem/pkg/client"
	"github.com/volgapavel/popov-exem/pkg/store"
	"github.com/volgapavel/popov-exem/pkg/util/context"
)

func (h handlers) TaskState(c echo.Context) error {
	ctx := context.FromContext(c.Request().Context())
	runID := c.Param(client.RunIDParam)
	task := c.Param(client.TaskParam)
	state, err := h.sc.TaskState(ctx, runID, task)
	if err != nil {
		if errors.As(errors.Cause(err), &store.ErrNotFound{}) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, state)
}
