package main

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/volgapavel/popov-exem/pkg/util/context"
)

func (h handlers) ListRuns(c echo.Context) error {
	ctx := context.FromContext(c.Request().Context())
	runs, err := h.sc.ListRuns(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, runs)
}
