package main

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (h handlers) Pipeline(c echo.Context) error {
	return c.JSON(http.StatusOK, h.pipeline)
}
