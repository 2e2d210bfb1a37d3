package http

import (
	"time"

	"github.com/labstack/echo/v4"

	xutil "FinFuse/pkg/util"
)

// QueryInt reads an integer query parameter, falling back to def and clamping to [min, max].
func QueryInt(c echo.Context, name string, def, min, max int) int {
	return xutil.ClampInt(xutil.ParseIntDefault(c.QueryParam(name), def), min, max)
}

// QueryTime reads a time query parameter (RFC3339 or unix seconds), falling back to def.
func QueryTime(c echo.Context, name string, def time.Time) time.Time {
	return xutil.ParseTimeDefault(c.QueryParam(name), def)
}
