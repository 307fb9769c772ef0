package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (c *Controller) initSystemRoutes() {
	c.Group.POST("/system/format", c.FormatSystem)
	c.Group.GET("/system/metrics", c.GetSystemMetrics)
	c.Group.GET("/system/update", c.CheckForUpdate)
}

// FormatSystem handles POST /api/v1/system/format.
func (c *Controller) FormatSystem(ctx echo.Context) error {
	if err := c.Core.FormatSystem(ctx.Request().Context()); err != nil {
		return c.fail(ctx, err, "Factory reset failed")
	}
	return ctx.JSON(http.StatusOK, successResponse{Success: true, Message: "System formatted"})
}

// GetSystemMetrics handles GET /api/v1/system/metrics. Values the host
// cannot report are omitted; the call itself never fails.
func (c *Controller) GetSystemMetrics(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.Core.SysInfo.Collect(ctx.Request().Context()))
}

// CheckForUpdate handles GET /api/v1/system/update.
func (c *Controller) CheckForUpdate(ctx echo.Context) error {
	info, err := c.Core.CheckForUpdate(ctx.Request().Context())
	if err != nil {
		return c.fail(ctx, err, "Update check failed")
	}
	return ctx.JSON(http.StatusOK, info)
}
