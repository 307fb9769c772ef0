package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kamiai/kamiai/internal/logger"
	"github.com/kamiai/kamiai/internal/session"
)

func (c *Controller) initSessionRoutes() {
	c.Group.GET("/session", c.GetSession)
	c.Group.POST("/session", c.InitSession)
	c.Group.DELETE("/session", c.ResetSession)
}

// InitSessionRequest selects the module to load.
type InitSessionRequest struct {
	Module string `json:"module"`
}

// GetSession handles GET /api/v1/session.
func (c *Controller) GetSession(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.Core.Sessions.State())
}

// InitSession handles POST /api/v1/session. A failed extractor load answers
// 503 with the session error; posting again retries.
func (c *Controller) InitSession(ctx echo.Context) error {
	var req InitSessionRequest
	if err := bindJSON(ctx, &req); err != nil {
		return c.fail(ctx, err, "Invalid session request")
	}
	mt, err := session.ParseModuleType(req.Module)
	if err != nil {
		return c.fail(ctx, err, "Invalid module")
	}

	if _, err := c.Core.Sessions.Init(ctx.Request().Context(), mt); err != nil {
		message := c.Core.Sessions.Err()
		if message == "" {
			message = "Failed to initialize module"
		}
		return c.fail(ctx, err, message)
	}

	if err := c.Core.Stores.SetActiveModule(ctx.Request().Context(), string(mt)); err != nil {
		c.logger.Warn("failed to record active module", logger.Error(err))
	}
	return ctx.JSON(http.StatusOK, c.Core.Sessions.State())
}

// ResetSession handles DELETE /api/v1/session.
func (c *Controller) ResetSession(ctx echo.Context) error {
	c.Core.Feed.SetLive(false)
	c.Core.Feed.Release()
	c.Core.Sessions.Reset()
	return ctx.JSON(http.StatusOK, c.Core.Sessions.State())
}
