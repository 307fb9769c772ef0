package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kamiai/kamiai/internal/workspace"
)

func (c *Controller) initLiveRoutes() {
	c.Group.GET("/live", c.GetLive)
	c.Group.POST("/live", c.SetLive)
	c.Group.PUT("/live/frame", c.PushFrame)
	c.Group.POST("/live/hold", c.HoldClass)
	c.Group.DELETE("/live/hold", c.ReleaseClass)
}

// LiveRequest toggles live prediction.
type LiveRequest struct {
	Live *bool `json:"live"`
}

// HoldRequest starts capturing frames for a class.
type HoldRequest struct {
	ClassID string `json:"classId"`
}

// FrameResponse acknowledges a pushed frame.
type FrameResponse struct {
	Seq uint64 `json:"seq"`
}

// GetLive handles GET /api/v1/live.
func (c *Controller) GetLive(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.Core.Feed.Status())
}

// SetLive handles POST /api/v1/live.
func (c *Controller) SetLive(ctx echo.Context) error {
	var req LiveRequest
	if err := bindJSON(ctx, &req); err != nil {
		return c.fail(ctx, err, "Invalid live request")
	}
	if req.Live == nil {
		return c.fail(ctx, validationError("live is required", "live"), "Invalid live request")
	}
	c.Core.Feed.SetLive(*req.Live)
	return ctx.JSON(http.StatusOK, c.Core.Feed.Status())
}

// PushFrame handles PUT /api/v1/live/frame. The newest frame replaces any
// frame the loops have not consumed yet.
func (c *Controller) PushFrame(ctx echo.Context) error {
	frame, err := readBody(ctx)
	if err != nil {
		return c.fail(ctx, err, "Invalid frame")
	}
	seq := c.Core.Feed.PushFrame(frame)
	return ctx.JSON(http.StatusAccepted, FrameResponse{Seq: seq})
}

// HoldClass handles POST /api/v1/live/hold.
func (c *Controller) HoldClass(ctx echo.Context) error {
	var req HoldRequest
	if err := bindJSON(ctx, &req); err != nil {
		return c.fail(ctx, err, "Invalid hold request")
	}
	if req.ClassID == "" {
		return c.fail(ctx, validationError("classId is required", "classId"), "Invalid hold request")
	}
	known := false
	for _, class := range c.Core.Workspace.State().Classes {
		if class.ID == req.ClassID {
			known = true
			break
		}
	}
	if !known {
		return c.fail(ctx, workspace.ErrClassNotFound, "Class not found")
	}
	c.Core.Feed.Hold(req.ClassID)
	return ctx.JSON(http.StatusOK, c.Core.Feed.Status())
}

// ReleaseClass handles DELETE /api/v1/live/hold.
func (c *Controller) ReleaseClass(ctx echo.Context) error {
	c.Core.Feed.Release()
	return ctx.JSON(http.StatusOK, c.Core.Feed.Status())
}
