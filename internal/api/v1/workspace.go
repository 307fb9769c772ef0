package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kamiai/kamiai/internal/classifier"
	"github.com/kamiai/kamiai/internal/embedding"
	"github.com/kamiai/kamiai/internal/workspace"
)

func (c *Controller) initWorkspaceRoutes() {
	c.Group.GET("/workspace", c.GetWorkspace)
	c.Group.PATCH("/workspace", c.UpdateWorkspace)
	c.Group.DELETE("/workspace", c.ResetWorkspace)

	c.Group.POST("/classes", c.AddClass)
	c.Group.PATCH("/classes/:id", c.UpdateClass)
	c.Group.DELETE("/classes/:id", c.RemoveClass)
	c.Group.POST("/classes/:id/samples", c.AddSample)

	c.Group.POST("/predict", c.Predict)
}

// WorkspaceResponse is the workspace plus the examples the classifier holds.
type WorkspaceResponse struct {
	workspace.State
	Examples map[string]int `json:"examples"`
}

// UpdateWorkspaceRequest renames the model being trained.
type UpdateWorkspaceRequest struct {
	ModelName string `json:"modelName"`
}

// ClassRequest creates or updates a class. Omitted fields are left alone.
type ClassRequest struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

// SampleResponse reports whether a training frame was added.
type SampleResponse struct {
	Added       bool `json:"added"`
	SampleCount int  `json:"sampleCount"`
}

// PredictResponse wraps a prediction; Prediction is null while no module is
// ready or no examples exist.
type PredictResponse struct {
	Prediction *classifier.Prediction `json:"prediction"`
}

func (c *Controller) workspaceResponse() WorkspaceResponse {
	examples := c.Core.Sessions.Current().ClassExampleCount()
	if examples == nil {
		examples = map[string]int{}
	}
	return WorkspaceResponse{
		State:    c.Core.Workspace.State(),
		Examples: examples,
	}
}

// GetWorkspace handles GET /api/v1/workspace.
func (c *Controller) GetWorkspace(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.workspaceResponse())
}

// UpdateWorkspace handles PATCH /api/v1/workspace.
func (c *Controller) UpdateWorkspace(ctx echo.Context) error {
	var req UpdateWorkspaceRequest
	if err := bindJSON(ctx, &req); err != nil {
		return c.fail(ctx, err, "Invalid workspace update")
	}
	if err := c.Core.Workspace.SetModelName(req.ModelName); err != nil {
		return c.fail(ctx, err, "Invalid model name")
	}
	return ctx.JSON(http.StatusOK, c.workspaceResponse())
}

// ResetWorkspace handles DELETE /api/v1/workspace. The classifier keeps its
// examples until the session is reset.
func (c *Controller) ResetWorkspace(ctx echo.Context) error {
	c.Core.Feed.Release()
	c.Core.Workspace.Reset()
	return ctx.JSON(http.StatusOK, c.workspaceResponse())
}

// AddClass handles POST /api/v1/classes.
func (c *Controller) AddClass(ctx echo.Context) error {
	var req ClassRequest
	if err := bindJSON(ctx, &req); err != nil {
		return c.fail(ctx, err, "Invalid class")
	}
	name := ""
	if req.Name != nil {
		name = *req.Name
	}
	class := c.Core.Workspace.AddClass(ctx.Request().Context(), name)
	if req.Color != nil {
		if err := c.Core.Workspace.SetClassColor(class.ID, *req.Color); err != nil {
			return c.fail(ctx, err, "Invalid class color")
		}
		class.Color = *req.Color
	}
	return ctx.JSON(http.StatusCreated, class)
}

// UpdateClass handles PATCH /api/v1/classes/:id.
func (c *Controller) UpdateClass(ctx echo.Context) error {
	id := ctx.Param("id")
	var req ClassRequest
	if err := bindJSON(ctx, &req); err != nil {
		return c.fail(ctx, err, "Invalid class")
	}
	if req.Name != nil {
		if err := c.Core.Workspace.RenameClass(id, *req.Name); err != nil {
			return c.fail(ctx, err, "Failed to rename class")
		}
	}
	if req.Color != nil {
		if err := c.Core.Workspace.SetClassColor(id, *req.Color); err != nil {
			return c.fail(ctx, err, "Failed to set class color")
		}
	}
	for _, class := range c.Core.Workspace.State().Classes {
		if class.ID == id {
			return ctx.JSON(http.StatusOK, class)
		}
	}
	return c.fail(ctx, workspace.ErrClassNotFound, "Class not found")
}

// RemoveClass handles DELETE /api/v1/classes/:id.
func (c *Controller) RemoveClass(ctx echo.Context) error {
	id := ctx.Param("id")
	if c.Core.Feed.Held() == id {
		c.Core.Feed.Release()
	}
	if err := c.Core.Workspace.RemoveClass(id); err != nil {
		return c.fail(ctx, err, "Failed to remove class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// AddSample handles POST /api/v1/classes/:id/samples. The body is one
// PNG or JPEG frame.
func (c *Controller) AddSample(ctx echo.Context) error {
	id := ctx.Param("id")
	frame, err := readBody(ctx)
	if err != nil {
		return c.fail(ctx, err, "Invalid frame")
	}
	added, err := c.Core.Workspace.AddSample(ctx.Request().Context(), id, frame)
	if err != nil {
		return c.fail(ctx, err, "Failed to add sample")
	}

	resp := SampleResponse{Added: added}
	for _, class := range c.Core.Workspace.State().Classes {
		if class.ID == id {
			resp.SampleCount = class.SampleCount
		}
	}
	return ctx.JSON(http.StatusOK, resp)
}

// Predict handles POST /api/v1/predict. The body is one PNG or JPEG frame.
func (c *Controller) Predict(ctx echo.Context) error {
	data, err := readBody(ctx)
	if err != nil {
		return c.fail(ctx, err, "Invalid frame")
	}
	img, err := embedding.DecodeFrame(data)
	if err != nil {
		return c.fail(ctx, err, "Invalid frame")
	}
	pred, err := c.Core.Workspace.Predict(ctx.Request().Context(), img)
	if err != nil {
		return c.fail(ctx, err, "Prediction failed")
	}
	return ctx.JSON(http.StatusOK, PredictResponse{Prediction: pred})
}
