package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kamiai/kamiai/internal/datastore"
)

func (c *Controller) initModelRoutes() {
	c.Group.GET("/models", c.ListModels)
	c.Group.POST("/models", c.SaveModel)
	c.Group.GET("/models/:id", c.GetModel)
	c.Group.DELETE("/models/:id", c.DeleteModel)
	c.Group.POST("/models/:id/load", c.LoadModel)
}

// ModelSummary is a saved model without its serialized dataset.
type ModelSummary struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Type      string                `json:"type"`
	Classes   []datastore.ClassInfo `json:"classes"`
	CreatedAt int64                 `json:"createdAt"`
	UpdatedAt int64                 `json:"updatedAt"`
}

func summarize(m *datastore.SavedModel) ModelSummary {
	classes := m.Classes
	if classes == nil {
		classes = []datastore.ClassInfo{}
	}
	return ModelSummary{
		ID:        m.ID,
		Name:      m.Name,
		Type:      m.Type,
		Classes:   classes,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// ListModels handles GET /api/v1/models.
func (c *Controller) ListModels(ctx echo.Context) error {
	models, err := c.Core.Workspace.Models(ctx.Request().Context())
	if err != nil {
		return c.fail(ctx, err, "Failed to list models")
	}
	out := make([]ModelSummary, 0, len(models))
	for _, m := range models {
		out = append(out, summarize(m))
	}
	return ctx.JSON(http.StatusOK, out)
}

// SaveModel handles POST /api/v1/models. The workspace is saved as a new
// model snapshot.
func (c *Controller) SaveModel(ctx echo.Context) error {
	m, err := c.Core.Workspace.Save(ctx.Request().Context())
	if err != nil {
		return c.fail(ctx, err, "Failed to save model")
	}
	return ctx.JSON(http.StatusCreated, summarize(m))
}

// GetModel handles GET /api/v1/models/:id, including the dataset.
func (c *Controller) GetModel(ctx echo.Context) error {
	m, err := c.Core.Repo.GetModel(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return c.fail(ctx, err, "Model not found")
	}
	return ctx.JSON(http.StatusOK, m)
}

// DeleteModel handles DELETE /api/v1/models/:id.
func (c *Controller) DeleteModel(ctx echo.Context) error {
	if err := c.Core.Workspace.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return c.fail(ctx, err, "Failed to delete model")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// LoadModel handles POST /api/v1/models/:id/load. Models with examples need
// a ready session of their module.
func (c *Controller) LoadModel(ctx echo.Context) error {
	c.Core.Feed.Release()
	if _, err := c.Core.Workspace.Load(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return c.fail(ctx, err, "Failed to load model")
	}
	return ctx.JSON(http.StatusOK, c.workspaceResponse())
}
