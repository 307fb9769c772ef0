package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kamiai/kamiai/internal/appstate"
	"github.com/kamiai/kamiai/internal/errors"
)

func (c *Controller) initStoreRoutes() {
	c.Group.GET("/app", c.GetApp)
	c.Group.PATCH("/app", c.UpdateApp)
	c.Group.DELETE("/app", c.ResetApp)
	c.Group.POST("/app/onboarding", c.CompleteOnboarding)

	c.Group.GET("/settings", c.GetSettings)
	c.Group.PUT("/settings", c.ReplaceSettings)
	c.Group.DELETE("/settings", c.ResetSettings)

	c.Group.GET("/achievements", c.GetAchievements)
	c.Group.POST("/achievements/:id/unlock", c.UnlockAchievement)
	c.Group.DELETE("/achievements", c.ResetAchievements)
}

// AppUpdateRequest changes app store fields. Omitted fields are left alone.
type AppUpdateRequest struct {
	Language      *string `json:"language"`
	PrimaryColor  *string `json:"primaryColor"`
	IsSidebarOpen *bool   `json:"isSidebarOpen"`
	ActiveModule  *string `json:"activeModule"`
}

// UnlockResponse reports whether the call unlocked the achievement.
type UnlockResponse struct {
	Unlocked bool `json:"unlocked"`
}

// GetApp handles GET /api/v1/app.
func (c *Controller) GetApp(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.Core.Stores.App())
}

// UpdateApp handles PATCH /api/v1/app.
func (c *Controller) UpdateApp(ctx echo.Context) error {
	var req AppUpdateRequest
	if err := bindJSON(ctx, &req); err != nil {
		return c.fail(ctx, err, "Invalid app update")
	}
	rctx := ctx.Request().Context()
	stores := c.Core.Stores

	if req.Language != nil {
		if err := stores.SetLanguage(rctx, *req.Language); err != nil {
			return c.fail(ctx, err, "Invalid language")
		}
	}
	if req.PrimaryColor != nil {
		if err := stores.SetPrimaryColor(rctx, *req.PrimaryColor); err != nil {
			return c.fail(ctx, err, "Invalid primary color")
		}
	}
	if req.IsSidebarOpen != nil {
		if err := stores.SetSidebarOpen(rctx, *req.IsSidebarOpen); err != nil {
			return c.fail(ctx, err, "Failed to update sidebar")
		}
	}
	if req.ActiveModule != nil {
		if err := stores.SetActiveModule(rctx, *req.ActiveModule); err != nil {
			return c.fail(ctx, err, "Failed to update active module")
		}
	}
	return ctx.JSON(http.StatusOK, stores.App())
}

// ResetApp handles DELETE /api/v1/app.
func (c *Controller) ResetApp(ctx echo.Context) error {
	if err := c.Core.Stores.ResetApp(ctx.Request().Context()); err != nil {
		return c.fail(ctx, err, "Failed to reset app")
	}
	return ctx.JSON(http.StatusOK, c.Core.Stores.App())
}

// CompleteOnboarding handles POST /api/v1/app/onboarding.
func (c *Controller) CompleteOnboarding(ctx echo.Context) error {
	var profile appstate.UserProfile
	if err := bindJSON(ctx, &profile); err != nil {
		return c.fail(ctx, err, "Invalid profile")
	}
	if err := c.Core.Stores.CompleteOnboarding(ctx.Request().Context(), profile); err != nil {
		return c.fail(ctx, err, "Onboarding failed")
	}
	return ctx.JSON(http.StatusOK, c.Core.Stores.App())
}

// GetSettings handles GET /api/v1/settings.
func (c *Controller) GetSettings(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.Core.Stores.Settings())
}

// ReplaceSettings handles PUT /api/v1/settings. The body starts from the
// current settings, so partial documents only change the fields they carry.
func (c *Controller) ReplaceSettings(ctx echo.Context) error {
	next := c.Core.Stores.Settings()
	if err := bindJSON(ctx, &next); err != nil {
		return c.fail(ctx, err, "Invalid settings")
	}
	err := c.Core.Stores.UpdateSettings(ctx.Request().Context(), func(st *appstate.Settings) {
		*st = next
	})
	if err != nil {
		return c.fail(ctx, err, "Invalid settings")
	}
	return ctx.JSON(http.StatusOK, c.Core.Stores.Settings())
}

// ResetSettings handles DELETE /api/v1/settings.
func (c *Controller) ResetSettings(ctx echo.Context) error {
	if err := c.Core.Stores.ResetSettings(ctx.Request().Context()); err != nil {
		return c.fail(ctx, err, "Failed to reset settings")
	}
	return ctx.JSON(http.StatusOK, c.Core.Stores.Settings())
}

// GetAchievements handles GET /api/v1/achievements.
func (c *Controller) GetAchievements(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.Core.Stores.Achievements())
}

// UnlockAchievement handles POST /api/v1/achievements/:id/unlock.
func (c *Controller) UnlockAchievement(ctx echo.Context) error {
	id := ctx.Param("id")
	if _, ok := c.Core.Stores.Achievements().Get(id); !ok {
		err := errors.Newf("achievement %q not found", id).
			Component("api").
			Category(errors.CategoryNotFound).
			Build()
		return c.fail(ctx, err, "Achievement not found")
	}
	unlocked, err := c.Core.Stores.Unlock(ctx.Request().Context(), id)
	if err != nil {
		return c.fail(ctx, err, "Failed to unlock achievement")
	}
	return ctx.JSON(http.StatusOK, UnlockResponse{Unlocked: unlocked})
}

// ResetAchievements handles DELETE /api/v1/achievements.
func (c *Controller) ResetAchievements(ctx echo.Context) error {
	if err := c.Core.Stores.ResetAchievements(ctx.Request().Context()); err != nil {
		return c.fail(ctx, err, "Failed to reset achievements")
	}
	return ctx.JSON(http.StatusOK, c.Core.Stores.Achievements())
}
