package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/kamiai/kamiai/internal/backup"
)

func (c *Controller) initBackupRoutes() {
	g := c.Group.Group("/backup")
	g.GET("/export", c.ExportBackup)
	g.POST("/local", c.CreateLocalBackup)
	g.POST("/sync/:provider", c.SyncBackup)
	g.POST("/restore", c.RestoreBackup)
	g.GET("/history", c.GetBackupHistory)
	g.DELETE("/history/:id", c.DeleteBackupRecord)
	g.POST("/accounts", c.ConnectAccount)
	g.DELETE("/accounts/:provider", c.DisconnectAccount)
}

// BackupStatusResponse is the backup history and sync state.
type BackupStatusResponse struct {
	History  []backup.Record       `json:"history"`
	Accounts []backup.CloudAccount `json:"accounts"`
	Schedule backup.ScheduleState  `json:"schedule"`
	Syncing  bool                  `json:"syncing"`
}

// ExportBackup handles GET /api/v1/backup/export by sending the bundle as a
// file download.
func (c *Controller) ExportBackup(ctx echo.Context) error {
	filename, data, err := c.Core.Backup.Export(ctx.Request().Context())
	if err != nil {
		return c.fail(ctx, err, "Failed to export backup")
	}
	contentType := echo.MIMEApplicationJSON
	if strings.HasSuffix(filename, backup.EncryptedExtension) {
		contentType = echo.MIMEOctetStream
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, contentType, data)
}

// CreateLocalBackup handles POST /api/v1/backup/local.
func (c *Controller) CreateLocalBackup(ctx echo.Context) error {
	rec, err := c.Core.Backup.DownloadToLocal(ctx.Request().Context())
	if err != nil {
		return c.fail(ctx, err, "Failed to create local backup")
	}
	return ctx.JSON(http.StatusCreated, rec)
}

// SyncBackup handles POST /api/v1/backup/sync/:provider. A sync already in
// progress answers 409.
func (c *Controller) SyncBackup(ctx echo.Context) error {
	provider, err := backup.ParseProvider(ctx.Param("provider"))
	if err != nil {
		return c.fail(ctx, err, "Unknown provider")
	}
	rec, err := c.Core.Backup.SyncWithCloud(ctx.Request().Context(), provider)
	if err != nil {
		return c.fail(ctx, err, "Cloud sync failed")
	}
	return ctx.JSON(http.StatusCreated, rec)
}

// RestoreBackup handles POST /api/v1/backup/restore. The body is a bundle
// as produced by export, encrypted or not. A bundle that fails validation
// changes nothing.
func (c *Controller) RestoreBackup(ctx echo.Context) error {
	data, err := readBody(ctx)
	if err != nil {
		return c.fail(ctx, err, "Invalid backup file")
	}
	if err := c.Core.Backup.ImportBytes(ctx.Request().Context(), data); err != nil {
		return c.fail(ctx, err, "Restore failed")
	}
	return ctx.JSON(http.StatusOK, successResponse{Success: true, Message: "Backup restored"})
}

// GetBackupHistory handles GET /api/v1/backup/history.
func (c *Controller) GetBackupHistory(ctx echo.Context) error {
	state := c.Core.Backup.State()
	history := state.History()
	if history == nil {
		history = []backup.Record{}
	}
	accounts := state.Accounts()
	if accounts == nil {
		accounts = []backup.CloudAccount{}
	}
	return ctx.JSON(http.StatusOK, BackupStatusResponse{
		History:  history,
		Accounts: accounts,
		Schedule: state.Schedule(),
		Syncing:  c.Core.Backup.IsSyncing(),
	})
}

// DeleteBackupRecord handles DELETE /api/v1/backup/history/:id.
func (c *Controller) DeleteBackupRecord(ctx echo.Context) error {
	if err := c.Core.Backup.RemoveBackupRecord(ctx.Param("id")); err != nil {
		return c.fail(ctx, err, "Failed to delete backup record")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ConnectAccount handles POST /api/v1/backup/accounts.
func (c *Controller) ConnectAccount(ctx echo.Context) error {
	var acc backup.CloudAccount
	if err := bindJSON(ctx, &acc); err != nil {
		return c.fail(ctx, err, "Invalid account")
	}
	provider, err := backup.ParseProvider(string(acc.Provider))
	if err != nil {
		return c.fail(ctx, err, "Unknown provider")
	}
	if strings.TrimSpace(acc.Username) == "" {
		return c.fail(ctx, validationError("username is required", "username"), "Invalid account")
	}
	acc.Provider = provider
	acc.LastSync = 0
	if err := c.Core.Backup.State().ConnectAccount(acc); err != nil {
		return c.fail(ctx, err, "Failed to connect account")
	}
	return ctx.JSON(http.StatusCreated, acc)
}

// DisconnectAccount handles DELETE /api/v1/backup/accounts/:provider.
func (c *Controller) DisconnectAccount(ctx echo.Context) error {
	provider, err := backup.ParseProvider(ctx.Param("provider"))
	if err != nil {
		return c.fail(ctx, err, "Unknown provider")
	}
	if err := c.Core.Backup.State().DisconnectAccount(provider); err != nil {
		return c.fail(ctx, err, "Failed to disconnect account")
	}
	return ctx.NoContent(http.StatusNoContent)
}
