package core

import (
	"context"

	"github.com/kamiai/kamiai/internal/buildinfo"
	"github.com/kamiai/kamiai/internal/logger"
)

// CheckForUpdate compares the running version with the configured release
// server. It returns buildinfo.ErrUpdateCheckDisabled without a version URL.
func (c *Core) CheckForUpdate(ctx context.Context) (buildinfo.UpdateInfo, error) {
	current := c.version
	if current == "" {
		current = buildinfo.UnknownValue
	}
	info, err := c.updates.Check(ctx, current)
	if err != nil {
		return info, err
	}
	if info.Available {
		c.log.Info("update available",
			logger.String("current", info.Current),
			logger.String("latest", info.Latest))
	}
	return info, nil
}
