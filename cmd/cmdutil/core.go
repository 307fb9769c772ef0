// Package cmdutil holds helpers shared by the one-shot commands.
package cmdutil

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kamiai/kamiai/internal/conf"
	"github.com/kamiai/kamiai/internal/core"
)

// WithCore opens the node state, runs fn and closes it again. The context
// passed to fn is canceled on SIGINT or SIGTERM.
func WithCore(settings *conf.Settings, fn func(ctx context.Context, c *core.Core) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := core.New(ctx, settings, core.Options{})
	if err != nil {
		return fmt.Errorf("failed to open node state: %w", err)
	}
	defer c.Close()

	return fn(ctx, c)
}
