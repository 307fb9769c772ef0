// Package format provides the factory reset command.
package format

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kamiai/kamiai/cmd/cmdutil"
	"github.com/kamiai/kamiai/internal/conf"
	"github.com/kamiai/kamiai/internal/core"
)

// Command creates the format command.
func Command(settings *conf.Settings) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "format",
		Short: "Erase all saved models and reset the node",
		Long:  "Format deletes every saved model and sample and resets the app store. Settings and achievements are kept.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return fmt.Errorf("format erases all saved models; rerun with --yes to confirm")
			}
			return cmdutil.WithCore(settings, func(ctx context.Context, c *core.Core) error {
				if err := c.FormatSystem(ctx); err != nil {
					return fmt.Errorf("format failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "System formatted")
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "Confirm the reset")
	return cmd
}
