// Package restore provides the restore command for KamiAI
package restore

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kamiai/kamiai/cmd/cmdutil"
	"github.com/kamiai/kamiai/internal/conf"
	"github.com/kamiai/kamiai/internal/core"
)

// Command creates and returns the restore command
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore [bundle file]",
		Short: "Restore a backup bundle",
		Long: `Restore replaces all saved models, samples and stores with the contents of
a .kami or .kami.enc bundle. Encrypted bundles use the configured passphrase.
A bundle that fails validation leaves the node untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdutil.WithCore(settings, func(ctx context.Context, c *core.Core) error {
				if err := c.Backup.ImportFile(ctx, args[0]); err != nil {
					return fmt.Errorf("restore failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Backup restored from %s\n", args[0])
				return nil
			})
		},
	}

	return cmd
}
