// Package backup provides the backup command for KamiAI
package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kamiai/kamiai/cmd/cmdutil"
	"github.com/kamiai/kamiai/internal/backup"
	"github.com/kamiai/kamiai/internal/conf"
	"github.com/kamiai/kamiai/internal/core"
)

// Command creates and returns the backup command
func Command(settings *conf.Settings) *cobra.Command {
	var output string
	var provider string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create a backup bundle of the node state",
		Long: `Backup writes a bundle of all saved models, samples and stores.
Without flags the bundle goes to the configured local backup directory and is
recorded in the backup history. --output writes it to a file instead and
--provider uploads it to a configured cloud target.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return cmdutil.WithCore(settings, func(ctx context.Context, c *core.Core) error {
				switch {
				case output != "":
					return exportTo(ctx, out, c, output)
				case provider != "":
					return syncTo(ctx, out, c, provider)
				}
				rec, err := c.Backup.DownloadToLocal(ctx)
				if err != nil {
					return fmt.Errorf("backup failed: %w", err)
				}
				fmt.Fprintf(out, "Backup written: %s (%d bytes)\n", rec.Filename, rec.Size)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the bundle to this file or directory")
	cmd.Flags().StringVar(&provider, "provider", "", "Upload the bundle to a cloud target (github or google)")
	cmd.MarkFlagsMutuallyExclusive("output", "provider")

	return cmd
}

func exportTo(ctx context.Context, out io.Writer, c *core.Core, output string) error {
	filename, data, err := c.Backup.Export(ctx)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		output = filepath.Join(output, filename)
	}
	if err := os.WriteFile(output, data, 0o600); err != nil {
		return fmt.Errorf("failed to write bundle: %w", err)
	}
	fmt.Fprintf(out, "Backup exported: %s (%d bytes)\n", output, len(data))
	return nil
}

func syncTo(ctx context.Context, out io.Writer, c *core.Core, name string) error {
	provider, err := backup.ParseProvider(name)
	if err != nil {
		return err
	}
	rec, err := c.Backup.SyncWithCloud(ctx, provider)
	if err != nil {
		return fmt.Errorf("cloud sync failed: %w", err)
	}
	fmt.Fprintf(out, "Backup uploaded to %s: %s (%d bytes)\n", rec.Provider, rec.Filename, rec.Size)
	return nil
}
