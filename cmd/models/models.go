// Package models provides commands for inspecting saved models.
package models

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kamiai/kamiai/cmd/cmdutil"
	"github.com/kamiai/kamiai/internal/conf"
	"github.com/kamiai/kamiai/internal/core"
)

// Command creates the models command with its list and delete subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage saved models",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved models, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdutil.WithCore(settings, func(ctx context.Context, c *core.Core) error {
				models, err := c.Workspace.Models(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tTYPE\tCLASSES\tUPDATED")
				for _, m := range models {
					updated := time.UnixMilli(m.UpdatedAt).Format(time.DateTime)
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", m.ID, m.Name, m.Type, len(m.Classes), updated)
				}
				return w.Flush()
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [model id]",
		Short: "Delete a saved model and its samples",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdutil.WithCore(settings, func(ctx context.Context, c *core.Core) error {
				if err := c.Workspace.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Model %s deleted\n", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(listCmd, deleteCmd)
	return cmd
}
