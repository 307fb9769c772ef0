// Package predict provides the predict command that classifies image files
// with a saved model.
package predict

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kamiai/kamiai/cmd/cmdutil"
	"github.com/kamiai/kamiai/internal/conf"
	"github.com/kamiai/kamiai/internal/core"
	"github.com/kamiai/kamiai/internal/embedding"
	"github.com/kamiai/kamiai/internal/session"
)

// Command creates the predict command.
func Command(settings *conf.Settings) *cobra.Command {
	var modelID string

	cmd := &cobra.Command{
		Use:   "predict --model ID PATH [PATH...]",
		Short: "Classify image files with a saved model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdutil.WithCore(settings, func(ctx context.Context, c *core.Core) error {
				if _, err := c.Sessions.Init(ctx, session.ModuleVision); err != nil {
					return fmt.Errorf("failed to load vision module: %w", err)
				}
				if _, err := c.Workspace.Load(ctx, modelID); err != nil {
					return fmt.Errorf("failed to load model %s: %w", modelID, err)
				}

				names := make(map[string]string)
				for _, class := range c.Workspace.State().Classes {
					names[class.ID] = class.Name
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "FILE\tLABEL\tCONFIDENCE")
				for _, path := range args {
					files, err := cmdutil.ImageFiles(path)
					if err != nil {
						return err
					}
					for _, f := range files {
						if err := predictFile(ctx, w, c, names, f); err != nil {
							return err
						}
					}
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVarP(&modelID, "model", "m", "", "Saved model id")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func predictFile(ctx context.Context, w *tabwriter.Writer, c *core.Core, names map[string]string, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	img, err := embedding.DecodeFrame(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	pred, err := c.Workspace.Predict(ctx, img)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if pred == nil {
		fmt.Fprintf(w, "%s\t-\t-\n", path)
		return nil
	}
	label := names[pred.Label]
	if label == "" {
		label = pred.Label
	}
	fmt.Fprintf(w, "%s\t%s\t%.1f%%\n", path, label, pred.Confidences[pred.Label]*100)
	return nil
}
