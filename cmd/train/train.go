// Package train provides the train command that builds a model from image
// files.
package train

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kamiai/kamiai/cmd/cmdutil"
	"github.com/kamiai/kamiai/internal/conf"
	"github.com/kamiai/kamiai/internal/core"
	"github.com/kamiai/kamiai/internal/session"
	"github.com/kamiai/kamiai/internal/workspace"
)

// classSpec is one LABEL=PATH argument.
type classSpec struct {
	label string
	path  string
}

func parseSpecs(args []string) ([]classSpec, error) {
	specs := make([]classSpec, 0, len(args))
	seen := make(map[string]bool, len(args))
	for _, arg := range args {
		label, path, ok := strings.Cut(arg, "=")
		if !ok || label == "" || path == "" {
			return nil, fmt.Errorf("invalid class %q, want LABEL=PATH", arg)
		}
		if seen[label] {
			return nil, fmt.Errorf("class %q given twice", label)
		}
		seen[label] = true
		specs = append(specs, classSpec{label: label, path: path})
	}
	return specs, nil
}

// Command creates the train command.
func Command(settings *conf.Settings) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "train LABEL=PATH [LABEL=PATH...]",
		Short: "Train and save a vision model from image files",
		Long: `Train loads the vision module, adds every PNG or JPEG under each PATH as an
example of LABEL and saves the result as a new model. PATH may be a single
file or a directory.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := parseSpecs(args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return cmdutil.WithCore(settings, func(ctx context.Context, c *core.Core) error {
				if _, err := c.Sessions.Init(ctx, session.ModuleVision); err != nil {
					return fmt.Errorf("failed to load vision module: %w", err)
				}

				c.Workspace.Reset()
				if name != "" {
					if err := c.Workspace.SetModelName(name); err != nil {
						return err
					}
				}
				ids, err := bindClasses(ctx, c.Workspace, specs)
				if err != nil {
					return err
				}

				for i, spec := range specs {
					n, err := addSamples(ctx, c.Workspace, ids[i], spec.path)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s: %d examples\n", spec.label, n)
				}

				m, err := c.Workspace.Save(ctx)
				if err != nil {
					return fmt.Errorf("failed to save model: %w", err)
				}
				fmt.Fprintf(out, "Model saved: %s (%s)\n", m.ID, m.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Model name")
	return cmd
}

// bindClasses renames the default classes to the requested labels, adds
// classes for the rest and drops unused defaults. It returns class ids in
// argument order.
func bindClasses(ctx context.Context, ws *workspace.Workspace, specs []classSpec) ([]string, error) {
	existing := ws.State().Classes
	ids := make([]string, len(specs))
	for i, spec := range specs {
		if i < len(existing) {
			if err := ws.RenameClass(existing[i].ID, spec.label); err != nil {
				return nil, err
			}
			ids[i] = existing[i].ID
			continue
		}
		ids[i] = ws.AddClass(ctx, spec.label).ID
	}
	for _, extra := range existing[min(len(specs), len(existing)):] {
		if err := ws.RemoveClass(extra.ID); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func addSamples(ctx context.Context, ws *workspace.Workspace, classID, path string) (int, error) {
	files, err := cmdutil.ImageFiles(path)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return n, err
		}
		added, err := ws.AddSample(ctx, classID, data)
		if err != nil {
			return n, fmt.Errorf("%s: %w", f, err)
		}
		if added {
			n++
		}
	}
	return n, nil
}
