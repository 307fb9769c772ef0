// Package version provides the version command.
package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kamiai/kamiai/internal/buildinfo"
	"github.com/kamiai/kamiai/internal/conf"
)

// CheckFlag asks the version command to query the release server. Only
// then does the command need the configuration.
const CheckFlag = "check"

// Command creates the version command.
func Command(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, info.String())
			if !check {
				return nil
			}

			checker := &buildinfo.UpdateChecker{
				VersionURL:  settings.Update.VersionURL,
				DownloadURL: settings.Update.DownloadURL,
				Timeout:     settings.Update.Timeout,
			}
			res, err := checker.Check(cmd.Context(), info.Version())
			if err != nil {
				return err
			}
			if !res.Available {
				fmt.Fprintln(out, "kamiai is up to date")
				return nil
			}
			fmt.Fprintf(out, "kamiai %s is available", res.Latest)
			if res.DownloadURL != "" {
				fmt.Fprintf(out, ": %s", res.DownloadURL)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, CheckFlag, false, "Check the configured release server for a newer version")
	return cmd
}
