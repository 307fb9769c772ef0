package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kamiai/kamiai/cmd/backup"
	"github.com/kamiai/kamiai/cmd/format"
	"github.com/kamiai/kamiai/cmd/models"
	"github.com/kamiai/kamiai/cmd/predict"
	"github.com/kamiai/kamiai/cmd/restore"
	"github.com/kamiai/kamiai/cmd/serve"
	"github.com/kamiai/kamiai/cmd/train"
	"github.com/kamiai/kamiai/cmd/version"
	"github.com/kamiai/kamiai/internal/buildinfo"
	"github.com/kamiai/kamiai/internal/conf"
	"github.com/kamiai/kamiai/internal/logger"
)

// RootCommand creates and returns the root command
func RootCommand(info *buildinfo.Context) *cobra.Command {
	settings := &conf.Settings{}
	var configPath string
	var debug bool

	rootCmd := &cobra.Command{
		Use:           "kamiai",
		Short:         "KamiAI teachable agent node",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.yaml (default: search the standard config directories)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")

	versionCmd := version.Command(settings, info)
	rootCmd.AddCommand(
		serve.Command(settings, info),
		train.Command(settings),
		predict.Command(settings),
		backup.Command(settings),
		restore.Command(settings),
		models.Command(settings),
		format.Command(settings),
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// version needs no configuration unless it checks for updates
		if cmd.Name() == versionCmd.Name() && !cmd.Flags().Changed(version.CheckFlag) {
			return nil
		}
		return initialize(settings, configPath, debug)
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return logger.Global().Close()
	}

	return rootCmd
}

// initialize loads the configuration into settings and installs the global
// logger. Command line flags take precedence over the file.
func initialize(settings *conf.Settings, configPath string, debug bool) error {
	var loaded *conf.Settings
	var err error
	if configPath != "" {
		loaded, err = conf.LoadFile(configPath)
	} else {
		loaded, err = conf.Load()
	}
	if err != nil {
		return err
	}

	if debug {
		loaded.Debug = true
	}
	if loaded.Debug {
		loaded.Logging.DefaultLevel = string(logger.LogLevelDebug)
		if loaded.Logging.Console != nil {
			loaded.Logging.Console.Level = string(logger.LogLevelDebug)
		}
	}

	cl, err := logger.NewCentralLogger(&loaded.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(cl)

	*settings = *loaded
	return nil
}
