// Package serve provides the serve command that runs the node.
package serve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kamiai/kamiai/internal/api"
	"github.com/kamiai/kamiai/internal/buildinfo"
	"github.com/kamiai/kamiai/internal/conf"
	"github.com/kamiai/kamiai/internal/core"
	"github.com/kamiai/kamiai/internal/logger"
)

// Command creates the serve command.
func Command(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	var host, port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the node and its HTTP API",
		Long:  "Serve loads the node state, runs the live prediction loops, the backup scheduler and the MQTT publisher, and serves the HTTP API until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if host != "" {
				settings.WebServer.Host = host
			}
			if port != "" {
				settings.WebServer.Port = port
			}
			return run(settings, info)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Listen host (overrides webserver.host)")
	cmd.Flags().StringVarP(&port, "port", "p", "", "Listen port (overrides webserver.port)")

	return cmd
}

func run(settings *conf.Settings, info *buildinfo.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.Global().Module("main")

	c, err := core.New(ctx, settings, core.Options{Version: info.Version()})
	if err != nil {
		return fmt.Errorf("failed to initialize node: %w", err)
	}
	defer c.Close()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go rotateOnHangup(ctx, hup, logger.Global(), log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.Run(gctx)
	})

	if settings.WebServer.Enabled {
		srv, err := api.New(c, api.WithVersion(info.Version()))
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		g.Go(func() error {
			return srv.Start(gctx)
		})
	} else {
		log.Info("web server disabled, HTTP API not served")
	}

	log.Info("kamiai started",
		logger.String("version", info.Version()),
		logger.String("system_id", info.SystemID()),
		logger.String("node", settings.Main.Name))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("kamiai stopped")
	return nil
}

type rotator interface {
	Rotate() error
}

// rotateOnHangup starts a new log file each time hup fires, so external
// logrotate setups can move the current file away.
func rotateOnHangup(ctx context.Context, hup <-chan os.Signal, r rotator, log logger.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := r.Rotate(); err != nil {
				log.Warn("log rotation failed", logger.Error(err))
				continue
			}
			log.Info("log file rotated")
		}
	}
}
