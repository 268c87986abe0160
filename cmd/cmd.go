//go:build linux

package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/webitel/actorcore/config"
)

const (
	ServiceName      = "actorcore"
	ServiceNamespace = "webitel"
)

var (
	version        = "0.0.0"
	commit         = "hash"
	commitDate     = time.Now().String()
	branch         = "branch"
	buildTimestamp = ""
)

// Run parses os.Args and dispatches to the server or top subcommand,
// mirroring the teacher's cli.App{Commands: []*cli.Command{serverCmd()}}
// shape in cmd/cmd.go.
func Run() error {
	app := &cli.App{
		Name:  ServiceName,
		Usage: "Multi-threaded actor runtime core",
		Commands: []*cli.Command{
			serverCmd(),
			topCmd(),
		},
	}

	return app.Run(os.Args)
}

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Run the actor runtime",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config_file",
				Usage: "Path to the configuration file",
			},
		},
		Action: func(c *cli.Context) error {
			configPath := c.String("config_file")
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}

			app := NewApp(cfg)
			if err := app.Start(c.Context); err != nil {
				return err
			}

			watcher, err := config.WatchLogLevel(configPath, func(level string) {
				slog.Info("config: log level changed", slog.String("level", level))
			})
			if err != nil {
				slog.Warn("config: log-level watch disabled", slog.String("error", err.Error()))
			}
			if watcher != nil {
				defer watcher.Close()
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("Shutting down...")
			return app.Stop(context.Background())
		},
	}
}
