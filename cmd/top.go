//go:build linux

package cmd

import (
	"fmt"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"github.com/urfave/cli/v2"

	"github.com/webitel/actorcore/config"
	"github.com/webitel/actorcore/internal/domain/mailbox"
	"github.com/webitel/actorcore/internal/domain/registry"
)

// topCmd is an operator dashboard in the spirit of htop: a view, refreshed
// every second, of the registered-service count and global-queue length.
// It builds its own fresh registry and global queue rather than attaching
// to a running actorcore process, so both values stay at zero; it shows
// no worker or socket state.
func topCmd() *cli.Command {
	return &cli.Command{
		Name:  "top",
		Usage: "Live dashboard of registry and global-queue counters",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config_file", Usage: "Path to the configuration file"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config_file"))
			if err != nil {
				return err
			}
			return runTop(cfg)
		},
	}
}

func runTop(cfg *config.Config) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("top: termui init: %w", err)
	}
	defer ui.Close()

	reg := registry.New(cfg.Harbor)
	queue := mailbox.NewGlobalQueue()

	header := widgets.NewParagraph()
	header.Title = "actorcore top"
	header.SetRect(0, 0, 60, 3)

	table := widgets.NewTable()
	table.Title = "runtime"
	table.SetRect(0, 3, 60, 10)
	table.RowSeparator = false

	render := func() {
		header.Text = fmt.Sprintf("workers=%d harbor=%d  %s", cfg.Thread, cfg.Harbor, time.Now().Format(time.TimeOnly))
		table.Rows = [][]string{
			{"metric", "value"},
			{"registered services", fmt.Sprintf("%d", reg.Count())},
			{"global queue length", fmt.Sprintf("%d", queue.Len())},
		}
		ui.Render(header, table)
	}

	render()

	events := ui.PollEvents()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case e := <-events:
			switch e.ID {
			case "q", "<C-c>":
				return nil
			}
		case <-ticker.C:
			render()
		}
	}
}
