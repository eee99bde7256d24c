package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
)

// Global is bound into every subcommand's Run. For now it only carries the
// logger; anything else shared across commands would land here.
type Global struct {
	Logger *slog.Logger
}

// CLI is the root command tree. Subcommands also receive this root, which is
// where the config path and verbosity flags live.
type CLI struct {
	Config  string           `short:"c" help:"Project configuration file path" default:"fieldsite.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Init    InitCmd    `cmd:"" help:"Scaffold a new site project"`
	Build   BuildCmd   `cmd:"" help:"Build the site into the output directory"`
	Check   CheckCmd   `cmd:"" help:"Verify navigation and links without publishing"`
	Serve   ServeCmd   `cmd:"" help:"Serve the site locally with live reload"`
	Collect CollectCmd `cmd:"" help:"Collect posts from the X search API into the archive"`
	Report  ReportCmd  `cmd:"" help:"Classify archived posts and write the findings page"`
	Deploy  DeployCmd  `cmd:"" help:"Publish the built site to a hosting target"`
	Daemon  DaemonCmd  `cmd:"" help:"Run unattended: scheduled collection, watch rebuilds, status endpoint"`
}

// AfterApply fires once flags are parsed, before any Run: one text handler
// on stderr, debug level when -v is set.
// nolint:unparam // kong wants the error return.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}
