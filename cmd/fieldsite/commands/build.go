package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldsite/fieldsite/internal/build"
	"github.com/fieldsite/fieldsite/internal/config"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Force bool `help:"Replace an output directory that was not produced by a previous build"`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return RunBuild(context.Background(), cfg, b.Force)
}

func RunBuild(ctx context.Context, cfg *config.Config, force bool) error {
	rep, err := build.New(cfg).SetForce(force).Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Built %d pages and %d assets into %s (%s)\n",
		rep.Pages, rep.Assets, cfg.Output.Dir, rep.Duration().Truncate(time.Millisecond))
	for _, w := range rep.Warnings {
		fmt.Println("warning:", w)
	}
	return nil
}
