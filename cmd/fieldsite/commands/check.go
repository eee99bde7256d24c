package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/fieldsite/fieldsite/internal/build"
	"github.com/fieldsite/fieldsite/internal/config"
	"github.com/fieldsite/fieldsite/internal/linkcheck"
	"github.com/fieldsite/fieldsite/internal/site"
)

// CheckCmd implements the 'check' command.
type CheckCmd struct {
	External bool `help:"Also probe external http(s) links"`
}

func (c *CheckCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return RunCheck(context.Background(), cfg, c.External)
}

// RunCheck validates navigation and links. The output-level pass needs HTML
// that matches the current config, so when the output directory is absent or
// was built from a different config the site is first built into a temporary
// directory, which also re-validates the navigation invariant.
func RunCheck(ctx context.Context, cfg *config.Config, external bool) error {
	outDir := cfg.Output.Dir
	if outputStale(cfg) {
		tmp, err := os.MkdirTemp("", "fieldsite-check-*")
		if err != nil {
			return fmt.Errorf("create temp output: %w", err)
		}
		defer func() { _ = os.RemoveAll(tmp) }()

		checkCfg := *cfg
		checkCfg.Output.Dir = tmp
		if _, err := build.New(&checkCfg).Run(ctx); err != nil {
			return fmt.Errorf("build for check: %w", err)
		}
		outDir = tmp
	}

	s, err := site.Load(cfg.Content.Dir)
	if err != nil {
		return err
	}

	problems, err := linkcheck.New().SetExternal(external).Run(ctx, s, outDir)
	if err != nil {
		return err
	}
	if len(problems) == 0 {
		fmt.Println("No broken links found")
		return nil
	}
	for _, p := range problems {
		fmt.Println(p.String())
	}
	return fmt.Errorf("found %d broken links", len(problems))
}

// outputStale reports whether the output directory carries a build of the
// loaded configuration.
func outputStale(cfg *config.Config) bool {
	rep, err := build.ReadReport(cfg.Output.Dir)
	if err != nil {
		return true
	}
	return rep.ConfigHash != cfg.Hash()
}
