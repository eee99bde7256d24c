package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/fieldsite/fieldsite/internal/archive"
	"github.com/fieldsite/fieldsite/internal/collect"
	"github.com/fieldsite/fieldsite/internal/config"
	"github.com/fieldsite/fieldsite/internal/logfields"
	"github.com/fieldsite/fieldsite/internal/quota"
	"github.com/fieldsite/fieldsite/internal/xapi"
)

// CollectCmd implements the 'collect' command.
type CollectCmd struct {
	SinceID bool `name:"since-id" help:"Resume after the newest archived post instead of the full window"`
}

func (c *CollectCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return RunCollect(context.Background(), cfg, c.SinceID)
}

func RunCollect(ctx context.Context, cfg *config.Config, resume bool) error {
	bearer := os.Getenv("X_BEARER_TOKEN")
	if bearer == "" {
		return errors.New("X_BEARER_TOKEN is not set (see .env.example)")
	}

	store, err := archive.Open(cfg.Collect.Archive)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = store.Close() }()

	ledger := quota.NewLedger(store, cfg.Collect.MonthlyCap)
	client := xapi.NewClient(cfg.Collect.BaseURL, bearer)

	res, err := collect.NewRunner(cfg.Collect, client, store, ledger).Run(ctx, resume)
	if errors.Is(err, quota.ErrCapReached) {
		fmt.Println("Monthly quota exhausted; nothing collected. The cap resets next month.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Collected %d posts (%d new) over %d pages; %d quota remaining\n",
		res.Fetched, res.Archived, res.Pages, res.Remaining)
	if res.RateLimited {
		fmt.Println("The run stopped early on a rate limit; everything fetched so far is archived.")
	}

	err = store.AppendEvent(ctx, "collect", "",
		fmt.Sprintf("fetched=%d archived=%d remaining=%d", res.Fetched, res.Archived, res.Remaining))
	if err != nil {
		slog.Warn("Failed to record collect event", logfields.Error(err))
	}
	return nil
}
