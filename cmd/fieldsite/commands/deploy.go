package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fieldsite/fieldsite/internal/archive"
	"github.com/fieldsite/fieldsite/internal/build"
	"github.com/fieldsite/fieldsite/internal/config"
	"github.com/fieldsite/fieldsite/internal/deploy"
	"github.com/fieldsite/fieldsite/internal/events"
	"github.com/fieldsite/fieldsite/internal/logfields"
	"github.com/fieldsite/fieldsite/internal/metrics"
)

// DeployCmd implements the 'deploy' command.
type DeployCmd struct {
	Target    string `arg:"" optional:"" help:"Target to publish to (ghpages, s3, netlify); defaults to deploy.default"`
	SkipBuild bool   `name:"skip-build" help:"Publish the existing output directory without rebuilding"`
	Prune     bool   `help:"Delete remote files that no longer exist locally (s3 only)"`
}

func (d *DeployCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return RunDeploy(context.Background(), cfg, metrics.NoopRecorder{}, d.Target, d.SkipBuild, d.Prune)
}

func RunDeploy(ctx context.Context, cfg *config.Config, rec metrics.Recorder, target string, skipBuild, prune bool) error {
	deployer, err := deploy.For(cfg, target)
	if err != nil {
		return err
	}
	target = deployer.Name()
	if s3d, ok := deployer.(*deploy.S3); ok {
		s3d.SetPrune(prune)
	}

	if !skipBuild {
		rep, err := build.New(cfg).SetRecorder(rec).Run(ctx)
		if err != nil {
			return fmt.Errorf("build before deploy: %w", err)
		}
		fmt.Printf("Built %d pages into %s\n", rep.Pages, cfg.Output.Dir)
	}

	start := time.Now()
	res, err := deployer.Publish(ctx, cfg.Output.Dir)
	rec.ObserveDeployDuration(target, time.Since(start), err == nil)
	rec.IncDeployResult(target, err == nil)
	if err != nil {
		return err
	}

	fmt.Printf("Published %d files to %s in %s\n", res.Files, res.Target, res.Duration.Truncate(time.Millisecond))
	if res.URL != "" {
		fmt.Println("Site URL:", res.URL)
	}

	recordDeploy(ctx, cfg, res)
	return nil
}

// recordDeploy appends the publish to the archive's event log and notifies
// the daemon event stream when one is configured. Both are best effort: a
// deploy that reached the host already succeeded.
func recordDeploy(ctx context.Context, cfg *config.Config, res *deploy.Result) {
	details := fmt.Sprintf("target=%s files=%d url=%s", res.Target, res.Files, res.URL)

	if _, err := os.Stat(cfg.Collect.Archive); err == nil {
		store, err := archive.Open(cfg.Collect.Archive)
		if err != nil {
			slog.Warn("Failed to open archive for deploy event", logfields.Error(err))
		} else {
			if err := store.AppendEvent(ctx, "deploy", res.ID, details); err != nil {
				slog.Warn("Failed to record deploy event", logfields.Error(err))
			}
			_ = store.Close()
		}
	}

	if cfg.Daemon.NATS.URL == "" {
		return
	}
	pub, err := events.Connect(cfg.Daemon.NATS.URL, cfg.Daemon.NATS.Subject)
	if err != nil {
		slog.Warn("Failed to reach event stream for deploy event", logfields.Error(err))
		return
	}
	defer pub.Close()
	if err := pub.Publish(events.KindDeployCompleted, res.ID, map[string]any{
		"target": res.Target,
		"files":  res.Files,
		"url":    res.URL,
	}); err != nil {
		slog.Warn("Failed to publish deploy event", logfields.Error(err))
	}
}
