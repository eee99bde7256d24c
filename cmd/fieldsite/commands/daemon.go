package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fieldsite/fieldsite/internal/config"
	"github.com/fieldsite/fieldsite/internal/daemon"
	"github.com/fieldsite/fieldsite/internal/logfields"
	"github.com/fieldsite/fieldsite/internal/metrics"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct{}

func (d *DaemonCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return RunDaemon(cfg, root.Config)
}

func RunDaemon(cfg *config.Config, configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := prometheus.NewRegistry()
	d := daemon.New(cfg, configPath).
		SetRecorder(metrics.NewPrometheusRecorder(registry)).
		SetRegistry(registry)

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	slog.Info("Daemon started, waiting for shutdown signal", logfields.Addr(d.Addr()))

	select {
	case err := <-d.Err():
		_ = stopDaemon(d)
		return fmt.Errorf("daemon error: %w", err)
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping daemon")
	}

	if err := stopDaemon(d); err != nil {
		return err
	}
	slog.Info("Daemon stopped")
	return nil
}

func stopDaemon(d *daemon.Daemon) error {
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := d.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop daemon: %w", err)
	}
	return nil
}
