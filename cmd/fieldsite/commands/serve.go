package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fieldsite/fieldsite/internal/config"
	"github.com/fieldsite/fieldsite/internal/metrics"
	"github.com/fieldsite/fieldsite/internal/server"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Addr string `help:"Listen address (overrides serve.addr)"`
}

func (s *ServeCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if s.Addr != "" {
		cfg.Serve.Addr = s.Addr
	}
	return RunServe(cfg, root.Config)
}

func RunServe(cfg *config.Config, configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := prometheus.NewRegistry()
	srv := server.New(cfg, configPath).
		SetRecorder(metrics.NewPrometheusRecorder(registry)).
		SetRegistry(registry)

	fmt.Printf("Serving %s on http://%s (Ctrl-C to stop)\n", cfg.Output.Dir, cfg.Serve.Addr)
	return srv.Run(ctx)
}
