package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fieldsite/fieldsite/internal/archive"
	"github.com/fieldsite/fieldsite/internal/config"
	"github.com/fieldsite/fieldsite/internal/report"
)

// ReportCmd implements the 'report' command.
type ReportCmd struct{}

func (r *ReportCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return RunReport(context.Background(), cfg)
}

func RunReport(ctx context.Context, cfg *config.Config) error {
	store, err := archive.Open(cfg.Collect.Archive)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = store.Close() }()

	summary, err := report.New(cfg).Run(ctx, store)
	if err != nil {
		return err
	}

	fmt.Printf("Classified %d archived posts:\n", summary.Total)
	for _, t := range summary.Topics {
		fmt.Printf("- %s: %d (%.1f%%)\n", t.Name, t.Count, t.Percent)
	}
	if summary.SubjectCount > 0 {
		fmt.Printf("Posts on the subject topics: %d (%.1f%%)\n", summary.SubjectCount, summary.SubjectPercent)
	}
	fmt.Println("Findings page written to", filepath.Join(cfg.Content.Dir, cfg.Report.Page))
	fmt.Println("Annotated CSV written to", cfg.Report.CSV)
	return nil
}
