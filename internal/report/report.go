// Package report turns the classified archive into publishable artifacts: a
// findings page in the content directory and an annotated CSV export.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fieldsite/fieldsite/internal/archive"
	"github.com/fieldsite/fieldsite/internal/classify"
	"github.com/fieldsite/fieldsite/internal/config"
	"github.com/fieldsite/fieldsite/internal/logfields"
)

// samplesPerTopic caps the quoted posts under each topic heading.
const samplesPerTopic = 3

// Reporter classifies the archive and writes the findings artifacts.
type Reporter struct {
	cfg *config.Config
	now func() time.Time
}

func New(cfg *config.Config) *Reporter {
	return &Reporter{cfg: cfg, now: time.Now}
}

// Run loads the archive, classifies it, and writes the findings page and
// the annotated CSV. The returned summary is what the caller prints.
func (r *Reporter) Run(ctx context.Context, store *archive.Store) (*classify.Summary, error) {
	posts, err := store.Posts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load archive: %w", err)
	}
	if len(posts) == 0 {
		return nil, fmt.Errorf("archive has no posts; run collect first")
	}

	classifier, err := classify.New(r.cfg.Topics, r.cfg.Report.SubjectTopics)
	if err != nil {
		return nil, err
	}
	labeled := classifier.Label(posts)
	summary := classifier.Summarize(labeled)

	pagePath := filepath.Join(r.cfg.Content.Dir, r.cfg.Report.Page)
	if err := writeFile(pagePath, r.renderPage(summary, labeled)); err != nil {
		return nil, fmt.Errorf("failed to write findings page: %w", err)
	}
	slog.Info("Wrote findings page", logfields.File(pagePath), logfields.Posts(summary.Total))

	if err := writeCSV(r.cfg.Report.CSV, labeled); err != nil {
		return nil, fmt.Errorf("failed to write annotated CSV: %w", err)
	}
	slog.Info("Wrote annotated archive", logfields.File(r.cfg.Report.CSV))

	return summary, nil
}

// renderPage builds the findings document. It is plain markdown with
// frontmatter, so the next build publishes it like any other page.
func (r *Reporter) renderPage(s *classify.Summary, labeled []classify.Labeled) string {
	var b strings.Builder
	date := r.now().UTC().Format("2006-01-02")

	fmt.Fprintf(&b, "---\ntitle: Findings\ndescription: Topic breakdown of the archived posts\ndate: %s\n---\n\n", date)
	fmt.Fprintf(&b, "# Findings\n\n")
	fmt.Fprintf(&b, "The archive holds **%d** posts. A post can carry several topic labels, so shares can sum past 100%%.\n\n", s.Total)

	b.WriteString("| Topic | Posts | Share |\n| --- | ---: | ---: |\n")
	for _, t := range s.Topics {
		fmt.Fprintf(&b, "| %s | %d | %.1f%% |\n", t.Name, t.Count, t.Percent)
	}
	b.WriteString("\n")

	if subjects := r.cfg.Report.SubjectTopics; len(subjects) > 0 {
		fmt.Fprintf(&b, "**%d** of %d posts (%.1f%%) touch the subject topics: %s.\n\n",
			s.SubjectCount, s.Total, s.SubjectPercent, strings.Join(subjects, ", "))
	}

	b.WriteString("## Samples\n")
	for _, t := range s.Topics {
		fmt.Fprintf(&b, "\n### %s\n", t.Name)
		for _, l := range samples(labeled, t.Name) {
			fmt.Fprintf(&b, "\n> %s\n", l.Text)
			if attr := attribution(l.Post); attr != "" {
				fmt.Fprintf(&b, ">\n> *%s*\n", attr)
			}
		}
	}
	return b.String()
}

// samples picks the newest posts carrying the topic. labeled is already
// newest first, straight from the archive.
func samples(labeled []classify.Labeled, name string) []classify.Labeled {
	var out []classify.Labeled
	for _, l := range labeled {
		for _, t := range l.Topics {
			if t == name {
				out = append(out, l)
				break
			}
		}
		if len(out) == samplesPerTopic {
			break
		}
	}
	return out
}

func attribution(p archive.Post) string {
	date := ""
	if !p.CreatedAt.IsZero() {
		date = p.CreatedAt.UTC().Format("2006-01-02")
	}
	switch {
	case p.AuthorUsername != "" && date != "":
		return fmt.Sprintf("@%s, %s", p.AuthorUsername, date)
	case p.AuthorUsername != "":
		return "@" + p.AuthorUsername
	default:
		return date
	}
}

func writeFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(content), 0644)
}
