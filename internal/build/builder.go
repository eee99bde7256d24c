// Package build renders the whole site: content discovery, navigation,
// page rendering, asset copying, and the atomic promotion of the result
// into the output directory.
package build

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fieldsite/fieldsite/internal/config"
	"github.com/fieldsite/fieldsite/internal/logfields"
	"github.com/fieldsite/fieldsite/internal/markdown"
	"github.com/fieldsite/fieldsite/internal/metrics"
	"github.com/fieldsite/fieldsite/internal/site"
	"github.com/fieldsite/fieldsite/internal/theme"
)

// ErrUnsafeOutput indicates the output dir holds something that was not
// produced by a previous build, so replacing it could destroy user data.
var ErrUnsafeOutput = errors.New("output directory was not produced by a previous build")

// Builder renders a site from its configuration.
type Builder struct {
	cfg      *config.Config
	recorder metrics.Recorder
	force    bool
	stageDir string
}

// New creates a Builder for the given configuration.
func New(cfg *config.Config) *Builder {
	return &Builder{cfg: cfg, recorder: metrics.NoopRecorder{}}
}

// SetRecorder injects a metrics recorder. Returns the builder for chaining.
func (b *Builder) SetRecorder(r metrics.Recorder) *Builder {
	if r != nil {
		b.recorder = r
	}
	return b
}

// SetForce allows replacing an output directory that fails the safety
// probe (no manifest from a previous build).
func (b *Builder) SetForce(force bool) *Builder {
	b.force = force
	return b
}

// Run executes a full build: discover content, resolve navigation, render
// every page through the theme, copy assets, then atomically promote the
// staging directory over the output directory. A failed build never
// touches the previous output.
func (b *Builder) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	rep := &Report{
		SchemaVersion: 1,
		BuildID:       uuid.NewString(),
		ConfigHash:    b.cfg.Hash(),
		Start:         start,
	}

	s, err := site.Load(b.cfg.Content.Dir)
	if err != nil {
		return b.fail(err)
	}

	nav, err := site.ResolveNav(b.cfg.Nav, s)
	if err != nil {
		return b.fail(err)
	}

	th, err := theme.Load(b.cfg.Theme.Name, b.cfg.Theme.TemplatesDir)
	if err != nil {
		return b.fail(err)
	}

	if err := b.checkOutputSafe(); err != nil {
		return b.fail(err)
	}

	if err := b.beginStaging(); err != nil {
		return b.fail(fmt.Errorf("prepare staging directory: %w", err))
	}
	defer b.abortStaging()

	stylesheetHref, err := b.writeStylesheets(th)
	if err != nil {
		return b.fail(err)
	}

	for _, p := range s.Pages {
		select {
		case <-ctx.Done():
			b.recorder.IncBuildOutcome(metrics.ResultCanceled)
			return nil, ctx.Err()
		default:
		}
		if err := b.renderPage(s, p, nav, th, stylesheetHref); err != nil {
			return b.fail(err)
		}
	}

	copied, err := b.copyAssets(s)
	if err != nil {
		return b.fail(err)
	}
	if stylesheetHref != "" {
		copied++ // the site stylesheet counts as an output asset
	}

	rep.Pages = len(s.Pages)
	rep.Assets = copied
	rep.End = time.Now()
	if err := rep.write(b.stageDir); err != nil {
		return b.fail(err)
	}

	if b.cleanOutput() {
		err = b.finalizeStaging()
	} else {
		err = b.mergeStaging()
	}
	if err != nil {
		return b.fail(fmt.Errorf("finalize staging: %w", err))
	}

	b.recorder.SetPagesRendered(rep.Pages)
	b.recorder.ObserveBuildDuration(time.Since(start))
	b.recorder.IncBuildOutcome(metrics.ResultSuccess)
	slog.Info("Build completed",
		logfields.BuildID(rep.BuildID),
		logfields.Pages(rep.Pages),
		logfields.Assets(rep.Assets),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	return rep, nil
}

func (b *Builder) fail(err error) (*Report, error) {
	b.recorder.IncBuildOutcome(metrics.ResultFailed)
	return nil, err
}

func (b *Builder) cleanOutput() bool {
	return b.cfg.Output.Clean == nil || *b.cfg.Output.Clean
}

// checkOutputSafe probes the existing output dir before the build replaces
// it. A dir is safe to replace when it is absent, empty, or carries the
// manifest of a previous build. Force overrides the probe; a merge build
// (clean: false) never removes anything, so it skips the probe entirely.
func (b *Builder) checkOutputSafe() error {
	if !b.cleanOutput() {
		return nil
	}
	out := b.cfg.Output.Dir
	entries, err := os.ReadDir(out)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("inspect output directory: %w", err)
	}
	if len(entries) == 0 || b.force {
		return nil
	}
	if _, err := os.Stat(filepath.Join(out, ReportName)); err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s has no %s; use --force to replace it", ErrUnsafeOutput, out, ReportName)
}

// beginStaging creates the sibling staging directory for this build.
func (b *Builder) beginStaging() error {
	stage := fmt.Sprintf("%s.staging-%d", filepath.Clean(b.cfg.Output.Dir), os.Getpid())
	if err := os.RemoveAll(stage); err != nil {
		return err
	}
	if err := os.MkdirAll(stage, 0o755); err != nil {
		return err
	}
	b.stageDir = stage
	slog.Debug("Initialized staging directory", logfields.Path(stage))
	return nil
}

// finalizeStaging promotes the staging directory to the output location.
// The existing output moves aside to <out>.prev first, so the swap is two
// renames and a crash between them leaves a recoverable state.
func (b *Builder) finalizeStaging() error {
	if b.stageDir == "" {
		return errors.New("no staging directory initialized")
	}
	out := filepath.Clean(b.cfg.Output.Dir)
	prev := out + ".prev"

	if err := os.RemoveAll(prev); err != nil {
		return fmt.Errorf("remove stale backup: %w", err)
	}
	if _, err := os.Stat(out); err == nil {
		if err := os.Rename(out, prev); err != nil {
			return fmt.Errorf("back up existing output: %w", err)
		}
	}
	if err := os.Rename(b.stageDir, out); err != nil {
		return fmt.Errorf("promote staging: %w", err)
	}
	b.stageDir = ""
	if err := os.RemoveAll(prev); err != nil {
		slog.Warn("Failed to remove previous output backup", logfields.Path(prev), logfields.Error(err))
	}
	slog.Debug("Promoted staging directory", logfields.Path(out))
	return nil
}

// mergeStaging copies the staged files over the output dir without
// removing anything already there (clean: false).
func (b *Builder) mergeStaging() error {
	if b.stageDir == "" {
		return errors.New("no staging directory initialized")
	}
	out := filepath.Clean(b.cfg.Output.Dir)
	err := filepath.WalkDir(b.stageDir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(b.stageDir, p)
		if err != nil {
			return err
		}
		return copyFile(p, filepath.Join(out, rel))
	})
	if err != nil {
		return fmt.Errorf("merge staging into output: %w", err)
	}
	dir := b.stageDir
	b.stageDir = ""
	return os.RemoveAll(dir)
}

// abortStaging removes a leftover staging directory after a failed build.
// No-op once finalizeStaging has run.
func (b *Builder) abortStaging() {
	if b.stageDir == "" {
		return
	}
	dir := b.stageDir
	b.stageDir = ""
	if err := os.RemoveAll(dir); err != nil {
		slog.Warn("Failed to remove staging directory", logfields.Path(dir), logfields.Error(err))
	}
}

// writeStylesheets puts the theme CSS and the optional site stylesheet
// under assets/ in the staging dir. Returns the output-relative href of
// the site stylesheet, "" when none is configured.
func (b *Builder) writeStylesheets(th *theme.Theme) (string, error) {
	assetsDir := filepath.Join(b.stageDir, "assets")
	if err := os.MkdirAll(assetsDir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(assetsDir, theme.StylesheetName), th.CSS(), 0o644); err != nil {
		return "", fmt.Errorf("write theme stylesheet: %w", err)
	}

	if b.cfg.Theme.Stylesheet == "" {
		return "", nil
	}
	css, err := os.ReadFile(b.cfg.Theme.Stylesheet)
	if err != nil {
		return "", fmt.Errorf("read site stylesheet: %w", err)
	}
	name := filepath.Base(b.cfg.Theme.Stylesheet)
	if name == theme.StylesheetName {
		// Avoid clobbering the theme CSS when the site file shares its name.
		name = "site-" + name
	}
	if err := os.WriteFile(filepath.Join(assetsDir, name), css, 0o644); err != nil {
		return "", fmt.Errorf("write site stylesheet: %w", err)
	}
	return "assets/" + name, nil
}

func (b *Builder) renderPage(s *site.Site, p *site.Page, nav []site.NavItem, th *theme.Theme, stylesheetHref string) error {
	html, err := markdown.ToHTMLResolved(p.Markdown, destResolver(s, p))
	if err != nil {
		return fmt.Errorf("render %s: %w", p.RelPath, err)
	}
	p.HTML = template.HTML(html)

	relRoot := RelRoot(p.OutputPath)
	data := theme.Data{
		Site: theme.SiteData{
			Title:       b.cfg.Site.Title,
			Description: b.cfg.Site.Description,
			BaseURL:     b.cfg.Site.BaseURL,
			Author:      b.cfg.Site.Author,
		},
		Page: theme.PageData{
			Title:       p.Title,
			Description: p.Description,
			Route:       p.Route,
			Date:        p.Date,
			Content:     p.HTML,
		},
		Nav:        navEntries(nav, p.Route, relRoot),
		RelRoot:    relRoot,
		Stylesheet: stylesheetHref,
		Canonical:  canonicalURL(b.cfg.Site.BaseURL, p.Route),
		Year:       time.Now().Year(),
	}

	outPath := filepath.Join(b.stageDir, filepath.FromSlash(p.OutputPath))
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if err := th.Render(f, data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// copyAssets copies every non-Markdown content file into the staging dir,
// preserving relative paths. An asset may not land on a rendered page.
func (b *Builder) copyAssets(s *site.Site) (int, error) {
	rendered := make(map[string]string, len(s.Pages))
	for _, p := range s.Pages {
		rendered[p.OutputPath] = p.RelPath
	}

	for _, a := range s.Assets {
		if page, clash := rendered[a.RelPath]; clash {
			return 0, fmt.Errorf("asset %s collides with page %s rendered to the same path", a.RelPath, page)
		}
		dst := filepath.Join(b.stageDir, filepath.FromSlash(a.RelPath))
		if err := copyFile(a.SourcePath, dst); err != nil {
			return 0, fmt.Errorf("copy asset %s: %w", a.RelPath, err)
		}
	}
	return len(s.Assets), nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// RelRoot returns the relative path from a rendered file back to the site
// root: "./" at the root, otherwise one "../" per directory level. Keeping
// every href page-relative lets the built site live under any URL prefix.
func RelRoot(outputPath string) string {
	depth := strings.Count(filepath.ToSlash(outputPath), "/")
	if depth == 0 {
		return "./"
	}
	return strings.Repeat("../", depth)
}

// navEntries converts resolved navigation into per-page menu links with
// hrefs relative to the page being rendered.
func navEntries(nav []site.NavItem, currentRoute, relRoot string) []theme.NavEntry {
	entries := make([]theme.NavEntry, 0, len(nav))
	for _, it := range nav {
		if it.URL != "" {
			entries = append(entries, theme.NavEntry{Title: it.Title, Href: it.URL, External: true})
			continue
		}
		entries = append(entries, theme.NavEntry{
			Title:  it.Title,
			Href:   relRoot + strings.TrimPrefix(it.Route, "/"),
			Active: it.Route == currentRoute,
		})
	}
	return entries
}

func canonicalURL(baseURL, route string) string {
	if baseURL == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + route
}
