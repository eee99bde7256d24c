package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fieldsite/fieldsite/internal/config"
	"github.com/fieldsite/fieldsite/internal/site"
)

// testProject lays out a content dir and returns a config pointing at it.
func testProject(t *testing.T, files map[string]string) *config.Config {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, "docs", rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return &config.Config{
		Site:    config.SiteConfig{Title: "Field Notes", Author: "Research Group"},
		Content: config.ContentConfig{Dir: filepath.Join(root, "docs")},
		Theme:   config.ThemeConfig{Name: "plain"},
		Output:  config.OutputConfig{Dir: filepath.Join(root, "public")},
	}
}

func readOutput(t *testing.T, cfg *config.Config, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(cfg.Output.Dir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestRun_RendersFullSite(t *testing.T) {
	cfg := testProject(t, map[string]string{
		"index.md":       "---\ntitle: Home\n---\nWelcome to the project.\n",
		"methodology.md": "# Methodology\n\nHow we collect.\n",
		"data/notes.txt": "raw notes",
	})
	cfg.Nav = []config.NavItem{
		{Title: "Home", Page: "index.md"},
		{Title: "Methodology", Page: "methodology.md"},
	}

	rep, err := New(cfg).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, rep.Pages)
	require.Equal(t, 1, rep.Assets)
	require.NotEmpty(t, rep.BuildID)
	require.Equal(t, cfg.Hash(), rep.ConfigHash)

	home := readOutput(t, cfg, "index.html")
	require.Contains(t, home, "<title>Home | Field Notes</title>")
	require.Contains(t, home, "Welcome to the project.")
	require.Contains(t, home, `href="./assets/theme.css"`)
	require.Contains(t, home, `href="./methodology/"`)

	method := readOutput(t, cfg, "methodology/index.html")
	require.Contains(t, method, `href="../assets/theme.css"`)
	require.Contains(t, method, `href="../"`) // nav link back to home

	require.Equal(t, "raw notes", readOutput(t, cfg, "data/notes.txt"))
	require.FileExists(t, filepath.Join(cfg.Output.Dir, "assets", "theme.css"))

	saved, err := ReadReport(cfg.Output.Dir)
	require.NoError(t, err)
	require.Equal(t, rep.BuildID, saved.BuildID)
}

func TestRun_SiteStylesheetCopiedAndLinked(t *testing.T) {
	cfg := testProject(t, map[string]string{"index.md": "# Home\n"})
	cssPath := filepath.Join(t.TempDir(), "custom.css")
	require.NoError(t, os.WriteFile(cssPath, []byte("body { color: red }"), 0644))
	cfg.Theme.Stylesheet = cssPath

	_, err := New(cfg).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, "body { color: red }", readOutput(t, cfg, "assets/custom.css"))
	home := readOutput(t, cfg, "index.html")
	require.Contains(t, home, `href="./assets/custom.css"`)
}

func TestRun_NavReferencingMissingPageFails(t *testing.T) {
	cfg := testProject(t, map[string]string{"index.md": "# Home\n"})
	cfg.Nav = []config.NavItem{{Title: "Methodology", Page: "methodology.md"}}

	_, err := New(cfg).Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), `nav "Methodology" -> methodology.md: no such content document`)
	// The failed build must not create the output dir.
	require.NoDirExists(t, cfg.Output.Dir)
}

func TestRun_RefusesForeignOutputDir(t *testing.T) {
	cfg := testProject(t, map[string]string{"index.md": "# Home\n"})
	require.NoError(t, os.MkdirAll(cfg.Output.Dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Output.Dir, "thesis.docx"), []byte("x"), 0644))

	_, err := New(cfg).Run(context.Background())
	require.ErrorIs(t, err, ErrUnsafeOutput)

	// Force overrides the probe.
	_, err = New(cfg).SetForce(true).Run(context.Background())
	require.NoError(t, err)
	require.NoFileExists(t, filepath.Join(cfg.Output.Dir, "thesis.docx"))
}

func TestRun_ReplacesPreviousBuild(t *testing.T) {
	cfg := testProject(t, map[string]string{
		"index.md": "# Home\n",
		"old.md":   "# Old\n",
	})

	_, err := New(cfg).Run(context.Background())
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(cfg.Output.Dir, "old", "index.html"))

	require.NoError(t, os.Remove(filepath.Join(cfg.Content.Dir, "old.md")))
	_, err = New(cfg).Run(context.Background())
	require.NoError(t, err)
	// A clean build removes output for deleted pages.
	require.NoFileExists(t, filepath.Join(cfg.Output.Dir, "old", "index.html"))
}

func TestRun_MergeBuildKeepsUnknownFiles(t *testing.T) {
	cfg := testProject(t, map[string]string{"index.md": "# Home\n"})
	clean := false
	cfg.Output.Clean = &clean
	require.NoError(t, os.MkdirAll(cfg.Output.Dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Output.Dir, "CNAME"), []byte("example.org"), 0644))

	_, err := New(cfg).Run(context.Background())
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(cfg.Output.Dir, "index.html"))
	require.Equal(t, "example.org", readOutput(t, cfg, "CNAME"))
}

func TestRun_FailedBuildKeepsPreviousOutput(t *testing.T) {
	cfg := testProject(t, map[string]string{"index.md": "---\ntitle: Home\n---\nv1\n"})

	_, err := New(cfg).Run(context.Background())
	require.NoError(t, err)

	// Break the source so the next build fails before promotion.
	require.NoError(t, os.Remove(filepath.Join(cfg.Content.Dir, "index.md")))
	_, err = New(cfg).Run(context.Background())
	require.Error(t, err)

	require.Contains(t, readOutput(t, cfg, "index.html"), "v1")
	// No staging or backup dirs left behind.
	entries, err := os.ReadDir(filepath.Dir(cfg.Output.Dir))
	require.NoError(t, err)
	for _, e := range entries {
		require.NotContains(t, e.Name(), ".staging-")
		require.NotContains(t, e.Name(), ".prev")
	}
}

func TestRun_AssetCollidingWithPageFails(t *testing.T) {
	cfg := testProject(t, map[string]string{
		"guide.md":         "# Guide\n",
		"guide/index.html": "<p>stray</p>",
	})

	_, err := New(cfg).Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "collides with page")
}

func TestRun_CanceledContext(t *testing.T) {
	cfg := testProject(t, map[string]string{"index.md": "# Home\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(cfg).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRun_ExternalNavLink(t *testing.T) {
	cfg := testProject(t, map[string]string{"index.md": "# Home\n"})
	cfg.Nav = []config.NavItem{{Title: "Agency", URL: "https://example.gov/"}}

	_, err := New(cfg).Run(context.Background())
	require.NoError(t, err)
	require.Contains(t, readOutput(t, cfg, "index.html"), `href="https://example.gov/"`)
}

func TestRun_CanonicalFromBaseURL(t *testing.T) {
	cfg := testProject(t, map[string]string{"sub/page.md": "# Page\n", "index.md": "# Home\n"})
	cfg.Site.BaseURL = "https://research.example.org/project/"

	_, err := New(cfg).Run(context.Background())
	require.NoError(t, err)
	page := readOutput(t, cfg, "sub/page/index.html")
	require.Contains(t, page, `https://research.example.org/project/sub/page/`)
}

func TestRun_RewritesDocumentLinks(t *testing.T) {
	cfg := testProject(t, map[string]string{
		"index.md":       "See the [methodology](methodology.md) and the ![map](img/map.png).\n",
		"methodology.md": "Back [home](index.md); raw data in ![map](img/map.png).\n",
		"img/map.png":    "not really a png",
	})

	_, err := New(cfg).Run(context.Background())
	require.NoError(t, err)

	home := readOutput(t, cfg, "index.html")
	require.Contains(t, home, `href="./methodology/"`)
	require.Contains(t, home, `src="./img/map.png"`)

	method := readOutput(t, cfg, "methodology/index.html")
	require.Contains(t, method, `href="../"`)
	// The page renders one directory deeper than its source, so the image
	// reference has to climb back out.
	require.Contains(t, method, `src="../img/map.png"`)
}

func TestDestResolver(t *testing.T) {
	cfg := testProject(t, map[string]string{
		"index.md":                    "# Home\n",
		"guide.md":                    "# Guide\n",
		"notes/2025-06-interviews.md": "# Interviews\n",
	})
	s, err := site.Load(cfg.Content.Dir)
	require.NoError(t, err)

	fromNotes := destResolver(s, s.PageByRelPath("notes/2025-06-interviews.md"))
	fromRoot := destResolver(s, s.PageByRelPath("index.md"))

	cases := []struct {
		resolve   func(string) (string, bool)
		dest      string
		want      string
		rewritten bool
	}{
		{fromRoot, "guide.md", "./guide/", true},
		{fromRoot, "guide.md#setup", "./guide/#setup", true},
		{fromRoot, "notes/2025-06-interviews.md", "./notes/2025-06-interviews/", true},
		{fromNotes, "../guide.md", "../../guide/", true},
		{fromNotes, "/guide.md", "../../guide/", true},
		{fromNotes, "../img/map.png", "../../img/map.png", true},
		{fromRoot, "https://example.org/x.md", "", false},
		{fromRoot, "mailto:team@example.org", "", false},
		{fromRoot, "#fragment-only", "", false},
		{fromRoot, "missing.md", "", false},
		{fromRoot, "../outside.md", "", false},
		{fromRoot, "/assets/custom.css", "", false},
	}
	for _, tc := range cases {
		got, ok := tc.resolve(tc.dest)
		require.Equal(t, tc.rewritten, ok, "dest %q", tc.dest)
		if tc.rewritten {
			require.Equal(t, tc.want, got, "dest %q", tc.dest)
		}
	}
}

func TestRelRoot(t *testing.T) {
	cases := map[string]string{
		"index.html":               "./",
		"guide/index.html":         "../",
		"findings/week/index.html": "../../",
	}
	for in, want := range cases {
		if got := RelRoot(in); got != want {
			t.Errorf("RelRoot(%q) = %q, want %q", in, got, want)
		}
	}
}
