package integration

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestGolden_ResearchSite builds the research-site fixture end to end and
// compares the output against its golden structure.
//
// This test verifies:
// - Pretty URL routing (index.md -> index.html, x.md -> x/index.html)
// - Draft pages excluded from the output
// - Theme CSS, site stylesheet, and content assets land in the output
// - Document links rewritten to page-relative hrefs that resolve on disk
func TestGolden_ResearchSite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	projectDir := copyProject(t, "research-site")
	cfg := loadProjectConfig(t, "research-site", projectDir)
	buildSite(t, cfg)

	got := captureSiteStructure(t, cfg.Output.Dir)
	verifySiteStructure(t, "research-site", got)

	home := outputFile(t, cfg.Output.Dir, "index.html")
	require.Contains(t, home, "<title>Home | Campo Alto Water Study</title>")
	require.Contains(t, home, `href="./methodology/"`)
	require.Contains(t, home, `href="./notes/2025-06-interviews/"`)
	require.Contains(t, home, `href="./data/sources.txt"`)
	require.Contains(t, home, `href="https://data.example.org/water/"`)
	require.Contains(t, home, `href="./assets/site.css"`)

	method := outputFile(t, cfg.Output.Dir, "methodology/index.html")
	require.Contains(t, method, `src="../img/sampling-map.svg"`)
	require.Contains(t, method, `href="../notes/2025-06-interviews/"`)
	require.Contains(t, method, `href="../"`)

	notes := outputFile(t, cfg.Output.Dir, "notes/2025-06-interviews/index.html")
	require.Contains(t, notes, `href="../../methodology/"`)

	verifyNoBrokenLinks(t, cfg)
}

// TestGolden_RebuildIsStable rebuilds the same project and expects an
// identical structure under a fresh build id.
func TestGolden_RebuildIsStable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	projectDir := copyProject(t, "research-site")
	cfg := loadProjectConfig(t, "research-site", projectDir)

	rep1 := buildSite(t, cfg)
	first := captureSiteStructure(t, cfg.Output.Dir)

	rep2 := buildSite(t, cfg)
	second := captureSiteStructure(t, cfg.Output.Dir)

	require.Equal(t, first, second)
	require.NotEqual(t, rep1.BuildID, rep2.BuildID)
}
