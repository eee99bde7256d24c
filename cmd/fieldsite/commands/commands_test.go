package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fieldsite/fieldsite/internal/config"
	"github.com/fieldsite/fieldsite/internal/metrics"
)

// chdir moves the test into dir and restores the old working directory on
// cleanup. init and the flow test operate on relative project paths.
func chdir(t *testing.T, dir string) {
	t.Helper()
	oldCwd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(oldCwd) })
	require.NoError(t, os.Chdir(dir))
}

func TestInitBuildCheckFlow(t *testing.T) {
	chdir(t, t.TempDir())
	cli := &CLI{Config: "fieldsite.yaml"}

	initCmd := &InitCmd{}
	require.NoError(t, initCmd.Run(&Global{}, cli))

	for _, path := range []string{
		"fieldsite.yaml",
		filepath.Join("docs", "index.md"),
		filepath.Join("docs", "about.md"),
		filepath.Join("assets", "custom.css"),
		".env.example",
	} {
		_, err := os.Stat(path)
		require.NoError(t, err, "init should scaffold %s", path)
	}

	buildCmd := &BuildCmd{}
	require.NoError(t, buildCmd.Run(&Global{}, cli))

	home, err := os.ReadFile(filepath.Join("public", "index.html"))
	require.NoError(t, err)
	require.Contains(t, string(home), "My Research Site")
	_, err = os.Stat(filepath.Join("public", "about", "index.html"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join("public", "build.json"))
	require.NoError(t, err)

	checkCmd := &CheckCmd{}
	require.NoError(t, checkCmd.Run(&Global{}, cli))
}

func TestInit_RefusesExistingConfigWithoutForce(t *testing.T) {
	chdir(t, t.TempDir())
	cli := &CLI{Config: "fieldsite.yaml"}

	require.NoError(t, (&InitCmd{}).Run(&Global{}, cli))

	err := (&InitCmd{}).Run(&Global{}, cli)
	require.Error(t, err)
	require.Contains(t, err.Error(), "already exists")

	require.NoError(t, (&InitCmd{Force: true}).Run(&Global{}, cli))
}

// writeSiteProject lays out a minimal project with absolute paths so the
// commands under test do not depend on the working directory.
func writeSiteProject(t *testing.T, extraYAML string, pages map[string]string) *config.Config {
	t.Helper()
	root := t.TempDir()
	docs := filepath.Join(root, "docs")
	require.NoError(t, os.MkdirAll(docs, 0o755))
	for name, body := range pages {
		require.NoError(t, os.WriteFile(filepath.Join(docs, name), []byte(body), 0o644))
	}

	yml := "site:\n  title: Field Notes\ncontent:\n  dir: " + docs +
		"\noutput:\n  dir: " + filepath.Join(root, "public") + "\n" + extraYAML
	configPath := filepath.Join(root, "fieldsite.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(yml), 0o644))

	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	return cfg
}

func TestCheck_BuildsToTempWhenOutputAbsent(t *testing.T) {
	cfg := writeSiteProject(t, "", map[string]string{
		"index.md": "# Home\n\nSee [about](about.md).\n",
		"about.md": "# About\n",
	})

	require.NoError(t, RunCheck(context.Background(), cfg, false))

	// The check built into a temp directory, not the configured output.
	_, err := os.Stat(cfg.Output.Dir)
	require.True(t, os.IsNotExist(err))
}

func TestCheck_ReportsBrokenMarkdownLink(t *testing.T) {
	cfg := writeSiteProject(t, "", map[string]string{
		"index.md": "# Home\n\nSee [the missing page](missing.md).\n",
	})

	err := RunCheck(context.Background(), cfg, false)
	require.Error(t, err)
	require.Contains(t, err.Error(), "broken links")
}

func TestDeploy_UnknownTarget(t *testing.T) {
	cfg := writeSiteProject(t, "", map[string]string{"index.md": "# Home\n"})

	err := RunDeploy(context.Background(), cfg, metrics.NoopRecorder{}, "rsync", true, false)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown deploy target")
}

func TestDeploy_NoTargetConfigured(t *testing.T) {
	cfg := writeSiteProject(t, "", map[string]string{"index.md": "# Home\n"})

	err := RunDeploy(context.Background(), cfg, metrics.NoopRecorder{}, "", true, false)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no deploy target")
}

func TestCollect_RequiresBearerToken(t *testing.T) {
	t.Setenv("X_BEARER_TOKEN", "")
	cfg := writeSiteProject(t, "collect:\n  query: copasa\n", map[string]string{"index.md": "# Home\n"})

	err := RunCollect(context.Background(), cfg, false)
	require.Error(t, err)
	require.Contains(t, err.Error(), "X_BEARER_TOKEN")
}

func TestReport_EmptyArchive(t *testing.T) {
	root := t.TempDir()
	cfg := writeSiteProject(t,
		"collect:\n  archive: "+filepath.Join(root, "archive.db")+
			"\ntopics:\n  - name: privatization\n    keywords: [privatiza]\n",
		map[string]string{"index.md": "# Home\n"})

	err := RunReport(context.Background(), cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no posts")
}
