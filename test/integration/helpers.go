// Package integration exercises fieldsite end to end: full project builds
// verified against golden structure files, the archive-to-findings
// pipeline, and publishing to a local git remote.
//
// Golden files live under test/testdata/golden. Run with -update-golden to
// rewrite them after an intentional output change.
package integration

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fieldsite/fieldsite/internal/build"
	"github.com/fieldsite/fieldsite/internal/config"
	"github.com/fieldsite/fieldsite/internal/linkcheck"
	"github.com/fieldsite/fieldsite/internal/site"
)

var updateGolden = flag.Bool("update-golden", false, "rewrite golden files with current test output")

const (
	projectsDir = "../../test/testdata/projects"
	configsDir  = "../../test/testdata/configs"
	goldenDir   = "../../test/testdata/golden"
)

// SiteStructure is the golden shape of a built site: every output file in
// sorted order plus the stable part of the build manifest.
type SiteStructure struct {
	Files  []string      `json:"files"`
	Report ReportSummary `json:"report"`
}

// ReportSummary is the subset of build.json that does not change between
// runs. BuildID, timestamps, and the config hash are volatile and stay out.
type ReportSummary struct {
	SchemaVersion int      `json:"schema_version"`
	Pages         int      `json:"pages"`
	Assets        int      `json:"assets"`
	Warnings      []string `json:"warnings"`
}

// copyProject copies a fixture project from testdata into a temp dir so
// tests can generate content into it without touching the fixture.
func copyProject(t *testing.T, name string) string {
	t.Helper()
	dst := filepath.Join(t.TempDir(), name)
	require.NoError(t, copyDir(filepath.Join(projectsDir, name), dst))
	return dst
}

// loadProjectConfig loads a fixture configuration and re-anchors its
// relative paths inside the copied project directory.
func loadProjectConfig(t *testing.T, name, projectDir string) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(configsDir, name+".yaml"))
	require.NoError(t, err)

	cfg.Content.Dir = filepath.Join(projectDir, cfg.Content.Dir)
	cfg.Output.Dir = filepath.Join(projectDir, cfg.Output.Dir)
	if cfg.Theme.Stylesheet != "" {
		cfg.Theme.Stylesheet = filepath.Join(projectDir, cfg.Theme.Stylesheet)
	}
	cfg.Collect.Archive = filepath.Join(projectDir, cfg.Collect.Archive)
	cfg.Report.CSV = filepath.Join(projectDir, cfg.Report.CSV)
	return cfg
}

// buildSite runs a full build and returns the manifest.
func buildSite(t *testing.T, cfg *config.Config) *build.Report {
	t.Helper()
	rep, err := build.New(cfg).Run(context.Background())
	require.NoError(t, err)
	return rep
}

// captureSiteStructure walks a built output dir into its golden shape.
func captureSiteStructure(t *testing.T, outDir string) SiteStructure {
	t.Helper()

	var files []string
	err := filepath.WalkDir(outDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(outDir, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	require.NoError(t, err)
	sort.Strings(files)

	rep, err := build.ReadReport(outDir)
	require.NoError(t, err)

	return SiteStructure{
		Files: files,
		Report: ReportSummary{
			SchemaVersion: rep.SchemaVersion,
			Pages:         rep.Pages,
			Assets:        rep.Assets,
			Warnings:      rep.Warnings,
		},
	}
}

// verifySiteStructure compares a captured structure against its golden
// file, or rewrites the golden when -update-golden is set.
func verifySiteStructure(t *testing.T, name string, got SiteStructure) {
	t.Helper()
	goldenPath := filepath.Join(goldenDir, name, "structure.json")

	data, err := json.MarshalIndent(got, "", "  ")
	require.NoError(t, err)

	if *updateGolden {
		require.NoError(t, os.MkdirAll(filepath.Dir(goldenPath), 0755))
		require.NoError(t, os.WriteFile(goldenPath, append(data, '\n'), 0644))
		t.Logf("updated golden file %s", goldenPath)
		return
	}

	// #nosec G304 -- path stays inside the test's own testdata tree
	want, err := os.ReadFile(goldenPath)
	require.NoError(t, err, "golden file missing; run with -update-golden to create it")
	require.JSONEq(t, string(want), string(data))
}

// outputFile reads one rendered file from the output dir.
func outputFile(t *testing.T, outDir, rel string) string {
	t.Helper()
	// #nosec G304 -- test utility reading from the test's own output dir
	data, err := os.ReadFile(filepath.Join(outDir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

// verifyNoBrokenLinks runs the source and output link passes over a built
// project and fails on any problem.
func verifyNoBrokenLinks(t *testing.T, cfg *config.Config) {
	t.Helper()
	s, err := site.Load(cfg.Content.Dir)
	require.NoError(t, err)
	problems, err := linkcheck.New().Run(context.Background(), s, cfg.Output.Dir)
	require.NoError(t, err)
	require.Empty(t, problems)
}

func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return copyFile(p, target)
	})
}

func copyFile(src, dst string) error {
	// #nosec G304 -- test utility copying fixture files
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	// #nosec G304 -- test utility writing into a temp dir
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
