package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fieldsite.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "site:\n  title: Test Site\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Content.Dir != "docs" {
		t.Errorf("content dir default = %q, want docs", cfg.Content.Dir)
	}
	if cfg.Output.Dir != "public" {
		t.Errorf("output dir default = %q, want public", cfg.Output.Dir)
	}
	if cfg.Output.Clean == nil || !*cfg.Output.Clean {
		t.Errorf("clean should default to true")
	}
	if cfg.Theme.Name != "plain" {
		t.Errorf("theme default = %q, want plain", cfg.Theme.Name)
	}
	if cfg.Collect.WindowDays != 7 || cfg.Collect.PageSize != 100 || cfg.Collect.MonthlyCap != 1500 {
		t.Errorf("collect defaults wrong: %+v", cfg.Collect)
	}
	if cfg.Collect.BaseURL != "https://api.twitter.com/2" {
		t.Errorf("collect base_url default = %q", cfg.Collect.BaseURL)
	}
	if cfg.Daemon.NATS.Subject != "fieldsite.events" {
		t.Errorf("nats subject default = %q", cfg.Daemon.NATS.Subject)
	}
	if cfg.CollectInterval().Hours() != 6 {
		t.Errorf("collect interval default = %s, want 6h", cfg.CollectInterval())
	}
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_SITE_TITLE", "Expanded Title")
	cfg, err := Load(writeConfig(t, "site:\n  title: ${TEST_SITE_TITLE}\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Site.Title != "Expanded Title" {
		t.Errorf("title = %q, want expansion applied", cfg.Site.Title)
	}
}

func TestLoad_MonthlyCapEnvOverride(t *testing.T) {
	t.Setenv("X_MONTHLY_CAP", "500")
	cfg, err := Load(writeConfig(t, "site:\n  title: T\ncollect:\n  monthly_cap: 9000\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Collect.MonthlyCap != 500 {
		t.Errorf("monthly cap = %d, want env override 500", cfg.Collect.MonthlyCap)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	_, err := Load(writeConfig(t, "site:\n  title: T\n  colour: blue\n"))
	if err == nil {
		t.Fatal("expected strict decode to reject unknown key")
	}
}

func TestLoad_ReportsAllValidationErrors(t *testing.T) {
	_, err := Load(writeConfig(t, `site:
  title: ""
nav:
  - title: Broken
collect:
  window_days: 9
`))
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	for _, want := range []string{"site.title", "page or url", "window_days"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
}

func TestValidate_NavPageAndURLExclusive(t *testing.T) {
	_, err := Load(writeConfig(t, `site:
  title: T
nav:
  - title: Both
    page: a.md
    url: https://example.org/
`))
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Fatalf("expected mutual-exclusion error, got %v", err)
	}
}

func TestValidate_NavDuplicatePage(t *testing.T) {
	_, err := Load(writeConfig(t, `site:
  title: T
nav:
  - title: One
    page: a.md
  - title: Two
    page: a.md
`))
	if err == nil || !strings.Contains(err.Error(), "duplicate page reference") {
		t.Fatalf("expected duplicate-page error, got %v", err)
	}
}

func TestValidate_OutputInsideContent(t *testing.T) {
	_, err := Load(writeConfig(t, `site:
  title: T
output:
  dir: docs/public
`))
	if err == nil || !strings.Contains(err.Error(), "must not live inside") {
		t.Fatalf("expected nested-dir error, got %v", err)
	}
}

func TestValidate_TopicRules(t *testing.T) {
	_, err := Load(writeConfig(t, `site:
  title: T
topics:
  - name: protest
    keywords: []
report:
  subject_topics: [missing]
`))
	if err == nil {
		t.Fatal("expected topic validation errors")
	}
	msg := err.Error()
	if !strings.Contains(msg, "at least one keyword") {
		t.Errorf("missing keyword error in %q", msg)
	}
	if !strings.Contains(msg, "not a configured topic") {
		t.Errorf("missing subject error in %q", msg)
	}
}

func TestValidate_UnknownDeployTarget(t *testing.T) {
	_, err := Load(writeConfig(t, "site:\n  title: T\ndeploy:\n  default: ftp\n"))
	if err == nil || !strings.Contains(err.Error(), "unknown target") {
		t.Fatalf("expected deploy target error, got %v", err)
	}
}

func TestValidate_BadCollectEvery(t *testing.T) {
	_, err := Load(writeConfig(t, "site:\n  title: T\ndaemon:\n  collect_every: soon\n"))
	if err == nil || !strings.Contains(err.Error(), "collect_every") {
		t.Fatalf("expected duration error, got %v", err)
	}
}

func TestInit_ScaffoldsProject(t *testing.T) {
	t.Chdir(t.TempDir())

	if err := Init(DefaultPath, false); err != nil {
		t.Fatalf("init: %v", err)
	}

	for _, path := range []string{DefaultPath, "docs/index.md", "docs/about.md", "assets/custom.css", ".env.example"} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s to exist: %v", path, err)
		}
	}

	// Starter config must itself pass Load.
	if _, err := Load(DefaultPath); err != nil {
		t.Fatalf("starter config should load cleanly: %v", err)
	}

	// Second init without force refuses to clobber the config.
	if err := Init(DefaultPath, false); err == nil {
		t.Fatal("expected error when config exists")
	}

	// Force rewrites the config but keeps existing content untouched.
	if err := os.WriteFile("docs/index.md", []byte("edited"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := Init(DefaultPath, true); err != nil {
		t.Fatalf("forced init: %v", err)
	}
	data, err := os.ReadFile("docs/index.md")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "edited" {
		t.Error("force must not overwrite existing content documents")
	}
}

func TestConfigHash_ChangesWithContent(t *testing.T) {
	a, err := Load(writeConfig(t, "site:\n  title: A\n"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Load(writeConfig(t, "site:\n  title: B\n"))
	if err != nil {
		t.Fatal(err)
	}
	if a.Hash() == "" || a.Hash() == b.Hash() {
		t.Errorf("hashes should be non-empty and differ: %q vs %q", a.Hash(), b.Hash())
	}
}
