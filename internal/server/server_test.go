package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/fieldsite/fieldsite/internal/config"
	"github.com/fieldsite/fieldsite/internal/metrics"
)

// writeProject lays a buildable project on disk and returns the config path
// plus the loaded config, since the server reloads from the file on rebuild.
func writeProject(t *testing.T, pages map[string]string) (string, *config.Config) {
	t.Helper()
	root := t.TempDir()
	docs := filepath.Join(root, "docs")
	for rel, content := range pages {
		path := filepath.Join(docs, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	configPath := filepath.Join(root, "fieldsite.yaml")
	yaml := fmt.Sprintf("site:\n  title: Field Notes\ncontent:\n  dir: %s\noutput:\n  dir: %s\n",
		docs, filepath.Join(root, "public"))
	require.NoError(t, os.WriteFile(configPath, []byte(yaml), 0644))
	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	return configPath, cfg
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_ServesBuiltSiteWithLiveReload(t *testing.T) {
	configPath, cfg := writeProject(t, map[string]string{
		"index.md": "---\ntitle: Home\n---\nWelcome home.\n",
	})
	s := New(cfg, configPath)
	require.NoError(t, s.rebuild(context.Background(), "initial"))

	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	code, body := get(t, ts.URL+"/")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "Welcome home.")
	require.Contains(t, body, scriptTag)
	require.Less(t, strings.Index(body, scriptTag), strings.Index(body, "</html>"))

	code, script := get(t, ts.URL+"/livereload.js")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, script, "EventSource")
}

func TestServer_PrettyURLs(t *testing.T) {
	configPath, cfg := writeProject(t, map[string]string{
		"index.md":       "# Home\n",
		"methodology.md": "# Methodology\n\nHow we collect.\n",
	})
	s := New(cfg, configPath)
	require.NoError(t, s.rebuild(context.Background(), "initial"))

	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	// The client follows the FileServer redirect from /methodology.
	code, body := get(t, ts.URL+"/methodology")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "How we collect.")
	require.Contains(t, body, scriptTag)
}

func TestServer_AssetsServedWithoutInjection(t *testing.T) {
	configPath, cfg := writeProject(t, map[string]string{
		"index.md":       "# Home\n",
		"data/notes.txt": "raw notes",
	})
	s := New(cfg, configPath)
	require.NoError(t, s.rebuild(context.Background(), "initial"))

	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	code, body := get(t, ts.URL+"/data/notes.txt")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "raw notes", body)
}

func TestServer_HealthzReflectsRebuildFailure(t *testing.T) {
	configPath, cfg := writeProject(t, map[string]string{
		"index.md": "---\ntitle: Home\n---\nv1\n",
	})
	s := New(cfg, configPath)
	require.NoError(t, s.rebuild(context.Background(), "initial"))

	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	code, body := get(t, ts.URL+"/healthz")
	require.Equal(t, http.StatusOK, code)
	var snap healthSnapshot
	require.NoError(t, json.Unmarshal([]byte(body), &snap))
	require.Equal(t, "ok", snap.Status)
	require.Equal(t, 1, snap.Pages)
	require.NotEmpty(t, snap.BuildID)
	goodID := snap.BuildID

	// Break the config file; the rebuild must fail but keep serving.
	require.NoError(t, os.WriteFile(configPath, []byte("site: [broken"), 0644))
	require.Error(t, s.rebuild(context.Background(), "watch"))

	code, body = get(t, ts.URL+"/healthz")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal([]byte(body), &snap))
	require.Equal(t, "degraded", snap.Status)
	require.NotEmpty(t, snap.LastError)
	require.Equal(t, goodID, snap.BuildID)

	_, page := get(t, ts.URL+"/")
	require.Contains(t, page, "v1")
}

func TestServer_HealthzBeforeFirstBuild(t *testing.T) {
	configPath, cfg := writeProject(t, map[string]string{"index.md": "# Home\n"})
	s := New(cfg, configPath)

	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	code, body := get(t, ts.URL+"/healthz")
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Contains(t, body, "starting")
}

func TestServer_RebuildPicksUpConfigChanges(t *testing.T) {
	configPath, cfg := writeProject(t, map[string]string{
		"index.md": "---\ntitle: Home\n---\nhello\n",
	})
	s := New(cfg, configPath)
	require.NoError(t, s.rebuild(context.Background(), "initial"))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	updated := strings.Replace(string(data), "Field Notes", "Renamed Project", 1)
	require.NoError(t, os.WriteFile(configPath, []byte(updated), 0644))
	require.NoError(t, s.rebuild(context.Background(), "watch"))

	ts := httptest.NewServer(s.routes())
	defer ts.Close()
	_, body := get(t, ts.URL+"/")
	require.Contains(t, body, "Renamed Project")
}

func TestServer_MetricsEndpoint(t *testing.T) {
	configPath, cfg := writeProject(t, map[string]string{"index.md": "# Home\n"})
	reg := prom.NewRegistry()
	s := New(cfg, configPath).
		SetRecorder(metrics.NewPrometheusRecorder(reg)).
		SetRegistry(reg)
	require.NoError(t, s.rebuild(context.Background(), "initial"))

	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	code, body := get(t, ts.URL+"/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "fieldsite_pages_rendered 1")
}
