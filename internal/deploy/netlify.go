package deploy

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fieldsite/fieldsite/internal/config"
	"github.com/fieldsite/fieldsite/internal/logfields"
)

// Netlify publishes by uploading a zip of the output tree and waiting for
// the deploy to go live.
type Netlify struct {
	cfg          config.NetlifyConfig
	client       *http.Client
	pollInterval time.Duration
	pollTimeout  time.Duration
}

func NewNetlify(cfg config.NetlifyConfig) *Netlify {
	return &Netlify{
		cfg: cfg,
		// Generous timeout: the zip upload is one request.
		client:       &http.Client{Timeout: 5 * time.Minute},
		pollInterval: 2 * time.Second,
		pollTimeout:  3 * time.Minute,
	}
}

func (d *Netlify) Name() string { return "netlify" }

func (d *Netlify) Publish(ctx context.Context, dir string) (*Result, error) {
	if d.cfg.SiteID == "" {
		return nil, fmt.Errorf("netlify: deploy.netlify.site_id is not configured")
	}
	token := os.Getenv("NETLIFY_AUTH_TOKEN")
	if token == "" {
		return nil, &CredentialsError{Target: "netlify", Env: "NETLIFY_AUTH_TOKEN"}
	}

	start := time.Now()
	payload, files, err := zipDir(dir)
	if err != nil {
		return nil, fmt.Errorf("netlify: failed to zip output: %w", err)
	}
	slog.Debug("Uploading site archive", slog.Int("bytes", payload.Len()), logfields.Assets(files))

	dep, err := d.createDeploy(ctx, token, payload)
	if err != nil {
		return nil, err
	}
	if dep.State != "ready" {
		dep, err = d.await(ctx, token, dep.ID)
		if err != nil {
			return nil, err
		}
	}

	url := dep.SSLURL
	if url == "" {
		url = dep.URL
	}
	return &Result{
		Target:   "netlify",
		ID:       dep.ID,
		URL:      url,
		Files:    files,
		Duration: time.Since(start),
	}, nil
}

func (d *Netlify) createDeploy(ctx context.Context, token string, payload *bytes.Buffer) (*netlifyDeploy, error) {
	url := fmt.Sprintf("%s/api/v1/sites/%s/deploys", strings.TrimRight(d.cfg.BaseURL, "/"), d.cfg.SiteID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, payload)
	if err != nil {
		return nil, fmt.Errorf("netlify: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/zip")
	req.Header.Set("Authorization", "Bearer "+token)
	return d.do(req)
}

func (d *Netlify) getDeploy(ctx context.Context, token, id string) (*netlifyDeploy, error) {
	url := fmt.Sprintf("%s/api/v1/deploys/%s", strings.TrimRight(d.cfg.BaseURL, "/"), id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("netlify: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return d.do(req)
}

// await polls the deploy until Netlify reports it live.
func (d *Netlify) await(ctx context.Context, token, id string) (*netlifyDeploy, error) {
	deadline := time.NewTimer(d.pollTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(d.pollInterval)
	defer tick.Stop()

	for {
		dep, err := d.getDeploy(ctx, token, id)
		if err != nil {
			return nil, err
		}
		switch dep.State {
		case "ready":
			return dep, nil
		case "error":
			return nil, fmt.Errorf("netlify: deploy %s failed on the provider side", id)
		}
		slog.Debug("Waiting for deploy", logfields.DeployID(id), slog.String("state", dep.State))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("netlify: deploy %s not ready after %s", id, d.pollTimeout)
		case <-tick.C:
		}
	}
}

func (d *Netlify) do(req *http.Request) (*netlifyDeploy, error) {
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("netlify: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("netlify: failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("netlify: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var dep netlifyDeploy
	if err := json.Unmarshal(body, &dep); err != nil {
		return nil, fmt.Errorf("netlify: failed to decode response: %w", err)
	}
	return &dep, nil
}

// zipDir archives the tree in memory; built sites are small.
func zipDir(dir string) (*bytes.Buffer, int, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	files := 0
	err := filepath.WalkDir(dir, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		files++
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	if err := zw.Close(); err != nil {
		return nil, 0, err
	}
	return buf, files, nil
}

// --- Netlify API wire types ---

type netlifyDeploy struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	URL    string `json:"url"`
	SSLURL string `json:"ssl_url"`
}
