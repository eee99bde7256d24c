package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fieldsite/fieldsite/internal/logfields"
)

const starterConfig = `site:
  title: "My Research Site"
  description: "Findings and notes, published as a static site"
  base_url: "https://example.org/"

nav:
  - title: Home
    page: index.md
  - title: About
    page: about.md

content:
  dir: docs

theme:
  name: plain
  stylesheet: assets/custom.css

output:
  dir: public
  clean: true

# Post collection from the X API v2 (requires X_BEARER_TOKEN in the env).
# collect:
#   query: "your topic"
#   lang: en
#   exclude_retweets: true
#   monthly_cap: 1500

# Keyword groups for the topic report. A keyword matches at a word boundary
# as a prefix, so "privatiza" also hits "privatização".
# topics:
#   - name: service_issue
#     keywords: [outage, "no water", leak]

# deploy:
#   default: ghpages
#   ghpages:
#     remote: git@github.com:you/your-site.git
#   s3:
#     bucket: my-site-bucket
#     region: us-east-1
#   netlify:
#     site_id: 00000000-0000-0000-0000-000000000000
`

const starterIndex = `---
title: Home
---

# My Research Site

Welcome. Edit ` + "`docs/index.md`" + ` to change this page, then run
` + "`fieldsite build`" + ` to regenerate the site. See [About](about.md)
for what this project is.
`

const starterAbout = `---
title: About
---

# About

Describe the project, its methodology, and its data sources here.
`

const starterStylesheet = `/* Site stylesheet. Loaded after the theme CSS, so rules here win. */

:root {
  --accent: #1f6feb;
}
`

const starterEnvExample = `# Copy to .env and fill in. .env is read at startup and never committed.
X_BEARER_TOKEN=
# X_MONTHLY_CAP=1500

# NETLIFY_AUTH_TOKEN=
# GHPAGES_TOKEN=
# AWS_ACCESS_KEY_ID=
# AWS_SECRET_ACCESS_KEY=
`

// Init writes a starter project: configuration, two content documents, a
// stylesheet, and an environment template. force only applies to the
// configuration file; existing content is never overwritten.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("config %s already exists (pass --force to overwrite)", configPath)
	}

	if err := os.WriteFile(configPath, []byte(starterConfig), 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	slog.Info("Wrote configuration", logfields.File(configPath))

	starters := []struct {
		path    string
		content string
	}{
		{filepath.Join("docs", "index.md"), starterIndex},
		{filepath.Join("docs", "about.md"), starterAbout},
		{filepath.Join("assets", "custom.css"), starterStylesheet},
		{".env.example", starterEnvExample},
	}

	for _, s := range starters {
		if _, err := os.Stat(s.path); err == nil {
			slog.Info("Keeping existing file", logfields.File(s.path))
			continue
		}
		if dir := filepath.Dir(s.path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
		}
		if err := os.WriteFile(s.path, []byte(s.content), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", s.path, err)
		}
		slog.Info("Wrote starter file", logfields.File(s.path))
	}

	return nil
}
