// Package config loads and validates the fieldsite.yaml project file.
// Secrets never live in YAML: bearer tokens and cloud credentials come from
// the environment, optionally seeded from .env files.
package config

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the conventional project file name.
const DefaultPath = "fieldsite.yaml"

// Config is the root of the project configuration.
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Nav     []NavItem     `yaml:"nav,omitempty"`
	Content ContentConfig `yaml:"content,omitempty"`
	Theme   ThemeConfig   `yaml:"theme,omitempty"`
	Output  OutputConfig  `yaml:"output,omitempty"`
	Serve   ServeConfig   `yaml:"serve,omitempty"`
	Collect CollectConfig `yaml:"collect,omitempty"`
	Topics  []TopicGroup  `yaml:"topics,omitempty"`
	Report  ReportConfig  `yaml:"report,omitempty"`
	Deploy  DeployConfig  `yaml:"deploy,omitempty"`
	Daemon  DaemonConfig  `yaml:"daemon,omitempty"`
}

// SiteConfig describes the site itself.
type SiteConfig struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	BaseURL     string `yaml:"base_url,omitempty"`
	Author      string `yaml:"author,omitempty"`
}

// NavItem is one navigation menu entry. Exactly one of Page (a content
// document, relative to the content dir) or URL (external) must be set.
type NavItem struct {
	Title string `yaml:"title"`
	Page  string `yaml:"page,omitempty"`
	URL   string `yaml:"url,omitempty"`
}

type ContentConfig struct {
	Dir string `yaml:"dir,omitempty"`
}

// ThemeConfig selects the built-in theme and the site's own stylesheet.
// The stylesheet is copied into the output and linked after the theme CSS
// so site rules win.
type ThemeConfig struct {
	Name         string `yaml:"name,omitempty"`
	Stylesheet   string `yaml:"stylesheet,omitempty"`
	TemplatesDir string `yaml:"templates_dir,omitempty"`
}

type OutputConfig struct {
	Dir   string `yaml:"dir,omitempty"`
	Clean *bool  `yaml:"clean,omitempty"`
}

type ServeConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// CollectConfig drives post collection from the X API v2 recent search.
type CollectConfig struct {
	Query           string `yaml:"query,omitempty"`
	Lang            string `yaml:"lang,omitempty"`
	ExcludeRetweets bool   `yaml:"exclude_retweets,omitempty"`
	ExcludeReplies  bool   `yaml:"exclude_replies,omitempty"`
	WindowDays      int    `yaml:"window_days,omitempty"`
	PageSize        int    `yaml:"page_size,omitempty"`
	MaxPosts        int    `yaml:"max_posts,omitempty"`
	MonthlyCap      int    `yaml:"monthly_cap,omitempty"`
	Archive         string `yaml:"archive,omitempty"`
	BaseURL         string `yaml:"base_url,omitempty"`
}

// TopicGroup is one keyword group for the classifier. Keywords are matched
// as word-anchored prefixes, so "privatiza" also hits "privatização".
type TopicGroup struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

type ReportConfig struct {
	Page          string   `yaml:"page,omitempty"`
	SubjectTopics []string `yaml:"subject_topics,omitempty"`
	CSV           string   `yaml:"csv,omitempty"`
}

// DeployConfig holds the three publishing destinations.
type DeployConfig struct {
	Default string        `yaml:"default,omitempty"`
	GHPages GHPagesConfig `yaml:"ghpages,omitempty"`
	S3      S3Config      `yaml:"s3,omitempty"`
	Netlify NetlifyConfig `yaml:"netlify,omitempty"`
}

type GHPagesConfig struct {
	Remote      string `yaml:"remote,omitempty"`
	Branch      string `yaml:"branch,omitempty"`
	CommitName  string `yaml:"commit_name,omitempty"`
	CommitEmail string `yaml:"commit_email,omitempty"`
}

type S3Config struct {
	Bucket   string `yaml:"bucket,omitempty"`
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

type NetlifyConfig struct {
	SiteID  string `yaml:"site_id,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
}

// DaemonConfig drives the unattended mode: scheduled collection, content
// watching, and event publishing.
type DaemonConfig struct {
	Addr         string     `yaml:"addr,omitempty"`
	CollectEvery string     `yaml:"collect_every,omitempty"`
	Watch        *bool      `yaml:"watch,omitempty"`
	NATS         NATSConfig `yaml:"nats,omitempty"`
}

type NATSConfig struct {
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// Load reads, expands, decodes, defaults, and validates a project file.
// .env files are loaded first so ${VAR} expansion sees them.
func Load(configPath string) (*Config, error) {
	LoadEnv()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config %s not found (run 'fieldsite init' first)", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Content.Dir == "" {
		cfg.Content.Dir = "docs"
	}
	if cfg.Theme.Name == "" {
		cfg.Theme.Name = "plain"
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "public"
	}
	if cfg.Output.Clean == nil {
		cfg.Output.Clean = boolPtr(true)
	}
	if cfg.Serve.Addr == "" {
		cfg.Serve.Addr = "127.0.0.1:8080"
	}

	if cfg.Collect.WindowDays == 0 {
		cfg.Collect.WindowDays = 7
	}
	if cfg.Collect.PageSize == 0 {
		cfg.Collect.PageSize = 100
	}
	if cfg.Collect.MaxPosts == 0 {
		cfg.Collect.MaxPosts = 300
	}
	if cfg.Collect.MonthlyCap == 0 {
		cfg.Collect.MonthlyCap = 1500
	}
	// Operational override without touching the project file.
	if v := os.Getenv("X_MONTHLY_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Collect.MonthlyCap = n
		}
	}
	if cfg.Collect.Archive == "" {
		cfg.Collect.Archive = "data/archive.db"
	}
	if cfg.Collect.BaseURL == "" {
		cfg.Collect.BaseURL = "https://api.twitter.com/2"
	}

	if cfg.Report.Page == "" {
		cfg.Report.Page = "findings.md"
	}
	if cfg.Report.CSV == "" {
		cfg.Report.CSV = "data/posts_annotated.csv"
	}

	if cfg.Deploy.GHPages.Branch == "" {
		cfg.Deploy.GHPages.Branch = "gh-pages"
	}
	if cfg.Deploy.GHPages.CommitName == "" {
		cfg.Deploy.GHPages.CommitName = "fieldsite"
	}
	if cfg.Deploy.GHPages.CommitEmail == "" {
		cfg.Deploy.GHPages.CommitEmail = "fieldsite@localhost"
	}
	if cfg.Deploy.Netlify.BaseURL == "" {
		cfg.Deploy.Netlify.BaseURL = "https://api.netlify.com"
	}

	if cfg.Daemon.Addr == "" {
		cfg.Daemon.Addr = "127.0.0.1:9090"
	}
	if cfg.Daemon.CollectEvery == "" {
		cfg.Daemon.CollectEvery = "6h"
	}
	if cfg.Daemon.Watch == nil {
		cfg.Daemon.Watch = boolPtr(true)
	}
	if cfg.Daemon.NATS.Subject == "" {
		cfg.Daemon.NATS.Subject = "fieldsite.events"
	}
}

// CollectInterval returns the parsed daemon collection interval. Zero means
// scheduled collection is disabled. Call after Validate.
func (c *Config) CollectInterval() time.Duration {
	d, err := time.ParseDuration(c.Daemon.CollectEvery)
	if err != nil {
		return 0
	}
	return d
}

// Hash returns a short fingerprint of the effective configuration, used to
// decide whether a previous build output is still current.
func (c *Config) Hash() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

func boolPtr(b bool) *bool { return &b }
