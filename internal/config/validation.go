package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

var deployTargets = map[string]bool{"ghpages": true, "s3": true, "netlify": true}

// Validate checks the effective configuration. Problems are collected so a
// single run reports everything that needs fixing, not just the first hit.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Site.Title) == "" {
		errs = append(errs, errors.New("site.title is required"))
	}

	errs = append(errs, c.validateNav()...)
	errs = append(errs, c.validateDirs()...)
	errs = append(errs, c.validateCollect()...)
	errs = append(errs, c.validateTopics()...)
	errs = append(errs, c.validateDeploy()...)
	errs = append(errs, c.validateDaemon()...)

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) validateNav() []error {
	var errs []error
	seen := map[string]bool{}
	for i, item := range c.Nav {
		if strings.TrimSpace(item.Title) == "" {
			errs = append(errs, fmt.Errorf("nav[%d]: title is required", i))
		}
		hasPage := item.Page != ""
		hasURL := item.URL != ""
		switch {
		case hasPage && hasURL:
			errs = append(errs, fmt.Errorf("nav %q: page and url are mutually exclusive", item.Title))
		case !hasPage && !hasURL:
			errs = append(errs, fmt.Errorf("nav %q: one of page or url is required", item.Title))
		case hasPage:
			key := filepath.ToSlash(item.Page)
			if seen[key] {
				errs = append(errs, fmt.Errorf("nav %q: duplicate page reference %s", item.Title, item.Page))
			}
			seen[key] = true
		}
	}
	return errs
}

func (c *Config) validateDirs() []error {
	var errs []error
	content := filepath.Clean(c.Content.Dir)
	output := filepath.Clean(c.Output.Dir)
	if content == output {
		errs = append(errs, fmt.Errorf("output.dir and content.dir must differ (both %s)", output))
		return errs
	}
	if within(output, content) {
		errs = append(errs, fmt.Errorf("output.dir %s must not live inside content.dir %s", output, content))
	}
	if within(content, output) {
		errs = append(errs, fmt.Errorf("content.dir %s must not live inside output.dir %s (it would be deleted on clean builds)", content, output))
	}
	return errs
}

func (c *Config) validateCollect() []error {
	var errs []error
	if c.Collect.WindowDays < 1 || c.Collect.WindowDays > 7 {
		errs = append(errs, fmt.Errorf("collect.window_days must be 1-7 (recent search covers one week), got %d", c.Collect.WindowDays))
	}
	if c.Collect.PageSize < 10 || c.Collect.PageSize > 100 {
		errs = append(errs, fmt.Errorf("collect.page_size must be 10-100, got %d", c.Collect.PageSize))
	}
	if c.Collect.MaxPosts < 1 {
		errs = append(errs, fmt.Errorf("collect.max_posts must be positive, got %d", c.Collect.MaxPosts))
	}
	if c.Collect.MonthlyCap < 1 {
		errs = append(errs, fmt.Errorf("collect.monthly_cap must be positive, got %d", c.Collect.MonthlyCap))
	}
	return errs
}

func (c *Config) validateTopics() []error {
	var errs []error
	names := map[string]bool{}
	for _, g := range c.Topics {
		if strings.TrimSpace(g.Name) == "" {
			errs = append(errs, errors.New("topics: every group needs a name"))
			continue
		}
		if names[g.Name] {
			errs = append(errs, fmt.Errorf("topics: duplicate group %q", g.Name))
		}
		names[g.Name] = true
		if len(g.Keywords) == 0 {
			errs = append(errs, fmt.Errorf("topics %q: at least one keyword is required", g.Name))
		}
	}
	for _, subject := range c.Report.SubjectTopics {
		if !names[subject] {
			errs = append(errs, fmt.Errorf("report.subject_topics: %q is not a configured topic", subject))
		}
	}
	return errs
}

func (c *Config) validateDeploy() []error {
	var errs []error
	if c.Deploy.Default != "" && !deployTargets[c.Deploy.Default] {
		errs = append(errs, fmt.Errorf("deploy.default: unknown target %q (valid: ghpages, s3, netlify)", c.Deploy.Default))
	}
	return errs
}

func (c *Config) validateDaemon() []error {
	var errs []error
	if c.Daemon.CollectEvery != "" {
		d, err := time.ParseDuration(c.Daemon.CollectEvery)
		if err != nil {
			errs = append(errs, fmt.Errorf("daemon.collect_every: %w", err))
		} else if d < 0 {
			errs = append(errs, fmt.Errorf("daemon.collect_every must not be negative, got %s", d))
		}
	}
	return errs
}

// within reports whether path sits inside dir (or is dir itself).
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "."
}
