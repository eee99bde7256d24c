// Package deploy publishes a built site to one of the configured hosting
// destinations. Credentials come from the environment, never from YAML.
package deploy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fieldsite/fieldsite/internal/config"
)

// Deployer publishes the contents of a directory to one destination.
type Deployer interface {
	Name() string
	Publish(ctx context.Context, dir string) (*Result, error)
}

// Result summarizes one publish.
type Result struct {
	Target   string
	ID       string // commit hash or provider deploy id
	URL      string // site URL when the target can tell
	Files    int
	Duration time.Duration
}

// CredentialsError reports credentials that are required but absent. It is
// returned before any network traffic so a misconfigured run fails fast.
type CredentialsError struct {
	Target string
	Env    string
}

func (e *CredentialsError) Error() string {
	return fmt.Sprintf("%s: missing credentials: set %s", e.Target, e.Env)
}

var targets = map[string]func(*config.Config) Deployer{
	"ghpages": func(cfg *config.Config) Deployer { return NewGHPages(cfg.Deploy.GHPages) },
	"s3":      func(cfg *config.Config) Deployer { return NewS3(cfg.Deploy.S3) },
	"netlify": func(cfg *config.Config) Deployer { return NewNetlify(cfg.Deploy.Netlify) },
}

// Names lists the registered target names, sorted.
func Names() []string {
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// For resolves a target name to its deployer. An empty name falls back to
// deploy.default from the configuration.
func For(cfg *config.Config, name string) (Deployer, error) {
	if name == "" {
		name = cfg.Deploy.Default
	}
	if name == "" {
		return nil, fmt.Errorf("no deploy target: set deploy.default or pass one explicitly")
	}
	build, ok := targets[name]
	if !ok {
		return nil, fmt.Errorf("unknown deploy target %q (valid: %s)", name, strings.Join(Names(), ", "))
	}
	return build(cfg), nil
}
