package deploy

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/fieldsite/fieldsite/internal/config"
	"github.com/fieldsite/fieldsite/internal/logfields"
)

// AuthError reports a push the remote rejected for bad or missing
// credentials.
type AuthError struct {
	Remote string
	Err    error
}

func (e *AuthError) Error() string { return fmt.Sprintf("ghpages auth error for %s: %v", e.Remote, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// NotFoundError reports a remote repository that does not exist.
type NotFoundError struct {
	Remote string
	Err    error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("ghpages remote not found %s: %v", e.Remote, e.Err) }
func (e *NotFoundError) Unwrap() error { return e.Err }

// GHPages publishes the output tree as a single fresh commit on the pages
// branch. History is not preserved; every deploy force-pushes one commit,
// so the remote branch never diverges from the local tree.
type GHPages struct {
	cfg config.GHPagesConfig
}

func NewGHPages(cfg config.GHPagesConfig) *GHPages { return &GHPages{cfg: cfg} }

func (d *GHPages) Name() string { return "ghpages" }

func (d *GHPages) Publish(ctx context.Context, dir string) (*Result, error) {
	if d.cfg.Remote == "" {
		return nil, fmt.Errorf("ghpages: deploy.ghpages.remote is not configured")
	}
	auth, err := d.auth()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	staging, err := os.MkdirTemp("", "fieldsite-ghpages-")
	if err != nil {
		return nil, fmt.Errorf("ghpages: failed to create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	files, err := copyTree(dir, staging)
	if err != nil {
		return nil, fmt.Errorf("ghpages: failed to stage output: %w", err)
	}
	// Keeps GitHub Pages from running the tree through Jekyll.
	if err := os.WriteFile(filepath.Join(staging, ".nojekyll"), nil, 0644); err != nil {
		return nil, fmt.Errorf("ghpages: failed to stage output: %w", err)
	}

	repo, err := git.PlainInit(staging, false)
	if err != nil {
		return nil, fmt.Errorf("ghpages: failed to init staging repo: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("ghpages: %w", err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return nil, fmt.Errorf("ghpages: failed to stage files: %w", err)
	}

	when := time.Now()
	commit, err := wt.Commit(fmt.Sprintf("Publish %s", when.UTC().Format(time.RFC3339)), &git.CommitOptions{
		Author: &object.Signature{Name: d.cfg.CommitName, Email: d.cfg.CommitEmail, When: when},
	})
	if err != nil {
		return nil, fmt.Errorf("ghpages: failed to commit output: %w", err)
	}

	if _, err := repo.CreateRemote(&gitcfg.RemoteConfig{Name: "origin", URLs: []string{d.cfg.Remote}}); err != nil {
		return nil, fmt.Errorf("ghpages: failed to configure remote: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("ghpages: %w", err)
	}

	slog.Debug("Pushing pages branch", logfields.URL(d.cfg.Remote), slog.String("branch", d.cfg.Branch))
	err = repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitcfg.RefSpec{gitcfg.RefSpec(fmt.Sprintf("+%s:refs/heads/%s", head.Name(), d.cfg.Branch))},
		Auth:       auth,
		Progress:   io.Discard,
	})
	if err != nil {
		return nil, classifyPushError(d.cfg.Remote, err)
	}

	return &Result{
		Target:   "ghpages",
		ID:       commit.String()[:8],
		URL:      pagesURL(d.cfg.Remote),
		Files:    files,
		Duration: time.Since(start),
	}, nil
}

// auth resolves push credentials before any network traffic. SSH remotes
// and URLs with embedded userinfo authenticate on their own.
func (d *GHPages) auth() (transport.AuthMethod, error) {
	if !strings.HasPrefix(d.cfg.Remote, "http://") && !strings.HasPrefix(d.cfg.Remote, "https://") {
		return nil, nil
	}
	u, err := url.Parse(d.cfg.Remote)
	if err != nil {
		return nil, fmt.Errorf("ghpages: invalid remote %q: %w", d.cfg.Remote, err)
	}
	if u.User != nil {
		return nil, nil
	}
	token := os.Getenv("GHPAGES_TOKEN")
	if token == "" {
		return nil, &CredentialsError{Target: "ghpages", Env: "GHPAGES_TOKEN"}
	}
	// Git hosts accept tokens as basic auth with "token" as the username.
	return &githttp.BasicAuth{Username: "token", Password: token}, nil
}

func classifyPushError(remote string, err error) error {
	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "authorization") ||
		strings.Contains(l, "invalid username or password"):
		return &AuthError{Remote: remote, Err: err}
	case strings.Contains(l, "not found") || strings.Contains(l, "repository does not exist"):
		return &NotFoundError{Remote: remote, Err: err}
	case strings.Contains(l, "non-fast-forward"):
		return fmt.Errorf("ghpages: push rejected as non-fast-forward; the remote branch changed outside the deployer: %w", err)
	default:
		return fmt.Errorf("ghpages: push to %s failed: %w", remote, err)
	}
}

// pagesURL derives the published URL for github.com remotes.
func pagesURL(remote string) string {
	path := ""
	switch {
	case strings.HasPrefix(remote, "git@github.com:"):
		path = strings.TrimPrefix(remote, "git@github.com:")
	default:
		u, err := url.Parse(remote)
		if err != nil || u.Host != "github.com" {
			return ""
		}
		path = strings.TrimPrefix(u.Path, "/")
	}
	owner, repo, ok := strings.Cut(strings.TrimSuffix(path, ".git"), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return ""
	}
	return fmt.Sprintf("https://%s.github.io/%s/", owner, repo)
}

func copyTree(src, dst string) (int, error) {
	files := 0
	err := filepath.WalkDir(src, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(dst, rel)
		if entry.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if err := copyFile(path, target); err != nil {
			return err
		}
		files++
		return nil
	})
	return files, err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
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
