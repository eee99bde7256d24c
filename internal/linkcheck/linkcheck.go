// Package linkcheck validates links at two levels: Markdown sources
// (cross-document references) and rendered HTML output (files on disk),
// with an optional pass over external URLs.
package linkcheck

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/fieldsite/fieldsite/internal/markdown"
	"github.com/fieldsite/fieldsite/internal/site"
)

// Problem is one broken link, tied to the file it came from.
type Problem struct {
	Source string // content-relative source file or output-relative HTML file
	Link   string
	Reason string
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %s (%s)", p.Source, p.Link, p.Reason)
}

// Checker runs link validation passes.
type Checker struct {
	client       *http.Client
	external     bool
	maxInFlight  int
	externalURLs map[string][]string // url -> source files that reference it
}

// New creates a Checker with external checking disabled.
func New() *Checker {
	return &Checker{
		client: &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after %d redirects", len(via))
				}
				return nil
			},
		},
		maxInFlight:  8,
		externalURLs: make(map[string][]string),
	}
}

// SetExternal enables the HTTP pass over external URLs.
func (c *Checker) SetExternal(on bool) *Checker {
	c.external = on
	return c
}

// Run executes all passes: Markdown sources, rendered output, and (when
// enabled) external URLs. Problems come back sorted by source file.
func (c *Checker) Run(ctx context.Context, s *site.Site, outDir string) ([]Problem, error) {
	problems := c.CheckSource(s)
	fromOutput, err := c.CheckOutput(outDir)
	if err != nil {
		return nil, err
	}
	problems = append(problems, fromOutput...)
	problems = append(problems, c.CheckExternal(ctx)...)
	sortProblems(problems)
	return problems, nil
}

// CheckSource validates cross-document references in the Markdown sources:
// every relative .md destination must resolve to a known content document.
// Fragments are tolerated, external URLs are collected for the optional
// external pass.
func (c *Checker) CheckSource(s *site.Site) []Problem {
	var problems []Problem
	for _, p := range s.Pages {
		for _, link := range markdown.ExtractLinks(p.Markdown) {
			dest := link.Destination
			if dest == "" || strings.HasPrefix(dest, "#") {
				continue
			}
			if isExternal(dest) {
				c.noteExternal(dest, p.RelPath)
				continue
			}
			target, _, _ := strings.Cut(dest, "#")
			if target == "" || !strings.EqualFold(path.Ext(target), ".md") {
				continue
			}
			rel := resolveRel(p.RelPath, target)
			if s.PageByRelPath(rel) == nil {
				problems = append(problems, Problem{
					Source: p.RelPath,
					Link:   dest,
					Reason: "no such content document",
				})
			}
		}
	}
	return problems
}

// resolveRel resolves a link destination against the directory of the
// source document, yielding a content-relative path.
func resolveRel(sourceRel, dest string) string {
	if strings.HasPrefix(dest, "/") {
		return strings.TrimPrefix(path.Clean(dest), "/")
	}
	return path.Clean(path.Join(path.Dir(sourceRel), dest))
}

// isExternal reports whether a destination leaves the site entirely.
func isExternal(dest string) bool {
	if strings.HasPrefix(dest, "mailto:") || strings.HasPrefix(dest, "tel:") {
		return true
	}
	u, err := url.Parse(dest)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func (c *Checker) noteExternal(rawURL, source string) {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return
	}
	c.externalURLs[rawURL] = append(c.externalURLs[rawURL], source)
}

func sortProblems(problems []Problem) {
	sort.Slice(problems, func(i, j int) bool {
		if problems[i].Source != problems[j].Source {
			return problems[i].Source < problems[j].Source
		}
		return problems[i].Link < problems[j].Link
	})
}
