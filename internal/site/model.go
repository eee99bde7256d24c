// Package site holds the content model: discovered pages and assets, and
// the navigation resolution that ties the configured menu to real documents.
package site

import (
	"html/template"
	"time"
)

// Page represents one Markdown content document.
type Page struct {
	SourcePath string // absolute path to the source file
	RelPath    string // path relative to the content dir, slash-separated
	Section    string // top-level directory, "" for root pages
	Route      string // pretty URL path: "/", "/guide/", "/findings/report/"
	OutputPath string // output-relative file: "index.html", "guide/index.html"

	Title       string
	Description string
	Date        time.Time
	Fields      map[string]any // full frontmatter map for templates

	Markdown []byte        // body with frontmatter removed
	HTML     template.HTML // filled in by the builder
}

// Asset is a non-Markdown file under the content dir, copied through verbatim.
type Asset struct {
	SourcePath string
	RelPath    string
}

// Site is the discovered content of one project.
type Site struct {
	Pages  []*Page
	Assets []Asset

	byRel   map[string]*Page
	byRoute map[string]*Page
}

// PageByRelPath returns the page for a content-relative path like
// "findings/report.md", or nil.
func (s *Site) PageByRelPath(rel string) *Page {
	return s.byRel[normalizeRel(rel)]
}

// PageByRoute returns the page for a pretty URL route like "/guide/", or nil.
func (s *Site) PageByRoute(route string) *Page {
	return s.byRoute[route]
}
