package build

import (
	"net/url"
	"path"
	"strings"

	"github.com/fieldsite/fieldsite/internal/markdown"
	"github.com/fieldsite/fieldsite/internal/site"
)

// destResolver returns the destination rewriter used when rendering p.
// Document links authored against the content tree ("guide.md",
// "../notes/interviews.md", "/guide/setup.md") become page-relative pretty
// URLs, and other relative destinations (images, downloads) are re-based
// from the page's output location, which sits one directory deeper than
// its source for every non-index page. Destinations it cannot resolve are
// left untouched for the checker to report.
func destResolver(s *site.Site, p *site.Page) markdown.DestResolver {
	relRoot := RelRoot(p.OutputPath)
	srcDir := path.Dir(p.RelPath)

	return func(dest string) (string, bool) {
		u, err := url.Parse(dest)
		if err != nil || u.Scheme != "" || u.Host != "" || u.Path == "" {
			return "", false
		}

		var joined string
		if strings.HasPrefix(u.Path, "/") {
			// Leading slash means content-root-relative for documents.
			// Absolute asset refs stay as authored.
			if !strings.EqualFold(path.Ext(u.Path), ".md") {
				return "", false
			}
			joined = strings.TrimPrefix(path.Clean(u.Path), "/")
		} else {
			joined = path.Clean(path.Join(srcDir, u.Path))
		}
		if joined == "." || joined == ".." || strings.HasPrefix(joined, "../") {
			return "", false
		}

		var target string
		if pg := s.PageByRelPath(joined); pg != nil {
			target = strings.TrimPrefix(pg.Route, "/")
		} else if strings.EqualFold(path.Ext(joined), ".md") {
			// Broken document link; leave it so the checker can flag it.
			return "", false
		} else {
			target = joined
		}

		href := relRoot + target
		if u.RawQuery != "" {
			href += "?" + u.RawQuery
		}
		if u.Fragment != "" {
			href += "#" + u.EscapedFragment()
		}
		return href, true
	}
}
