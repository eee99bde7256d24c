package linkcheck

import (
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// CheckOutput walks the rendered output dir and verifies that every
// internal target of a[href], img[src], link[href], and script[src]
// exists on disk. Pretty URLs map to their index.html.
func (c *Checker) CheckOutput(outDir string) ([]Problem, error) {
	var problems []Problem
	err := filepath.WalkDir(outDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".html") {
			return err
		}
		rel, err := filepath.Rel(outDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		found, err := c.checkHTMLFile(outDir, rel, p)
		if err != nil {
			return fmt.Errorf("check %s: %w", rel, err)
		}
		problems = append(problems, found...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortProblems(problems)
	return problems, nil
}

func (c *Checker) checkHTMLFile(outDir, rel, absPath string) ([]Problem, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return nil, err
	}

	var problems []Problem
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if ref := nodeRef(n); ref != "" {
				if prob := c.checkRef(outDir, rel, ref); prob != nil {
					problems = append(problems, *prob)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return problems, nil
}

// nodeRef returns the link-bearing attribute value of an element, or "".
func nodeRef(n *html.Node) string {
	var key string
	switch n.Data {
	case "a", "link":
		key = "href"
	case "img", "script":
		key = "src"
	default:
		return ""
	}
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// checkRef validates one reference found in an output HTML file. External
// URLs are queued for the optional external pass; internal ones must
// resolve to a file in the output tree.
func (c *Checker) checkRef(outDir, sourceRel, ref string) *Problem {
	if ref == "" || strings.HasPrefix(ref, "#") ||
		strings.HasPrefix(ref, "data:") || strings.HasPrefix(ref, "javascript:") {
		return nil
	}
	if isExternal(ref) {
		c.noteExternal(ref, sourceRel)
		return nil
	}

	u, err := url.Parse(ref)
	if err != nil {
		return &Problem{Source: sourceRel, Link: ref, Reason: "unparsable URL"}
	}

	target := u.Path
	if target == "" { // pure query or fragment
		return nil
	}
	var candidate string
	if strings.HasPrefix(target, "/") {
		candidate = path.Clean(strings.TrimPrefix(target, "/"))
	} else {
		candidate = path.Clean(path.Join(path.Dir(sourceRel), target))
	}

	// Pretty URL: a directory target is satisfied by its index.html.
	if strings.HasSuffix(target, "/") || candidate == "." {
		candidate = path.Join(candidate, "index.html")
	}

	if fileExists(outDir, candidate) {
		return nil
	}
	if path.Ext(candidate) == "" && fileExists(outDir, path.Join(candidate, "index.html")) {
		return nil
	}
	return &Problem{Source: sourceRel, Link: ref, Reason: "target not found in output"}
}

func fileExists(outDir, rel string) bool {
	info, err := os.Stat(filepath.Join(outDir, filepath.FromSlash(rel)))
	return err == nil && !info.IsDir()
}
