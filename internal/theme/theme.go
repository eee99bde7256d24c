// Package theme renders pages through an HTML layout. A built-in theme is
// embedded in the binary; a project can override the layout with its own
// templates directory and layer its own stylesheet on top.
package theme

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

//go:embed themes/*/base.html themes/*/theme.css
var embedded embed.FS

// StylesheetName is the output file name of the theme's own CSS.
const StylesheetName = "theme.css"

// Data is the template context for one rendered page.
type Data struct {
	Site       SiteData
	Page       PageData
	Nav        []NavEntry
	RelRoot    string // relative path from this page back to the site root, e.g. "../../"
	Stylesheet string // output-relative href of the site stylesheet, "" when none
	Canonical  string // absolute canonical URL, "" when base_url is unset
	Year       int
}

type SiteData struct {
	Title       string
	Description string
	BaseURL     string
	Author      string
}

type PageData struct {
	Title       string
	Description string
	Route       string
	Date        time.Time
	Content     template.HTML
}

// NavEntry is one menu link with a page-relative href.
type NavEntry struct {
	Title    string
	Href     string
	External bool
	Active   bool
}

// Theme is a parsed layout plus its stylesheet.
type Theme struct {
	name string
	tpl  *template.Template
	css  []byte
}

// Load resolves a theme. overrideDir, when set, must contain base.html and
// takes precedence over the embedded layout; its theme.css is optional and
// falls back to the named built-in's.
func Load(name, overrideDir string) (*Theme, error) {
	css, err := embedded.ReadFile("themes/" + name + "/theme.css")
	base, berr := embedded.ReadFile("themes/" + name + "/base.html")
	if err != nil || berr != nil {
		return nil, fmt.Errorf("unknown theme %q (available: %v)", name, Available())
	}

	if overrideDir != "" {
		basePath := filepath.Join(overrideDir, "base.html")
		b, err := os.ReadFile(basePath)
		if err != nil {
			return nil, fmt.Errorf("theme templates_dir is set but %s is unreadable: %w", basePath, err)
		}
		base = b
		if c, err := os.ReadFile(filepath.Join(overrideDir, "theme.css")); err == nil {
			css = c
		}
	}

	tpl, err := template.New("base.html").Parse(string(base))
	if err != nil {
		return nil, fmt.Errorf("parse theme layout: %w", err)
	}

	return &Theme{name: name, tpl: tpl, css: css}, nil
}

// Available lists the built-in theme names.
func Available() []string {
	entries, err := fs.ReadDir(embedded, "themes")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// Name returns the theme name the layout was loaded from.
func (t *Theme) Name() string { return t.name }

// CSS returns the theme stylesheet bytes.
func (t *Theme) CSS() []byte { return t.css }

// Render executes the layout for one page.
func (t *Theme) Render(w io.Writer, data Data) error {
	if err := t.tpl.Execute(w, data); err != nil {
		return fmt.Errorf("render %s with theme %s: %w", data.Page.Route, t.name, err)
	}
	return nil
}
