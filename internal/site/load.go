package site

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/fieldsite/fieldsite/internal/frontmatter"
	"github.com/fieldsite/fieldsite/internal/logfields"
	"github.com/fieldsite/fieldsite/internal/markdown"
	"github.com/fieldsite/fieldsite/internal/slug"
)

var (
	// ErrNoContent indicates the content dir exists but holds no documents.
	ErrNoContent = errors.New("no content documents found")

	// ErrContentDirNotFound indicates the configured content dir is missing.
	ErrContentDirNotFound = errors.New("content directory not found")
)

var titleCaser = cases.Title(language.English)

// Load walks the content directory and builds the site model. Markdown
// files become pages, everything else becomes an asset. Hidden files and
// directories are skipped, draft pages are dropped.
func Load(contentDir string) (*Site, error) {
	info, err := os.Stat(contentDir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrContentDirNotFound, contentDir)
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrContentDirNotFound, contentDir)
	}

	s := &Site{
		byRel:   map[string]*Page{},
		byRoute: map[string]*Page{},
	}

	drafts := 0
	err = filepath.WalkDir(contentDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(contentDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if !strings.EqualFold(path.Ext(rel), ".md") {
			s.Assets = append(s.Assets, Asset{SourcePath: p, RelPath: rel})
			slog.Debug("Discovered asset", logfields.File(rel))
			return nil
		}

		page, err := loadPage(p, rel)
		if err != nil {
			return err
		}
		if page == nil {
			drafts++
			return nil
		}

		if prev, exists := s.byRoute[page.Route]; exists {
			return fmt.Errorf("duplicate route %s: %s and %s", page.Route, prev.RelPath, page.RelPath)
		}
		s.byRoute[page.Route] = page
		s.byRel[normalizeRel(rel)] = page
		s.Pages = append(s.Pages, page)
		slog.Debug("Discovered page", logfields.File(rel), logfields.Route(page.Route))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(s.Pages) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoContent, contentDir)
	}

	sort.Slice(s.Pages, func(i, j int) bool { return s.Pages[i].Route < s.Pages[j].Route })

	slog.Info("Content discovered",
		logfields.Pages(len(s.Pages)),
		logfields.Assets(len(s.Assets)),
		slog.Int("drafts_skipped", drafts))
	return s, nil
}

// loadPage parses one Markdown file. Draft pages return (nil, nil).
func loadPage(abs, rel string) (*Page, error) {
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read content file %s: %w", rel, err)
	}

	doc, err := frontmatter.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rel, err)
	}
	if doc.Meta.Draft {
		slog.Debug("Skipping draft", logfields.File(rel))
		return nil, nil
	}

	title := doc.Meta.Title
	if title == "" {
		title = markdown.FirstHeading(doc.Body)
	}
	if title == "" {
		title = titleFromFilename(rel)
	}

	route := routeFor(rel, doc.Meta.Slug)

	return &Page{
		SourcePath:  abs,
		RelPath:     rel,
		Section:     sectionOf(rel),
		Route:       route,
		OutputPath:  outputPathFor(route),
		Title:       title,
		Description: doc.Meta.Description,
		Date:        doc.Meta.Date,
		Fields:      doc.Fields,
		Markdown:    doc.Body,
	}, nil
}

// routeFor maps a content-relative path to a pretty URL. index.md files
// address their directory; an explicit frontmatter slug replaces the final
// segment.
func routeFor(rel, slugOverride string) string {
	dir, file := path.Split(rel)
	name := strings.TrimSuffix(file, path.Ext(file))

	var segs []string
	for _, part := range strings.Split(dir, "/") {
		if part == "" {
			continue
		}
		segs = append(segs, slug.Generate(part))
	}

	if !strings.EqualFold(name, "index") {
		last := slug.Generate(slugOverride)
		if last == "" {
			last = slug.Generate(name)
		}
		segs = append(segs, last)
	}

	if len(segs) == 0 {
		return "/"
	}
	return "/" + strings.Join(segs, "/") + "/"
}

func outputPathFor(route string) string {
	if route == "/" {
		return "index.html"
	}
	return strings.TrimPrefix(route, "/") + "index.html"
}

func sectionOf(rel string) string {
	dir := path.Dir(rel)
	if dir == "." {
		return ""
	}
	first, _, _ := strings.Cut(dir, "/")
	return first
}

func titleFromFilename(rel string) string {
	base := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
	base = strings.ReplaceAll(base, "-", " ")
	base = strings.ReplaceAll(base, "_", " ")
	return titleCaser.String(base)
}

func normalizeRel(rel string) string {
	rel = filepath.ToSlash(rel)
	rel = strings.TrimPrefix(rel, "./")
	return rel
}
