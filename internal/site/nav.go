package site

import (
	"errors"
	"fmt"

	"github.com/fieldsite/fieldsite/internal/config"
)

// NavItem is a resolved navigation entry. Exactly one of Route or URL is
// set: Route for internal pages, URL for external links.
type NavItem struct {
	Title string
	Route string
	URL   string
}

// ResolveNav maps configured navigation entries onto discovered pages.
// Every page reference must name an existing, non-draft content document;
// all violations are collected so one run reports the full list.
func ResolveNav(items []config.NavItem, s *Site) ([]NavItem, error) {
	resolved := make([]NavItem, 0, len(items))
	var errs []error

	for _, it := range items {
		if it.URL != "" {
			resolved = append(resolved, NavItem{Title: it.Title, URL: it.URL})
			continue
		}
		p := s.PageByRelPath(it.Page)
		if p == nil {
			errs = append(errs, fmt.Errorf("nav %q -> %s: no such content document", it.Title, it.Page))
			continue
		}
		resolved = append(resolved, NavItem{Title: it.Title, Route: p.Route})
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("navigation references missing documents: %w", errors.Join(errs...))
	}
	return resolved, nil
}
