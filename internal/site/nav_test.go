package site

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fieldsite/fieldsite/internal/config"
)

func TestResolveNav_MapsPagesToRoutes(t *testing.T) {
	dir := writeContent(t, map[string]string{
		"index.md":       "# Home\n",
		"methodology.md": "# Methodology\n",
	})
	s, err := Load(dir)
	require.NoError(t, err)

	nav, err := ResolveNav([]config.NavItem{
		{Title: "Home", Page: "index.md"},
		{Title: "Methodology", Page: "methodology.md"},
		{Title: "Data", URL: "https://example.org/data"},
	}, s)
	require.NoError(t, err)
	require.Len(t, nav, 3)
	require.Equal(t, "/", nav[0].Route)
	require.Equal(t, "/methodology/", nav[1].Route)
	require.Empty(t, nav[2].Route)
	require.Equal(t, "https://example.org/data", nav[2].URL)
}

func TestResolveNav_ReportsEveryMissingDocument(t *testing.T) {
	dir := writeContent(t, map[string]string{"index.md": "# Home\n"})
	s, err := Load(dir)
	require.NoError(t, err)

	_, err = ResolveNav([]config.NavItem{
		{Title: "Home", Page: "index.md"},
		{Title: "Missing A", Page: "a.md"},
		{Title: "Missing B", Page: "sub/b.md"},
	}, s)
	require.Error(t, err)
	require.Contains(t, err.Error(), `nav "Missing A" -> a.md: no such content document`)
	require.Contains(t, err.Error(), `nav "Missing B" -> sub/b.md: no such content document`)
}

func TestResolveNav_DraftPageCountsAsMissing(t *testing.T) {
	dir := writeContent(t, map[string]string{
		"index.md": "# Home\n",
		"wip.md":   "---\ndraft: true\n---\nbody\n",
	})
	s, err := Load(dir)
	require.NoError(t, err)

	_, err = ResolveNav([]config.NavItem{{Title: "WIP", Page: "wip.md"}}, s)
	require.Error(t, err)
}
