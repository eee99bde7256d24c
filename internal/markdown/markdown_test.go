package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToHTML_BasicMarkdown(t *testing.T) {
	out, err := ToHTML([]byte("# Hello\n\nSome **bold** text.\n"))
	require.NoError(t, err)
	require.Contains(t, out, "<h1 id=\"hello\">Hello</h1>")
	require.Contains(t, out, "<strong>bold</strong>")
}

func TestToHTML_GFMTable(t *testing.T) {
	src := "| a | b |\n|---|---|\n| 1 | 2 |\n"
	out, err := ToHTML([]byte(src))
	require.NoError(t, err)
	require.Contains(t, out, "<table>")
}

func TestToHTML_RawHTMLPassesThrough(t *testing.T) {
	out, err := ToHTML([]byte("<div class=\"note\">kept</div>\n"))
	require.NoError(t, err)
	require.Contains(t, out, "<div class=\"note\">kept</div>")
}

func TestToHTML_FencedCodeIsHighlighted(t *testing.T) {
	src := "```go\npackage main\n```\n"
	out, err := ToHTML([]byte(src))
	require.NoError(t, err)
	// Chroma emits inline styles; the plain <pre><code> fallback would mean
	// highlighting silently stopped working.
	require.Contains(t, out, "<pre")
	require.True(t, strings.Contains(out, "style=") || strings.Contains(out, "class="),
		"expected highlighted output, got %q", out)
}

func TestToHTMLResolved_RewritesLinkAndImageDestinations(t *testing.T) {
	src := "[guide](guide.md) and ![map](img/map.png)\n"
	out, err := ToHTMLResolved([]byte(src), func(dest string) (string, bool) {
		switch dest {
		case "guide.md":
			return "../guide/", true
		case "img/map.png":
			return "../img/map.png", true
		}
		return "", false
	})
	require.NoError(t, err)
	require.Contains(t, out, `href="../guide/"`)
	require.Contains(t, out, `src="../img/map.png"`)
}

func TestToHTMLResolved_LeavesUnresolvedDestinations(t *testing.T) {
	src := "[docs](https://example.com/docs.md)\n"
	out, err := ToHTMLResolved([]byte(src), func(string) (string, bool) { return "", false })
	require.NoError(t, err)
	require.Contains(t, out, `href="https://example.com/docs.md"`)
}

func TestToHTMLResolved_ResolvesReferenceLinks(t *testing.T) {
	src := "see [the guide][g]\n\n[g]: guide.md\n"
	out, err := ToHTMLResolved([]byte(src), func(dest string) (string, bool) {
		if dest == "guide.md" {
			return "./guide/", true
		}
		return "", false
	})
	require.NoError(t, err)
	require.Contains(t, out, `href="./guide/"`)
}

func TestFirstHeading_ReturnsH1Text(t *testing.T) {
	got := FirstHeading([]byte("intro\n\n# Service Outages\n\n## Details\n"))
	require.Equal(t, "Service Outages", got)
}

func TestFirstHeading_NoHeading_ReturnsEmpty(t *testing.T) {
	require.Empty(t, FirstHeading([]byte("no headings here\n")))
}

func TestFirstHeading_IgnoresH2(t *testing.T) {
	require.Empty(t, FirstHeading([]byte("## Only a subheading\n")))
}
