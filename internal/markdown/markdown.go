// Package markdown converts Markdown content documents into HTML using
// goldmark, and provides the link/heading analysis used by the checker.
// Raw HTML passes through unchanged: content is authored by the site owner,
// not submitted by untrusted users.
package markdown

import (
	"bytes"
	"slices"

	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// md is the configured goldmark instance, reused across calls.
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,         // tables, strikethrough, autolinks, task lists
		extension.Typographer, // smart quotes and dashes
		highlighting.NewHighlighting(
			highlighting.WithStyle("monokai"),
		),
	),
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
		parser.WithASTTransformers(
			util.Prioritized(destRewriter{}, 999),
		),
	),
	goldmark.WithRendererOptions(
		html.WithUnsafe(),
	),
)

// DestResolver maps a link or image destination as authored in the source
// to the href the rendered HTML should carry. Returning ok=false keeps the
// original destination.
type DestResolver func(dest string) (href string, ok bool)

var destResolverKey = parser.NewContextKey()

// destRewriter applies the DestResolver from the parse context to every
// link and image destination. It runs after parsing, so reference-style
// links are already resolved to their definitions.
type destRewriter struct{}

func (destRewriter) Transform(doc *gmast.Document, _ text.Reader, pc parser.Context) {
	v := pc.Get(destResolverKey)
	if v == nil {
		return
	}
	resolve := v.(DestResolver)
	_ = gmast.Walk(doc, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Link:
			if href, ok := resolve(string(node.Destination)); ok {
				node.Destination = []byte(href)
			}
		case *gmast.Image:
			if href, ok := resolve(string(node.Destination)); ok {
				node.Destination = []byte(href)
			}
		}
		return gmast.WalkContinue, nil
	})
}

// ToHTML converts a Markdown body (frontmatter already removed) into HTML.
func ToHTML(source []byte) (string, error) {
	return ToHTMLResolved(source, nil)
}

// ToHTMLResolved converts Markdown like ToHTML, passing every link and
// image destination through resolve first. The builder uses this to turn
// document-relative links into hrefs that work from the rendered page's
// output location.
func ToHTMLResolved(source []byte, resolve DestResolver) (string, error) {
	pctx := parser.NewContext()
	if resolve != nil {
		pctx.Set(destResolverKey, resolve)
	}
	var buf bytes.Buffer
	if err := md.Convert(source, &buf, parser.WithContext(pctx)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ExtractLinks lists every link, image, and autolink in a Markdown body in
// document order, followed by the body's reference definitions sorted by
// label. The checker walks these; rendering is not involved.
func ExtractLinks(body []byte) []Link {
	ctx := parser.NewContext()
	doc := md.Parser().Parse(text.NewReader(body), parser.WithContext(ctx))

	var links []Link
	_ = gmast.Walk(doc, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if entering {
			if l, ok := linkOf(n, body); ok {
				links = append(links, l)
			}
		}
		return gmast.WalkContinue, nil
	})

	// Reference definitions never become AST nodes; goldmark keeps them in
	// the parse context. Label order keeps the output stable across parses.
	refs := ctx.References()
	slices.SortFunc(refs, func(a, b parser.Reference) int {
		return bytes.Compare(a.Label(), b.Label())
	})
	for _, ref := range refs {
		links = append(links, Link{Kind: LinkKindReferenceDefinition, Destination: string(ref.Destination())})
	}
	return links
}

// linkOf classifies an AST node as a link. Reference-style usages in the
// body arrive as plain Link nodes, already resolved to their target.
func linkOf(n gmast.Node, body []byte) (Link, bool) {
	switch node := n.(type) {
	case *gmast.Link:
		return Link{Kind: LinkKindInline, Destination: string(node.Destination)}, true
	case *gmast.Image:
		return Link{Kind: LinkKindImage, Destination: string(node.Destination)}, true
	case *gmast.AutoLink:
		return Link{Kind: LinkKindAuto, Destination: string(node.URL(body))}, true
	}
	return Link{}, false
}

// FirstHeading returns the text of the first level-1 heading, or "" when the
// body has none. Used as a title fallback for documents without frontmatter.
func FirstHeading(body []byte) string {
	root := md.Parser().Parse(text.NewReader(body))

	var title string
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		if h, ok := n.(*gmast.Heading); ok && h.Level == 1 {
			title = textOf(h, body)
			return gmast.WalkStop, nil
		}
		return gmast.WalkContinue, nil
	})
	return title
}

func textOf(n gmast.Node, source []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*gmast.Text); ok {
			buf.Write(t.Segment.Value(source))
			continue
		}
		buf.WriteString(textOf(c, source))
	}
	return buf.String()
}
