// Package frontmatter parses the optional YAML block at the top of a
// content document.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingClosingDelimiter indicates a document that opened a frontmatter
// block with --- but never closed it.
var ErrMissingClosingDelimiter = errors.New("frontmatter opened with --- but never closed")

// Meta holds the typed frontmatter fields the builder understands.
// Unknown fields stay available through Document.Fields.
type Meta struct {
	Title       string
	Description string
	Slug        string
	Date        time.Time
	Draft       bool
}

// Document is a parsed content file: typed metadata, the raw field map,
// and the Markdown body with the frontmatter block removed.
type Document struct {
	Meta   Meta
	Fields map[string]any
	Body   []byte
}

// Parse splits and decodes a content file. Files without a frontmatter
// block yield an empty Meta and the full input as Body.
func Parse(content []byte) (*Document, error) {
	fm, body, had, err := Split(content)
	if err != nil {
		return nil, err
	}

	doc := &Document{Fields: map[string]any{}, Body: body}
	if !had {
		return doc, nil
	}

	fields, err := ParseYAML(fm)
	if err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	doc.Fields = fields

	meta, err := decodeMeta(fields)
	if err != nil {
		return nil, err
	}
	doc.Meta = meta
	return doc, nil
}

// Split separates a leading --- delimited YAML block from the Markdown
// body. had reports whether a block was present; without one, body is the
// full input. LF and CRLF documents both work, even mixed.
func Split(content []byte) (meta []byte, body []byte, had bool, err error) {
	rest, opened := cutOpeningMarker(content)
	if !opened {
		return nil, content, false, nil
	}

	offset := 0
	for offset < len(rest) {
		nl := bytes.IndexByte(rest[offset:], '\n')
		if nl < 0 {
			break
		}
		line := rest[offset : offset+nl+1]
		if isMarkerLine(line) {
			return rest[:offset], rest[offset+nl+1:], true, nil
		}
		offset += nl + 1
	}
	// The final line may close the block without a trailing newline.
	if isMarkerLine(rest[offset:]) {
		return rest[:offset], nil, true, nil
	}
	return nil, nil, false, ErrMissingClosingDelimiter
}

func cutOpeningMarker(b []byte) ([]byte, bool) {
	if after, ok := bytes.CutPrefix(b, []byte("---\n")); ok {
		return after, true
	}
	if after, ok := bytes.CutPrefix(b, []byte("---\r\n")); ok {
		return after, true
	}
	return b, false
}

func isMarkerLine(line []byte) bool {
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return bytes.Equal(line, []byte("---"))
}

// ParseYAML decodes a raw frontmatter block (delimiters already removed)
// into a field map. Empty input decodes to an empty map.
func ParseYAML(meta []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(meta)) == 0 {
		return map[string]any{}, nil
	}
	var fields map[string]any
	if err := yaml.Unmarshal(meta, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

func decodeMeta(fields map[string]any) (Meta, error) {
	var m Meta
	if v, ok := fields["title"]; ok {
		m.Title = fmt.Sprint(v)
	}
	if v, ok := fields["description"]; ok {
		m.Description = fmt.Sprint(v)
	}
	if v, ok := fields["slug"]; ok {
		m.Slug = fmt.Sprint(v)
	}
	if v, ok := fields["draft"]; ok {
		b, ok := v.(bool)
		if !ok {
			return m, fmt.Errorf("frontmatter field draft: expected bool, got %T", v)
		}
		m.Draft = b
	}
	if v, ok := fields["date"]; ok {
		d, err := parseDate(v)
		if err != nil {
			return m, err
		}
		m.Date = d
	}
	return m, nil
}

// parseDate accepts the shapes yaml.v3 produces for date scalars: a
// time.Time for unquoted timestamps, or a string in 2006-01-02 or RFC3339
// form when the author quoted the value.
func parseDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return d, nil
	case string:
		if t, err := time.Parse("2006-01-02", d); err == nil {
			return t, nil
		}
		if t, err := time.Parse(time.RFC3339, d); err == nil {
			return t, nil
		}
		return time.Time{}, fmt.Errorf("frontmatter field date: cannot parse %q", d)
	default:
		return time.Time{}, fmt.Errorf("frontmatter field date: expected date, got %T", v)
	}
}
