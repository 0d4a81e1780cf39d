// Package markdown implements the codec between a Markdown-with-front-matter
// file on disk and the in-memory front-matter map the rest of the engine
// works with. It is deliberately unaware of kbtypes.Item: callers project
// Item fields into a front-matter map and back, so the codec itself stays a
// pure "split fences, decode YAML" transform, the way
// jra3-linear-fuse/internal/marshal/frontmatter.go does it.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const fence = "---"

// ParseError is returned when a file cannot be split into front matter and
// body, or the front matter is not valid YAML (spec §4.1).
type ParseError struct {
	File  string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.File, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// Document is a parsed Markdown-with-front-matter file.
type Document struct {
	Meta map[string]any
	Body string
}

// Parse splits content on the first two "---" fences. A document with no
// leading fence is treated as having empty front matter and the entire
// content as body — this lets the codec round-trip arbitrary existing
// Markdown files without failing.
func Parse(file string, content []byte) (*Document, error) {
	s := string(content)
	if !strings.HasPrefix(s, fence) {
		return &Document{Meta: map[string]any{}, Body: s}, nil
	}

	rest := s[len(fence):]
	// The opening fence must be immediately followed by a newline.
	if !strings.HasPrefix(rest, "\n") && rest != "" {
		return nil, &ParseError{File: file, Cause: fmt.Errorf("malformed opening fence")}
	}
	rest = strings.TrimPrefix(rest, "\n")

	closeIdx := indexClosingFence(rest)
	if closeIdx == -1 {
		return nil, &ParseError{File: file, Cause: fmt.Errorf("missing closing fence")}
	}

	metaYAML := rest[:closeIdx]
	body := rest[closeIdx:]
	body = strings.TrimPrefix(body, fence)
	body = strings.TrimPrefix(body, "\n")

	var meta map[string]any
	if err := yaml.Unmarshal([]byte(metaYAML), &meta); err != nil {
		return nil, &ParseError{File: file, Cause: err}
	}
	if meta == nil {
		meta = map[string]any{}
	}

	return &Document{Meta: meta, Body: body}, nil
}

// indexClosingFence finds the offset of a line that is exactly "---",
// returning the offset of that line (so callers can strip fence+body
// uniformly) or -1 if none exists.
func indexClosingFence(s string) int {
	offset := 0
	for {
		idx := strings.Index(s[offset:], fence)
		if idx == -1 {
			return -1
		}
		pos := offset + idx
		atLineStart := pos == 0 || s[pos-1] == '\n'
		afterOK := pos+len(fence) == len(s) || s[pos+len(fence)] == '\n'
		if atLineStart && afterOK {
			return pos
		}
		offset = pos + len(fence)
	}
}

// keyOrder is the deterministic front-matter key order spec §4.1 mandates.
// Keys not in this list (unknown, preserved keys) are emitted afterward:
// first those Render's extraOrder names, then the rest in sorted order.
var keyOrder = []string{
	"id", "title", "description", "priority", "status", "tags", "related",
	"start_date", "end_date", "start_time", "created_at", "updated_at",
}

// Render serialises a Document back to "---\n<yaml>\n---\n<body>", with
// keys ordered per keyOrder first, then the keys extraOrder names, then
// any remaining keys in sorted order (Go map iteration is randomised, so
// this keeps output deterministic across calls).
func Render(doc *Document, extraOrder []string) ([]byte, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

	written := make(map[string]struct{}, len(doc.Meta))
	appendKey := func(k string) error {
		v, ok := doc.Meta[k]
		if !ok {
			return nil
		}
		if _, done := written[k]; done {
			return nil
		}
		written[k] = struct{}{}
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
		valNode := &yaml.Node{}
		if err := valNode.Encode(v); err != nil {
			return fmt.Errorf("encode field %s: %w", k, err)
		}
		node.Content = append(node.Content, keyNode, valNode)
		return nil
	}

	for _, k := range keyOrder {
		if err := appendKey(k); err != nil {
			return nil, err
		}
	}
	for _, k := range extraOrder {
		if err := appendKey(k); err != nil {
			return nil, err
		}
	}
	// Any remaining keys not covered by keyOrder or extraOrder: emit in
	// whatever stable order map iteration yields this run, sorted to keep
	// output byte-for-byte stable across repeated writes of the same data.
	remaining := make([]string, 0, len(doc.Meta))
	for k := range doc.Meta {
		if _, done := written[k]; !done {
			remaining = append(remaining, k)
		}
	}
	sortStrings(remaining)
	for _, k := range remaining {
		if err := appendKey(k); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	buf.WriteString(fence)
	buf.WriteString("\n")
	if len(node.Content) > 0 {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(node); err != nil {
			return nil, fmt.Errorf("encode front matter: %w", err)
		}
		_ = enc.Close()
	}
	buf.WriteString(fence)
	buf.WriteString("\n")
	buf.WriteString(doc.Body)

	out := buf.Bytes()
	out = bytes.ReplaceAll(out, []byte("\r\n"), []byte("\n"))
	return out, nil
}

func sortStrings(ss []string) {
	for i := 1; i < len(ss); i++ {
		for j := i; j > 0 && ss[j-1] > ss[j]; j-- {
			ss[j-1], ss[j] = ss[j], ss[j-1]
		}
	}
}
