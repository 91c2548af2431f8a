package toc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/dgallion1/synthtune/internal/diag"
	"gopkg.in/yaml.v3"
)

// Format selects the encoding of a hierarchy file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks a format from a filename extension, defaulting to JSON.
func FormatFor(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// LoadFile reads a hierarchy from a JSON or YAML file.
func LoadFile(path string) (*Hierarchy, []diag.Diagnostic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read toc: %w", err)
	}
	return Parse(data, FormatFor(path))
}

// Load reads a hierarchy from r.
func Load(r io.Reader, format Format) (*Hierarchy, []diag.Diagnostic, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read toc: %w", err)
	}
	return Parse(data, format)
}

// Parse decodes a hierarchy, preserving key order. Accepted shapes:
//
//	{"Section": {"Sub": "3", "Other Sub": 4}, "Leaf": "9"}
//	{"Table of Contents": {...}}
//	{"Section": ["Sub", "Other Sub"], "Empty": {}}
//
// Entries of any other shape are skipped and reported.
func Parse(data []byte, format Format) (*Hierarchy, []diag.Diagnostic, error) {
	var root *node
	var err error
	switch format {
	case FormatYAML:
		root, err = decodeYAML(data)
	default:
		root, err = decodeJSON(data)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("decode %s toc: %w", format, err)
	}
	if root == nil || root.kind != kindObject {
		return nil, nil, fmt.Errorf("decode %s toc: top level must be a mapping", format)
	}

	raw, diags := build(unwrap(root))
	h, cleanDiags := Clean(raw)
	diags = append(diags, cleanDiags...)
	if h.Len() == 0 {
		return h, diags, ErrEmptyHierarchy
	}
	return h, diags, nil
}

type nodeKind int

const (
	kindOther nodeKind = iota
	kindObject
	kindArray
	kindString
	kindNumber
)

// node is an order-preserving decoded value.
type node struct {
	kind  nodeKind
	keys  []string
	vals  []*node
	items []*node
	str   string
}

func (n *node) get(key string) *node {
	for i, k := range n.keys {
		if strings.EqualFold(strings.TrimSpace(k), key) {
			return n.vals[i]
		}
	}
	return nil
}

func decodeJSON(data []byte) (*node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	n, err := readJSON(dec)
	if err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after top-level value")
	}
	return n, nil
}

func readJSON(dec *json.Decoder) (*node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			n := &node{kind: kindObject}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, _ := kt.(string)
				v, err := readJSON(dec)
				if err != nil {
					return nil, err
				}
				n.keys = append(n.keys, key)
				n.vals = append(n.vals, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		case '[':
			n := &node{kind: kindArray}
			for dec.More() {
				v, err := readJSON(dec)
				if err != nil {
					return nil, err
				}
				n.items = append(n.items, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		}
	case string:
		return &node{kind: kindString, str: t}, nil
	case json.Number:
		return &node{kind: kindNumber, str: t.String()}, nil
	}
	return &node{kind: kindOther}, nil
}

func decodeYAML(data []byte) (*node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return fromYAML(&doc), nil
}

func fromYAML(y *yaml.Node) *node {
	switch y.Kind {
	case yaml.DocumentNode:
		if len(y.Content) == 0 {
			return nil
		}
		return fromYAML(y.Content[0])
	case yaml.AliasNode:
		return fromYAML(y.Alias)
	case yaml.MappingNode:
		n := &node{kind: kindObject}
		for i := 0; i+1 < len(y.Content); i += 2 {
			n.keys = append(n.keys, y.Content[i].Value)
			n.vals = append(n.vals, fromYAML(y.Content[i+1]))
		}
		return n
	case yaml.SequenceNode:
		n := &node{kind: kindArray}
		for _, c := range y.Content {
			n.items = append(n.items, fromYAML(c))
		}
		return n
	case yaml.ScalarNode:
		switch y.ShortTag() {
		case "!!int", "!!float":
			return &node{kind: kindNumber, str: y.Value}
		case "!!str":
			return &node{kind: kindString, str: y.Value}
		}
	}
	return &node{kind: kindOther}
}

var wrapperKeys = []string{"table of contents", "toc", "contents"}

// unwrap descends into a "Table of Contents" style wrapper, including the
// {"document_type": ..., "toc": {...}} shape returned by structure prompts.
func unwrap(root *node) *node {
	for _, key := range wrapperKeys {
		inner := root.get(key)
		if inner == nil || inner.kind != kindObject {
			continue
		}
		if len(root.keys) == 1 || root.get("document_type") != nil || root.get("structure") != nil {
			return unwrap(inner)
		}
	}
	return root
}

func build(root *node) (*Hierarchy, []diag.Diagnostic) {
	var diags []diag.Diagnostic
	h := &Hierarchy{}
	for i, key := range root.keys {
		v := root.vals[i]
		title := strings.TrimSpace(key)
		switch v.kind {
		case kindString, kindNumber:
			hint, ok := parseHint(v)
			if !ok {
				diags = append(diags, malformed(title, fmt.Sprintf("page hint %q is not a number", v.str)))
			}
			h.Sections = append(h.Sections, Section{Title: title, PageHint: hint})
		case kindObject:
			s := Section{Title: title}
			if p := v.get("page"); p != nil && len(v.keys) == 1 {
				// {"Section": {"page": 4}} is a leaf with a hint, not a subsection named "page".
				s.PageHint, _ = parseHint(p)
			} else {
				s.Subsections = entries(title, v, &diags)
			}
			h.Sections = append(h.Sections, s)
		case kindArray:
			h.Sections = append(h.Sections, Section{Title: title, Subsections: arrayEntries(title, v, &diags)})
		default:
			diags = append(diags, malformed(title, "section value must be a page number or mapping"))
		}
	}
	return h, diags
}

// entries flattens a subsection mapping. Deeper levels are appended after
// their parent so every title stays matchable.
func entries(section string, obj *node, diags *[]diag.Diagnostic) []Entry {
	var out []Entry
	for i, key := range obj.keys {
		v := obj.vals[i]
		title := strings.TrimSpace(key)
		switch v.kind {
		case kindString, kindNumber:
			hint, ok := parseHint(v)
			if !ok {
				*diags = append(*diags, malformed(title, fmt.Sprintf("page hint %q is not a number", v.str)))
			}
			out = append(out, Entry{Title: title, PageHint: hint})
		case kindObject:
			out = append(out, Entry{Title: title})
			out = append(out, entries(section, v, diags)...)
		case kindArray:
			out = append(out, Entry{Title: title})
			out = append(out, arrayEntries(title, v, diags)...)
		default:
			*diags = append(*diags, malformed(title, fmt.Sprintf("subsection of %q must be a page number or mapping", section)))
		}
	}
	return out
}

func arrayEntries(section string, arr *node, diags *[]diag.Diagnostic) []Entry {
	var out []Entry
	for _, item := range arr.items {
		switch item.kind {
		case kindString:
			out = append(out, Entry{Title: strings.TrimSpace(item.str)})
		case kindObject:
			// [{"title": "Sub", "page": 3}]
			t := item.get("title")
			if t == nil {
				t = item.get("name")
			}
			if t == nil || t.kind != kindString {
				*diags = append(*diags, malformed(section, "list item without a title"))
				continue
			}
			e := Entry{Title: strings.TrimSpace(t.str)}
			if p := item.get("page"); p != nil {
				e.PageHint, _ = parseHint(p)
			}
			out = append(out, e)
		default:
			*diags = append(*diags, malformed(section, "list items must be titles"))
		}
	}
	return out
}

var digitsRe = regexp.MustCompile(`\d+`)

// parseHint reads "12", 12, "p. 12" or "12-14". Empty strings are a valid
// absent hint.
func parseHint(n *node) (int, bool) {
	s := strings.TrimSpace(n.str)
	if s == "" {
		return 0, true
	}
	m := digitsRe.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return v, true
}
