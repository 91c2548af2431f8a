package segment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// Segment is a titled span of document text. StartPage <= EndPage, both
// 1-based and inclusive.
type Segment struct {
	Title     string `json:"-"`
	Body      string `json:"text"`
	StartPage int    `json:"start_page"`
	EndPage   int    `json:"end_page"`

	// Matched is the declared title the scanner matched. Title differs from
	// it for recurrence and part keys. Empty for tables read from JSON.
	Matched string `json:"-"`
}

// Table maps segment titles to segments in the order they were added.
// The zero value is an empty table ready to use. A nil *Table reads as
// empty.
type Table struct {
	keys []string
	m    map[string]Segment
}

// Len returns the number of segments.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.keys)
}

// Keys returns the titles in insertion order.
func (t *Table) Keys() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.keys...)
}

// Get returns the segment stored under title.
func (t *Table) Get(title string) (Segment, bool) {
	if t == nil {
		return Segment{}, false
	}
	s, ok := t.m[title]
	return s, ok
}

// Has reports whether title is a key.
func (t *Table) Has(title string) bool {
	if t == nil {
		return false
	}
	_, ok := t.m[title]
	return ok
}

// Set stores s under s.Title. A new key is appended; an existing key keeps
// its position.
func (t *Table) Set(s Segment) {
	if t.m == nil {
		t.m = make(map[string]Segment)
	}
	if _, ok := t.m[s.Title]; !ok {
		t.keys = append(t.keys, s.Title)
	}
	t.m[s.Title] = s
}

// Segments returns the segments in insertion order.
func (t *Table) Segments() []Segment {
	if t == nil {
		return nil
	}
	out := make([]Segment, 0, len(t.keys))
	for _, k := range t.keys {
		out = append(out, t.m[k])
	}
	return out
}

// MarshalJSON encodes the table as an object keyed by title, in insertion
// order: {"title": {"text": ..., "start_page": n, "end_page": n}}. A nil
// table encodes as {}.
//
// json.Marshal re-escapes <, > and & in the result; WriteTo does not.
func (t *Table) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	out := []byte{'{'}
	for i, k := range t.keys {
		if i > 0 {
			out = append(out, ',')
		}
		buf.Reset()
		if err := enc.Encode(k); err != nil {
			return nil, err
		}
		out = append(out, bytes.TrimRight(buf.Bytes(), "\n")...)
		out = append(out, ':')
		buf.Reset()
		if err := enc.Encode(t.m[k]); err != nil {
			return nil, err
		}
		out = append(out, bytes.TrimRight(buf.Bytes(), "\n")...)
	}
	return append(out, '}'), nil
}

// UnmarshalJSON decodes the object form written by MarshalJSON, keeping the
// key order of the input. A plain string value is read as a body with no
// page range.
func (t *Table) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("segment table: expected JSON object")
	}
	*t = Table{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("segment %q: %w", key, err)
		}
		var s Segment
		if len(raw) > 0 && raw[0] == '"' {
			if err := json.Unmarshal(raw, &s.Body); err != nil {
				return fmt.Errorf("segment %q: %w", key, err)
			}
		} else if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("segment %q: %w", key, err)
		}
		s.Title = key
		t.Set(s)
	}
	_, err = dec.Token()
	return err
}

// WriteTo writes the table as indented JSON.
func (t *Table) WriteTo(w io.Writer) (int64, error) {
	raw, err := t.MarshalJSON()
	if err != nil {
		return 0, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return 0, err
	}
	buf.WriteByte('\n')
	return buf.WriteTo(w)
}

// ReadTable decodes a table from r.
func ReadTable(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	t := &Table{}
	if err := t.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadTable reads a table from a JSON file.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return t, nil
}
