package segment

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTable_MarshalPreservesInsertionOrder(t *testing.T) {
	tbl := &Table{}
	tbl.Set(Segment{Title: "Zeta", Body: "z", StartPage: 1, EndPage: 1})
	tbl.Set(Segment{Title: "Pay & Benefits", Body: "<b>pay</b>", StartPage: 2, EndPage: 3})
	tbl.Set(Segment{Title: "Alpha", Body: "a", StartPage: 3, EndPage: 3})

	raw, err := tbl.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	want := `{"Zeta":{"text":"z","start_page":1,"end_page":1},"Pay & Benefits":{"text":"<b>pay</b>","start_page":2,"end_page":3},"Alpha":{"text":"a","start_page":3,"end_page":3}}`
	if string(raw) != want {
		t.Errorf("expected %s, got %s", want, raw)
	}

	// json.Marshal keeps the order but escapes HTML characters.
	escaped, err := json.Marshal(tbl)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.HasPrefix(string(escaped), `{"Zeta":`) || !strings.Contains(string(escaped), `"Pay \u0026 Benefits"`) {
		t.Errorf("unexpected json.Marshal output %s", escaped)
	}
}

func TestTable_WriteToDoesNotEscapeHTML(t *testing.T) {
	tbl := &Table{}
	tbl.Set(Segment{Title: "Pay & Benefits", Body: "<b>pay</b>", StartPage: 1, EndPage: 1})

	var buf bytes.Buffer
	if _, err := tbl.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if !strings.Contains(buf.String(), `"Pay & Benefits"`) || !strings.Contains(buf.String(), `"<b>pay</b>"`) {
		t.Errorf("expected unescaped output, got %s", buf.String())
	}
}

func TestTable_NilReadsAsEmpty(t *testing.T) {
	var tbl *Table
	raw, err := tbl.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(raw) != "{}" {
		t.Errorf("expected {}, got %s", raw)
	}
	if tbl.Len() != 0 || tbl.Has("x") || len(tbl.Keys()) != 0 || len(tbl.Segments()) != 0 {
		t.Error("expected a nil table to read as empty")
	}
	if _, ok := tbl.Get("x"); ok {
		t.Error("expected Get on a nil table to miss")
	}
}

func TestTable_SetKeepsPosition(t *testing.T) {
	tbl := &Table{}
	tbl.Set(Segment{Title: "A", Body: "1"})
	tbl.Set(Segment{Title: "B", Body: "2"})
	tbl.Set(Segment{Title: "A", Body: "3"})

	if got := strings.Join(tbl.Keys(), ","); got != "A,B" {
		t.Errorf("expected A,B, got %s", got)
	}
	if s, _ := tbl.Get("A"); s.Body != "3" {
		t.Errorf("expected replaced body, got %q", s.Body)
	}
}

func TestTable_UnmarshalKeepsOrder(t *testing.T) {
	in := `{"Zeta": {"text": "z", "start_page": 4, "end_page": 5}, "Alpha": {"text": "a", "start_page": 1, "end_page": 1}}`
	var tbl Table
	if err := json.Unmarshal([]byte(in), &tbl); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got := strings.Join(tbl.Keys(), ","); got != "Zeta,Alpha" {
		t.Errorf("expected Zeta,Alpha, got %s", got)
	}
	s, _ := tbl.Get("Zeta")
	if s.Title != "Zeta" || s.Body != "z" || s.StartPage != 4 || s.EndPage != 5 {
		t.Errorf("unexpected segment %+v", s)
	}
}

func TestTable_UnmarshalPlainStringValues(t *testing.T) {
	var tbl Table
	if err := json.Unmarshal([]byte(`{"Leave": "Take time off."}`), &tbl); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	s, ok := tbl.Get("Leave")
	if !ok || s.Body != "Take time off." {
		t.Errorf("expected plain string body, got %+v", s)
	}
}

func TestTable_UnmarshalRejectsNonObject(t *testing.T) {
	var tbl Table
	if err := json.Unmarshal([]byte(`["a"]`), &tbl); err == nil {
		t.Error("expected error for JSON array")
	}
	if err := json.Unmarshal([]byte(`{"a": 3}`), &tbl); err == nil {
		t.Error("expected error for numeric value")
	}
}

func TestTable_WriteAndLoad(t *testing.T) {
	tbl := &Table{}
	tbl.Set(Segment{Title: "Open Door Policy", Body: "We value honesty.\n\nMore text.", StartPage: 2, EndPage: 2})
	tbl.Set(Segment{Title: "Benefits", Body: "b", StartPage: 3, EndPage: 4})

	var buf bytes.Buffer
	if _, err := tbl.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	path := filepath.Join(t.TempDir(), "segments.json")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if strings.Join(got.Keys(), ",") != "Open Door Policy,Benefits" {
		t.Errorf("unexpected keys %v", got.Keys())
	}
	s, _ := got.Get("Open Door Policy")
	if s.Body != "We value honesty.\n\nMore text." {
		t.Errorf("unexpected body %q", s.Body)
	}
}
