package dataset

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrInvalidRecord is returned for QA lines missing a question or an answer.
var ErrInvalidRecord = errors.New("dataset: invalid record")

// Response is one generated answer with its checks.
type Response struct {
	Text       string             `json:"response"`
	Similarity float64            `json:"similarity_score"`
	Scores     map[string]float64 `json:"scores,omitempty"`
}

// Responses holds the paired answers to one question.
type Responses struct {
	A Response `json:"response_a"`
	B Response `json:"response_b"`
}

// Record is one line of qa_pairs.jsonl.
type Record struct {
	Segment   string    `json:"segment"`
	Question  string    `json:"question"`
	Responses Responses `json:"responses"`
}

// Best returns the answer with the higher similarity score; A wins ties.
func (r Record) Best() Response {
	if r.Responses.B.Similarity > r.Responses.A.Similarity {
		return r.Responses.B
	}
	return r.Responses.A
}

func (r Record) validate() error {
	switch {
	case strings.TrimSpace(r.Question) == "":
		return fmt.Errorf("%w: empty question", ErrInvalidRecord)
	case strings.TrimSpace(r.Responses.A.Text) == "" && strings.TrimSpace(r.Responses.B.Text) == "":
		return fmt.Errorf("%w: no responses", ErrInvalidRecord)
	}
	return nil
}

// AppendJSONL writes records to w, one JSON object per line.
func AppendJSONL(w io.Writer, records ...Record) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// ReadRecords decodes a QA JSONL stream. Blank lines are skipped.
func ReadRecords(r io.Reader) ([]Record, error) {
	var out []Record
	sc := newLineScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, &LineError{Line: line, Err: err}
		}
		if err := rec.validate(); err != nil {
			return nil, &LineError{Line: line, Err: err}
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// FilterByScore keeps records where either answer's reward score for key
// reaches threshold. Unscored answers count as 0.
func FilterByScore(records []Record, key string, threshold float64) []Record {
	var out []Record
	for _, r := range records {
		if r.Responses.A.Scores[key] >= threshold || r.Responses.B.Scores[key] >= threshold {
			out = append(out, r)
		}
	}
	return out
}

// LineError reports a problem on a 1-based line of a JSONL file.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

func newLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return sc
}
