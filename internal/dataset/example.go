package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
)

// Example is one prompt/completion fine-tuning line.
type Example struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
}

// ToExample renders a record with its best answer. The completion keeps
// the leading space fine-tuning endpoints expect.
func ToExample(r Record) Example {
	return Example{
		Prompt:     fmt.Sprintf("Segment: %s\nQuestion: %s", r.Segment, r.Question),
		Completion: " " + strings.TrimSpace(r.Best().Text),
	}
}

// ToExamples converts records in order.
func ToExamples(records []Record) []Example {
	out := make([]Example, 0, len(records))
	for _, r := range records {
		out = append(out, ToExample(r))
	}
	return out
}

// WriteJSONL writes examples one per line.
func WriteJSONL(w io.Writer, examples []Example) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, e := range examples {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

// ValidateJSONL checks that every line is a JSON object with string
// "prompt" and "completion" fields. It returns the number of valid lines,
// stopping at the first bad one with a *LineError.
func ValidateJSONL(r io.Reader) (int, error) {
	sc := newLineScanner(r)
	n := 0
	for sc.Scan() {
		line := n + 1
		var entry map[string]json.RawMessage
		if err := json.Unmarshal([]byte(strings.TrimSpace(sc.Text())), &entry); err != nil {
			return n, &LineError{Line: line, Err: fmt.Errorf("json decoding error: %w", err)}
		}
		for _, key := range []string{"prompt", "completion"} {
			raw, ok := entry[key]
			if !ok {
				return n, &LineError{Line: line, Err: errors.New("missing 'prompt' or 'completion'")}
			}
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return n, &LineError{Line: line, Err: fmt.Errorf("'%s' is not a string", key)}
			}
		}
		n++
	}
	return n, sc.Err()
}

// Ratios sets the train and validation shares; test takes the rest.
type Ratios struct {
	Train float64
	Val   float64
}

// DefaultRatios is an 80/10/10 split.
var DefaultRatios = Ratios{Train: 0.8, Val: 0.1}

func (r Ratios) Validate() error {
	if r.Train < 0 || r.Val < 0 || r.Train+r.Val > 1 {
		return fmt.Errorf("invalid split ratios train=%g val=%g", r.Train, r.Val)
	}
	return nil
}

// Splits is a train/validation/test partition.
type Splits struct {
	Train []Example
	Val   []Example
	Test  []Example
}

// Split shuffles a copy of examples with seed and cuts it by ratios. The
// same seed always yields the same partition.
func Split(examples []Example, ratios Ratios, seed uint64) (Splits, error) {
	if err := ratios.Validate(); err != nil {
		return Splits{}, err
	}
	data := make([]Example, len(examples))
	copy(data, examples)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rng.Shuffle(len(data), func(i, j int) { data[i], data[j] = data[j], data[i] })

	trainN := int(float64(len(data)) * ratios.Train)
	valN := int(float64(len(data)) * ratios.Val)
	return Splits{
		Train: data[:trainN],
		Val:   data[trainN : trainN+valN],
		Test:  data[trainN+valN:],
	}, nil
}
