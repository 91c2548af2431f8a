package qagen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/dgallion1/synthtune/internal/chunker"
	"github.com/dgallion1/synthtune/internal/dataset"
	"github.com/dgallion1/synthtune/internal/llm"
	"github.com/dgallion1/synthtune/internal/segment"
	"golang.org/x/sync/errgroup"
)

// Config controls question/answer generation.
type Config struct {
	Questions   int     // questions asked per prompt window
	Threshold   float64 // minimum answer/source similarity; 0 uses DefaultThreshold
	Concurrency int     // segments generated in parallel
	Window      chunker.Config
}

func (c Config) withDefaults() Config {
	if c.Questions <= 0 {
		c.Questions = 5
	}
	if c.Threshold == 0 {
		c.Threshold = DefaultThreshold
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	return c
}

// Outcome counts what happened while generating.
type Outcome struct {
	Segments       int      `json:"segments"`
	FailedSegments int      `json:"failed_segments"`
	Questions      int      `json:"questions"`
	Valid          int      `json:"valid"`
	Rejected       int      `json:"rejected"`
	Errors         []string `json:"errors,omitempty"`
}

func (o *Outcome) add(p Outcome) {
	o.Segments += p.Segments
	o.FailedSegments += p.FailedSegments
	o.Questions += p.Questions
	o.Valid += p.Valid
	o.Rejected += p.Rejected
	o.Errors = append(o.Errors, p.Errors...)
}

// Generator turns segments into validated question/answer records.
type Generator struct {
	completer llm.Completer
	scorer    llm.Scorer
	cfg       Config
	log       *slog.Logger

	// OnSegment, if set, is called after each segment finishes.
	OnSegment func(title string, o Outcome)
}

// NewGenerator builds a generator. A nil scorer skips reward scoring.
func NewGenerator(c llm.Completer, scorer llm.Scorer, cfg Config, log *slog.Logger) *Generator {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Generator{
		completer: c,
		scorer:    scorer,
		cfg:       cfg.withDefaults(),
		log:       log,
	}
}

// GenerateSegment asks for questions about each prompt window of seg and
// two answers per question, keeping the pairs that pass ValidatePair.
// Failed calls are counted in the outcome; an error is returned only when
// ctx ends or no window produced questions.
func (g *Generator) GenerateSegment(ctx context.Context, seg segment.Segment) ([]dataset.Record, Outcome, error) {
	log := g.log.With("segment", seg.Title)
	out := Outcome{Segments: 1}
	var (
		records []dataset.Record
		lastErr error
	)

	windows := chunker.Windows(seg.Body, g.cfg.Window)
	for wi, window := range windows {
		reply, err := llm.CompleteWithRetry(ctx, g.completer, QuestionRequest(window, g.cfg.Questions), log)
		if err != nil {
			if ctx.Err() != nil {
				return nil, out, ctx.Err()
			}
			log.Error("question generation failed", "window", wi, "error", err)
			out.Errors = append(out.Errors, fmt.Sprintf("%s: questions: %s", seg.Title, err))
			lastErr = err
			continue
		}
		questions := ParseQuestions(reply, g.cfg.Questions)
		out.Questions += len(questions)
		log.Debug("questions generated", "window", wi, "count", len(questions))

		for _, q := range questions {
			rec, err := g.answer(ctx, seg.Title, q, window)
			switch {
			case err == nil:
				records = append(records, rec)
				out.Valid++
			case ctx.Err() != nil:
				return nil, out, ctx.Err()
			case isRejection(err):
				log.Debug("pair rejected", "question", q, "reason", err)
				out.Rejected++
			default:
				log.Warn("answer generation failed", "question", q, "error", err)
				out.Errors = append(out.Errors, fmt.Sprintf("%s: %q: %s", seg.Title, q, err))
			}
		}
	}

	if out.Questions == 0 && lastErr != nil {
		out.FailedSegments = 1
		return nil, out, fmt.Errorf("segment %q: %w", seg.Title, lastErr)
	}
	return records, out, nil
}

func (g *Generator) answer(ctx context.Context, title, question, source string) (dataset.Record, error) {
	reply, err := llm.CompleteWithRetry(ctx, g.completer, ResponseRequest(question, source), g.log)
	if err != nil {
		return dataset.Record{}, err
	}
	a, b, err := ParseResponses(reply)
	if err != nil {
		return dataset.Record{}, err
	}
	simA, simB := Similarity(a, source), Similarity(b, source)
	if err := ValidatePair(question, a, b, simA, simB, g.cfg.Threshold); err != nil {
		return dataset.Record{}, err
	}

	rec := dataset.Record{
		Segment:  title,
		Question: question,
		Responses: dataset.Responses{
			A: dataset.Response{Text: a, Similarity: simA},
			B: dataset.Response{Text: b, Similarity: simB},
		},
	}
	if g.scorer != nil {
		rec.Responses.A.Scores = g.score(ctx, question, a)
		rec.Responses.B.Scores = g.score(ctx, question, b)
	}
	return rec, nil
}

// score returns nil when the reward model fails; the pair is kept unscored.
func (g *Generator) score(ctx context.Context, question, answer string) map[string]float64 {
	scores, err := g.scorer.Score(ctx, question, answer)
	if err != nil {
		g.log.Warn("scoring failed", "question", question, "error", err)
		return nil
	}
	return scores
}

func isRejection(err error) bool {
	for _, target := range []error{ErrQuestionLength, ErrAnswerLength, ErrInjection, ErrLowSimilarity, ErrMissingResponseB, ErrEmptyResponse} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// GenerateAll runs GenerateSegment over segs with bounded concurrency.
// Records reach sink (which may be nil) in segment order: a segment's
// records are passed on once it and every earlier segment have finished.
// The returned records are in the same order. A failing segment is
// recorded in the outcome and does not stop the others. A sink error or a
// cancelled ctx does.
func (g *Generator) GenerateAll(ctx context.Context, segs []segment.Segment, sink func(dataset.Record) error) ([]dataset.Record, Outcome, error) {
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Concurrency)

	var (
		mu    sync.Mutex
		total Outcome
		bySeg = make([][]dataset.Record, len(segs))
		done  = make([]bool, len(segs))
		next  int // first segment not yet flushed to sink
	)
	flush := func() error {
		for next < len(segs) && done[next] {
			if sink != nil {
				for _, r := range bySeg[next] {
					if err := sink(r); err != nil {
						return fmt.Errorf("write record: %w", err)
					}
				}
			}
			next++
		}
		return nil
	}
	for i, seg := range segs {
		eg.Go(func() error {
			recs, out, err := g.GenerateSegment(gctx, seg)

			mu.Lock()
			defer mu.Unlock()
			total.add(out)
			if g.OnSegment != nil {
				g.OnSegment(seg.Title, out)
			}
			if err != nil {
				if cerr := gctx.Err(); cerr != nil {
					return cerr
				}
				recs = nil
			}
			bySeg[i], done[i] = recs, true
			return flush()
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, total, err
	}

	var all []dataset.Record
	for _, recs := range bySeg {
		all = append(all, recs...)
	}
	return all, total, nil
}
