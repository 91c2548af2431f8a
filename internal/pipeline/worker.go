package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/synthtune/internal/artifacts"
	"github.com/dgallion1/synthtune/internal/dataset"
	"github.com/dgallion1/synthtune/internal/llm"
	"github.com/dgallion1/synthtune/internal/parser"
	"github.com/dgallion1/synthtune/internal/qagen"
)

// Worker processes a single handbook job.
type Worker struct {
	clients  *Clients
	store    artifacts.Store
	settings Settings
	log      *slog.Logger
}

// NewWorker builds a worker. With nil clients, jobs stop after
// segmentation and the table of contents is never extracted by an LLM.
func NewWorker(clients *Clients, store artifacts.Store, settings Settings, log *slog.Logger) *Worker {
	return &Worker{
		clients:  clients,
		store:    store,
		settings: settings,
		log:      log,
	}
}

// Process runs the full pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFile(job.Filename, w.settings.Parser)
	if err != nil {
		w.fail(job, log, "parsing", err)
		return
	}
	doc, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		w.fail(job, log, "parsing", fmt.Errorf("parse: %w", err))
		return
	}
	job.SetDocument(doc.Title, ContentHashHex([]byte(doc.Text())))
	job.SetPages(len(doc.Pages), 0)
	if len(doc.Pages) == 0 || len(doc.EmptyPages()) == len(doc.Pages) {
		w.fail(job, log, "parsing", fmt.Errorf("no extractable content"))
		return
	}
	log.Info("parsed document", "pages", len(doc.Pages), "headings", len(doc.Headings))

	// Phase 2: Resolve the table of contents
	job.SetStatus(StatusResolvingTOC, "resolving_toc")
	var tocLLM llm.Completer
	if w.clients != nil {
		tocLLM = w.clients.TOC
	}
	res, err := ResolveHierarchy(ctx, doc, job.Hierarchy(), tocLLM, w.settings.TOCScanPages, log)
	if err != nil {
		w.fail(job, log, "resolving_toc", err)
		return
	}
	job.AddDiagnostics(res.Diagnostics)
	log.Info("resolved hierarchy", "source", res.Source, "titles", res.Hierarchy.Len(), "toc_pages", res.SkipPages)

	// Phase 3: Segment
	job.SetStatus(StatusSegmenting, "segmenting")
	result, err := SegmentDocument(ctx, doc, &res, w.settings, log)
	if err != nil {
		w.fail(job, log, "segmenting", err)
		return
	}
	job.SetPages(len(doc.Pages), result.PagesSkipped)
	job.AddDiagnostics(result.Diagnostics)
	job.SetSegments(res.Source, result.Table.Len())
	log.Info("segmented document", "segments", result.Table.Len(), "diagnostics", len(result.Diagnostics))
	if result.Table.Len() == 0 {
		w.fail(job, log, "segmenting", fmt.Errorf("no segments matched the table of contents"))
		return
	}

	segJSON, err := result.Table.MarshalJSON()
	if err != nil {
		w.fail(job, log, "segmenting", err)
		return
	}
	if err := w.put(ctx, job, ArtifactSegments, "application/json", segJSON); err != nil {
		w.fail(job, log, "segmenting", err)
		return
	}
	if job.Options.SegmentOnly || w.clients == nil {
		job.SetStatus(StatusCompleted, "done")
		return
	}

	// Phase 4: Generate question/answer pairs
	job.SetStatus(StatusGenerating, "generating")
	genCfg := w.settings.Generate
	if job.Options.Questions > 0 {
		genCfg.Questions = job.Options.Questions
	}
	gen := qagen.NewGenerator(w.clients.Generator, w.clients.Scorer, genCfg, log)
	gen.OnSegment = func(_ string, o qagen.Outcome) { job.AddGeneration(o) }

	var qa bytes.Buffer
	records, outcome, err := gen.GenerateAll(ctx, result.Table.Segments(), func(r dataset.Record) error {
		return dataset.AppendJSONL(&qa, r)
	})
	if err != nil {
		w.fail(job, log, "generating", err)
		return
	}
	for _, e := range outcome.Errors {
		job.AddError(e)
	}
	hadErrors := len(outcome.Errors) > 0
	log.Info("generation complete", "questions", outcome.Questions, "valid", outcome.Valid, "rejected", outcome.Rejected, "errors", len(outcome.Errors))

	if err := w.put(ctx, job, ArtifactQAPairs, "application/x-ndjson", qa.Bytes()); err != nil {
		w.fail(job, log, "generating", err)
		return
	}
	if len(records) == 0 {
		w.fail(job, log, "generating", fmt.Errorf("no question/answer pair passed validation"))
		return
	}

	// Phase 5: Split and write the dataset
	job.SetStatus(StatusWriting, "writing")
	splits, err := dataset.Split(dataset.ToExamples(records), w.settings.Ratios, w.settings.Seed)
	if err != nil {
		w.fail(job, log, "writing", err)
		return
	}
	parts := []struct {
		name     string
		examples []dataset.Example
	}{
		{ArtifactTrain, splits.Train},
		{ArtifactVal, splits.Val},
		{ArtifactTest, splits.Test},
	}
	written := make(map[string][]byte, len(parts))
	for _, part := range parts {
		var buf bytes.Buffer
		if err := dataset.WriteJSONL(&buf, part.examples); err != nil {
			w.fail(job, log, "writing", err)
			return
		}
		if _, err := dataset.ValidateJSONL(bytes.NewReader(buf.Bytes())); err != nil {
			job.AddError(fmt.Sprintf("%s: %s", part.name, err))
			hadErrors = true
		}
		if err := w.put(ctx, job, part.name, "application/x-ndjson", buf.Bytes()); err != nil {
			w.fail(job, log, "writing", err)
			return
		}
		written[part.name] = buf.Bytes()
	}

	est, err := dataset.EstimateCost(w.settings.PricePerToken,
		bytes.NewReader(written[ArtifactTrain]), bytes.NewReader(written[ArtifactVal]))
	if err != nil {
		log.Warn("cost estimate failed", "error", err)
	}
	job.SetSplits(splits, est)
	log.Info("dataset written", "train", len(splits.Train), "val", len(splits.Val), "test", len(splits.Test), "estimated_cost", est.Cost)

	if hadErrors {
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
}

// put stores an artifact under "<job id>/<name>" and records its location.
func (w *Worker) put(ctx context.Context, job *Job, name, contentType string, data []byte) error {
	loc, err := w.store.Put(ctx, job.ID+"/"+name, contentType, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("store %s: %w", name, err)
	}
	job.SetArtifact(name, loc)
	return nil
}

func (w *Worker) fail(job *Job, log *slog.Logger, phase string, err error) {
	log.Error("job failed", "phase", phase, "error", err)
	job.AddError(err.Error())
	job.SetStatus(StatusFailed, phase)
}
