package pipeline

import (
	"testing"
	"time"

	"github.com/dgallion1/synthtune/internal/dataset"
	"github.com/dgallion1/synthtune/internal/diag"
	"github.com/dgallion1/synthtune/internal/qagen"
	"github.com/dgallion1/synthtune/internal/toc"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	// SHA-256 of "hello world" is well-known.
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestContentHashHex_DifferentInputs(t *testing.T) {
	h1 := ContentHashHex([]byte("aaa"))
	h2 := ContentHashHex([]byte("bbb"))
	if h1 == h2 {
		t.Error("expected different hashes for different inputs")
	}
}

func TestContentHashHex_EmptyInput(t *testing.T) {
	h := ContentHashHex([]byte{})
	// SHA-256 of empty input is well-known.
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if h != want {
		t.Errorf("expected hash %q, got %q", want, h)
	}
}

func TestNewJob(t *testing.T) {
	h := &toc.Hierarchy{Sections: []toc.Section{{Title: "Leave Policy"}}}
	job := NewJob("handbook.pdf", []byte("%PDF"), h, JobOptions{SegmentOnly: true})
	if job.ID == "" {
		t.Fatal("expected a job ID")
	}
	if job.Status != StatusQueued {
		t.Errorf("expected status %q, got %q", StatusQueued, job.Status)
	}
	if job.Hierarchy() != h {
		t.Error("expected uploaded hierarchy to be kept")
	}
	if other := NewJob("handbook.pdf", nil, nil, JobOptions{}); other.ID == job.ID {
		t.Error("expected unique job IDs")
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := &Job{
		ID:        "test-1",
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusParsing, "parsing"},
		{StatusResolvingTOC, "resolving_toc"},
		{StatusSegmenting, "segmenting"},
		{StatusGenerating, "generating"},
		{StatusWriting, "writing"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJob_SetStatusFailed(t *testing.T) {
	job := &Job{
		ID:        "test-fail",
		Status:    StatusGenerating,
		UpdatedAt: time.Now(),
	}
	job.SetStatus(StatusFailed, "generating")
	if job.Status != StatusFailed {
		t.Errorf("expected status %q, got %q", StatusFailed, job.Status)
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("segment 3 failed")
	job.AddError("segment 7 failed")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "segment 3 failed" {
		t.Errorf("expected first error %q, got %q", "segment 3 failed", snap.Progress.Errors[0])
	}
}

func TestJob_AddDiagnostics(t *testing.T) {
	job := &Job{ID: "diag-test", UpdatedAt: time.Now()}
	job.AddDiagnostics(nil)
	job.AddDiagnostics([]diag.Diagnostic{{Kind: diag.PageExtractionGap, Page: 4, Message: "page has no extractable text"}})

	snap := job.Snapshot()
	if len(snap.Progress.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(snap.Progress.Warnings))
	}
	if want := "page_extraction_gap: page 4: page has no extractable text"; snap.Progress.Warnings[0] != want {
		t.Errorf("expected %q, got %q", want, snap.Progress.Warnings[0])
	}
}

func TestJob_AddGeneration(t *testing.T) {
	job := &Job{ID: "gen-test", UpdatedAt: time.Now()}
	job.AddGeneration(qagen.Outcome{Segments: 1, Questions: 5, Valid: 4, Rejected: 1})
	job.AddGeneration(qagen.Outcome{Segments: 1, Questions: 3, Valid: 3})

	snap := job.Snapshot()
	if snap.Progress.SegmentsDone != 2 {
		t.Errorf("expected 2 segments done, got %d", snap.Progress.SegmentsDone)
	}
	if snap.Progress.PairsValid != 7 {
		t.Errorf("expected 7 valid pairs, got %d", snap.Progress.PairsValid)
	}
	if snap.Progress.PairsRejected != 1 {
		t.Errorf("expected 1 rejected pair, got %d", snap.Progress.PairsRejected)
	}
}

func TestJob_SetSplits(t *testing.T) {
	job := &Job{ID: "split-test", UpdatedAt: time.Now()}
	splits := dataset.Splits{Train: make([]dataset.Example, 8), Val: make([]dataset.Example, 1), Test: make([]dataset.Example, 1)}
	job.SetSplits(splits, dataset.Estimate{Tokens: 120, Cost: 0.012})

	snap := job.Snapshot()
	if snap.Progress.TrainExamples != 8 || snap.Progress.ValExamples != 1 || snap.Progress.TestExamples != 1 {
		t.Errorf("expected 8/1/1 examples, got %+v", snap.Progress)
	}
	if snap.Progress.EstimatedTokens != 120 {
		t.Errorf("expected 120 estimated tokens, got %d", snap.Progress.EstimatedTokens)
	}
}

func TestJob_Artifacts(t *testing.T) {
	job := &Job{ID: "art-test", UpdatedAt: time.Now()}
	if _, ok := job.Artifact(ArtifactSegments); ok {
		t.Fatal("expected no artifact before SetArtifact")
	}
	job.SetArtifact(ArtifactSegments, "/tmp/art-test/segments.json")

	loc, ok := job.Artifact(ArtifactSegments)
	if !ok || loc != "/tmp/art-test/segments.json" {
		t.Errorf("expected stored location, got %q, %v", loc, ok)
	}
	snap := job.Snapshot()
	snap.Artifacts["other"] = "x"
	if _, ok := job.Artifact("other"); ok {
		t.Error("expected snapshot artifacts to be a copy")
	}
}

func TestJob_FileData(t *testing.T) {
	job := &Job{ID: "data-test"}
	data := []byte("file content here")
	job.SetFileData(data)
	got := job.FileData()
	if string(got) != string(data) {
		t.Errorf("expected file data %q, got %q", data, got)
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	// Snapshot should always return non-nil errors slice.
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Progress.Errors == nil {
		t.Error("expected non-nil errors slice in snapshot")
	}
	if len(snap.Progress.Errors) != 0 {
		t.Errorf("expected empty errors, got %d", len(snap.Progress.Errors))
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
}

func TestJobStore_GetMissing(t *testing.T) {
	store := NewJobStore(time.Hour)
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := &Job{ID: "old", UpdatedAt: time.Now()}
	store.Put(expired)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	// Add a fresh job.
	fresh := &Job{ID: "new", UpdatedAt: time.Now()}
	store.Put(fresh)

	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}

func TestJobStore_CleanupEmpty(t *testing.T) {
	store := NewJobStore(time.Hour)
	// Should not panic on empty store.
	store.Cleanup()
}
