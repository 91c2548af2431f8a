package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgallion1/synthtune/internal/artifacts"
	"github.com/dgallion1/synthtune/internal/config"
	"github.com/dgallion1/synthtune/internal/toc"
)

func newTestOrchestrator(t *testing.T, queue int) *Orchestrator {
	t.Helper()
	store, err := artifacts.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Config{
		WorkerCount:     1,
		MaxQueueSize:    queue,
		JobTTL:          time.Hour,
		MaxParagraphs:   10,
		MaxSegmentBytes: 4 << 20,
		TOCScanPages:    10,
	}
	return NewOrchestrator(cfg, nil, store, discardLogger())
}

func TestOrchestrator_RunsJobs(t *testing.T) {
	o := newTestOrchestrator(t, 4)
	o.Start(context.Background())
	defer o.Stop()

	h := &toc.Hierarchy{Sections: []toc.Section{{Title: "Open Door Policy"}}}
	job := NewJob("handbook.txt", []byte("Open Door Policy\n"+openDoor), h, JobOptions{})
	if err := o.Submit(job); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if o.GetJob(job.ID) != job {
		t.Fatal("expected the job to be registered")
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s := job.Snapshot().Status; s == StatusCompleted || s == StatusFailed {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if s := job.Snapshot().Status; s != StatusCompleted {
		t.Fatalf("expected completed, got %q (errors %v)", s, job.Snapshot().Progress.Errors)
	}
}

func TestOrchestrator_QueueFullAndStop(t *testing.T) {
	o := newTestOrchestrator(t, 1)

	first := NewJob("a.txt", []byte("a"), nil, JobOptions{})
	if err := o.Submit(first); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected queue depth 1, got %d", o.QueueDepth())
	}

	second := NewJob("b.txt", []byte("b"), nil, JobOptions{})
	if err := o.Submit(second); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if snap := second.Snapshot(); snap.Status != StatusFailed || snap.Phase != "queue_full" {
		t.Errorf("expected failed/queue_full, got %s/%s", snap.Status, snap.Phase)
	}

	o.Stop()
	o.Stop()
	if snap := first.Snapshot(); snap.Status != StatusFailed || len(snap.Progress.Errors) == 0 {
		t.Errorf("expected queued job to fail on stop, got %s %v", snap.Status, snap.Progress.Errors)
	}
	if err := o.Submit(NewJob("c.txt", []byte("c"), nil, JobOptions{})); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}
