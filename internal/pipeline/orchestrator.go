package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/synthtune/internal/artifacts"
	"github.com/dgallion1/synthtune/internal/config"
)

var (
	// ErrQueueFull is returned by Submit when MAX_QUEUE_SIZE jobs are waiting.
	ErrQueueFull = errors.New("job queue is full")
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("pipeline is shutting down")
)

// Orchestrator runs dataset jobs on a fixed pool of workers fed by a
// bounded queue, and expires finished jobs after JOB_TTL.
type Orchestrator struct {
	jobs     *JobStore
	queue    chan *Job
	clients  *Clients
	store    artifacts.Store
	log      *slog.Logger
	cfg      config.Config
	settings Settings

	mu      sync.RWMutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator builds the pipeline; nothing runs until Start.
// A nil clients value limits every job to segmentation.
func NewOrchestrator(cfg config.Config, clients *Clients, store artifacts.Store, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		jobs:     NewJobStore(cfg.JobTTL),
		queue:    make(chan *Job, cfg.MaxQueueSize),
		clients:  clients,
		store:    store,
		log:      log,
		cfg:      cfg,
		settings: SettingsFromConfig(cfg),
	}
}

// Start launches WORKER_COUNT workers and the expiry loop.
func (o *Orchestrator) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for id := range max(o.cfg.WorkerCount, 1) {
		w := NewWorker(o.clients, o.store, o.settings, o.log.With("worker", id))
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.work(runCtx, w)
		}()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.expire(runCtx)
	}()
}

func (o *Orchestrator) work(ctx context.Context, w *Worker) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-o.queue:
			if !ok {
				return
			}
			w.Process(ctx, job)
		}
	}
}

func (o *Orchestrator) expire(ctx context.Context) {
	interval := min(o.cfg.JobTTL/4, 5*time.Minute)
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.jobs.Cleanup()
		}
	}
}

// Stop cancels running jobs, fails the ones still queued and waits for
// the workers to exit. Calling it twice is a no-op.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()

	for job := range o.queue {
		job.AddError("pipeline stopped before the job started")
		job.SetStatus(StatusFailed, "queued")
	}
}

// Submit registers the job and queues it without blocking.
func (o *Orchestrator) Submit(job *Job) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.stopped {
		return ErrStopped
	}

	o.jobs.Put(job)
	select {
	case o.queue <- job:
		o.log.Debug("job queued", "job_id", job.ID, "file", job.Filename, "queue_depth", len(o.queue))
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("%w (%d)", ErrQueueFull, o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID, or nil once it expired.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Settings returns the run settings derived from configuration.
func (o *Orchestrator) Settings() Settings {
	return o.settings
}

func (o *Orchestrator) Store() artifacts.Store {
	return o.store
}

// Clients returns the LLM clients, or nil when none are configured.
func (o *Orchestrator) Clients() *Clients {
	return o.clients
}
