package pipeline

import (
	"crypto/sha256"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/dgallion1/synthtune/internal/dataset"
	"github.com/dgallion1/synthtune/internal/diag"
	"github.com/dgallion1/synthtune/internal/qagen"
	"github.com/dgallion1/synthtune/internal/toc"
	"github.com/google/uuid"
)

// JobStatus represents the state of a dataset job.
type JobStatus string

const (
	StatusQueued       JobStatus = "queued"
	StatusParsing      JobStatus = "parsing"
	StatusResolvingTOC JobStatus = "resolving_toc"
	StatusSegmenting   JobStatus = "segmenting"
	StatusGenerating   JobStatus = "generating"
	StatusWriting      JobStatus = "writing"
	StatusCompleted    JobStatus = "completed"
	StatusFailed       JobStatus = "failed"
	StatusPartial      JobStatus = "partial"
)

// Artifact names, stored under "<job id>/".
const (
	ArtifactSegments = "segments.json"
	ArtifactQAPairs  = "qa_pairs.jsonl"
	ArtifactTrain    = "train.jsonl"
	ArtifactVal      = "val.jsonl"
	ArtifactTest     = "test.jsonl"
)

// JobOptions are per-job overrides of the configured settings.
type JobOptions struct {
	SegmentOnly bool // stop after writing segments.json
	Questions   int  // questions per prompt window; 0 keeps the default
}

// Job tracks the state of a single handbook run.
type Job struct {
	mu sync.Mutex

	ID       string     `json:"job_id"`
	Status   JobStatus  `json:"status"`
	Phase    string     `json:"phase"`
	Filename string     `json:"filename"`
	Title    string     `json:"title"`
	Options  JobOptions `json:"options"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData  []byte
	hierarchy *toc.Hierarchy
	artifacts map[string]string
	errors    []string
	warnings  []string
}

// Progress tracks processing progress.
type Progress struct {
	Pages           int      `json:"pages"`
	PagesSkipped    int      `json:"pages_skipped"`
	TOCSource       string   `json:"toc_source,omitempty"`
	Segments        int      `json:"segments"`
	SegmentsDone    int      `json:"segments_done"`
	Questions       int      `json:"questions"`
	PairsValid      int      `json:"pairs_valid"`
	PairsRejected   int      `json:"pairs_rejected"`
	TrainExamples   int      `json:"train_examples"`
	ValExamples     int      `json:"val_examples"`
	TestExamples    int      `json:"test_examples"`
	EstimatedTokens int      `json:"estimated_tokens"`
	EstimatedCost   float64  `json:"estimated_cost"`
	Errors          []string `json:"errors"`
	Warnings        []string `json:"warnings"`
}

// NewJob creates a queued job for an uploaded handbook. h may be nil when
// the table of contents should be resolved from the document itself.
func NewJob(filename string, data []byte, h *toc.Hierarchy, opts JobOptions) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Status:    StatusQueued,
		Phase:     "queued",
		Filename:  filename,
		Options:   opts,
		CreatedAt: now,
		UpdatedAt: now,
		fileData:  data,
		hierarchy: h,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// AddDiagnostics records data-quality events as warnings.
func (j *Job) AddDiagnostics(ds []diag.Diagnostic) {
	if len(ds) == 0 {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.warnings = append(j.warnings, diag.Strings(ds)...)
	j.Progress.Warnings = j.warnings
	j.UpdatedAt = time.Now()
}

// SetDocument records the parsed document's title and content hash.
func (j *Job) SetDocument(title, hash string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Title = title
	j.ContentHash = hash
	j.UpdatedAt = time.Now()
}

// SetPages records the page counts of the parsed document.
func (j *Job) SetPages(total, skipped int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Pages = total
	j.Progress.PagesSkipped = skipped
	j.UpdatedAt = time.Now()
}

// SetSegments records the resolved hierarchy source and segment count.
func (j *Job) SetSegments(source string, n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TOCSource = source
	j.Progress.Segments = n
	j.UpdatedAt = time.Now()
}

// AddGeneration folds one segment's generation outcome into the progress.
func (j *Job) AddGeneration(o qagen.Outcome) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.SegmentsDone += o.Segments
	j.Progress.Questions += o.Questions
	j.Progress.PairsValid += o.Valid
	j.Progress.PairsRejected += o.Rejected
	j.UpdatedAt = time.Now()
}

// SetSplits records the example counts of the written splits.
func (j *Job) SetSplits(s dataset.Splits, est dataset.Estimate) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TrainExamples = len(s.Train)
	j.Progress.ValExamples = len(s.Val)
	j.Progress.TestExamples = len(s.Test)
	j.Progress.EstimatedTokens = est.Tokens
	j.Progress.EstimatedCost = est.Cost
	j.UpdatedAt = time.Now()
}

// SetArtifact records where a named artifact was stored.
func (j *Job) SetArtifact(name, location string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.artifacts == nil {
		j.artifacts = make(map[string]string)
	}
	j.artifacts[name] = location
	j.UpdatedAt = time.Now()
}

// Artifact reports whether name was stored for this job.
func (j *Job) Artifact(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	loc, ok := j.artifacts[name]
	return loc, ok
}

// SetFileData sets the raw file bytes for processing.
func (j *Job) SetFileData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// Hierarchy returns the uploaded table of contents, if any.
func (j *Job) Hierarchy() *toc.Hierarchy {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.hierarchy
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string            `json:"job_id"`
	Status      JobStatus         `json:"status"`
	Phase       string            `json:"phase"`
	Filename    string            `json:"filename"`
	Title       string            `json:"title"`
	ContentHash string            `json:"content_hash,omitempty"`
	Progress    Progress          `json:"progress"`
	Artifacts   map[string]string `json:"artifacts"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	p := j.Progress
	p.Errors = append([]string{}, j.errors...)
	p.Warnings = append([]string{}, j.warnings...)
	arts := make(map[string]string, len(j.artifacts))
	maps.Copy(arts, j.artifacts)
	return JobSnapshot{
		ID:          j.ID,
		Status:      j.Status,
		Phase:       j.Phase,
		Filename:    j.Filename,
		Title:       j.Title,
		ContentHash: j.ContentHash,
		Progress:    p,
		Artifacts:   arts,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
