package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/synthtune/internal/artifacts"
	"github.com/dgallion1/synthtune/internal/parser"
	"github.com/dgallion1/synthtune/internal/pipeline"
	"github.com/dgallion1/synthtune/internal/toc"
	"github.com/go-chi/chi/v5"
)

var artifactTypes = map[string]string{
	pipeline.ArtifactSegments: "application/json",
	pipeline.ArtifactQAPairs:  "application/x-ndjson",
	pipeline.ArtifactTrain:    "application/x-ndjson",
	pipeline.ArtifactVal:      "application/x-ndjson",
	pipeline.ArtifactTest:     "application/x-ndjson",
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := s.readUpload(file)
	if err != nil {
		uploadError(w, err)
		return
	}

	h, err := formHierarchy(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	opts, err := jobOptions(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := pipeline.NewJob(filename, data, h, opts)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/jobs/%s/status", job.ID),
	})
}

func (s *Server) handleBatchJobs(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}
	opts, err := jobOptions(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var results []map[string]any
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		if !parser.IsSupportedExtension(filename) {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)),
			})
			continue
		}

		f, err := fh.Open()
		if err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    "failed to open file",
			})
			continue
		}
		data, err := s.readUpload(f)
		f.Close()
		if err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    err.Error(),
			})
			continue
		}

		job := pipeline.NewJob(filename, data, nil, opts)
		if err := s.orchestrator.Submit(job); err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    err.Error(),
			})
			continue
		}

		results = append(results, map[string]any{
			"filename": filename,
			"job_id":   job.ID,
			"status":   pipeline.StatusQueued,
			"poll_url": fmt.Sprintf("/api/jobs/%s/status", job.ID),
		})
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": results})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	name := chi.URLParam(r, "name")

	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	contentType, known := artifactTypes[name]
	if !known {
		jsonError(w, "unknown artifact: "+name, http.StatusNotFound)
		return
	}
	if _, ok := job.Artifact(name); !ok {
		jsonError(w, "artifact not ready: "+name, http.StatusNotFound)
		return
	}

	rc, err := s.orchestrator.Store().Open(r.Context(), path.Join(job.ID, name))
	if errors.Is(err, artifacts.ErrNotFound) {
		jsonError(w, "artifact not found: "+name, http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("open artifact failed", "job_id", jobID, "artifact", name, "error", err)
		jsonError(w, "failed to open artifact", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if _, err := io.Copy(w, rc); err != nil {
		s.log.Warn("artifact download interrupted", "job_id", jobID, "artifact", name, "error", err)
	}
}

var errTooLarge = errors.New("file exceeds max size")

// readUpload reads at most MaxUploadBytes from f.
func (s *Server) readUpload(f multipart.File) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%w (%d bytes)", errTooLarge, s.cfg.MaxUploadBytes)
	}
	return data, nil
}

func uploadError(w http.ResponseWriter, err error) {
	if errors.Is(err, errTooLarge) {
		jsonError(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	jsonError(w, err.Error(), http.StatusInternalServerError)
}

// formHierarchy reads an optional table of contents from a "toc" file
// part or a "toc" form value. It returns nil when neither is present.
func formHierarchy(r *http.Request) (*toc.Hierarchy, error) {
	var (
		data   []byte
		format = toc.FormatJSON
	)
	if f, header, err := r.FormFile("toc"); err == nil {
		defer f.Close()
		data, err = io.ReadAll(io.LimitReader(f, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("read toc: %w", err)
		}
		format = toc.FormatFor(header.Filename)
	} else if v := strings.TrimSpace(r.FormValue("toc")); v != "" {
		data = []byte(v)
		if !strings.HasPrefix(v, "{") {
			format = toc.FormatYAML
		}
	}
	if len(data) == 0 {
		return nil, nil
	}
	h, _, err := toc.Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("invalid toc: %w", err)
	}
	return h, nil
}

func jobOptions(r *http.Request) (pipeline.JobOptions, error) {
	var opts pipeline.JobOptions
	if v := r.FormValue("segment_only"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("invalid segment_only: %q", v)
		}
		opts.SegmentOnly = b
	}
	if v := r.FormValue("questions"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return opts, fmt.Errorf("invalid questions: %q", v)
		}
		opts.Questions = n
	}
	return opts, nil
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
