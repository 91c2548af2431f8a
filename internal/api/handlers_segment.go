package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/dgallion1/synthtune/internal/diag"
	"github.com/dgallion1/synthtune/internal/llm"
	"github.com/dgallion1/synthtune/internal/parser"
	"github.com/dgallion1/synthtune/internal/pipeline"
	"github.com/dgallion1/synthtune/internal/segment"
)

// handleSegment segments an uploaded handbook synchronously and returns
// the segment table without generating a dataset.
func (s *Server) handleSegment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

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
	settings, err := segmentSettings(r, s.orchestrator.Settings())
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	p, err := parser.ForFile(filename, settings.Parser)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	doc, err := p.Parse(bytes.NewReader(data), filename)
	if err != nil {
		jsonError(w, "failed to parse document: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	var tocLLM llm.Completer
	if c := s.orchestrator.Clients(); c != nil {
		tocLLM = c.TOC
	}
	log := s.log.With("filename", filename)
	report, err := pipeline.Segment(r.Context(), doc, h, tocLLM, settings, log)
	if errors.Is(err, pipeline.ErrNoHierarchy) {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if err != nil {
		log.Error("segmentation failed", "error", err)
		jsonError(w, "segmentation failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if report.Diagnostics == nil {
		report.Diagnostics = []diag.Diagnostic{}
	}
	if report.Missing == nil {
		report.Missing = []string{}
	}
	writeJSON(w, http.StatusOK, report)
}

// segmentSettings applies per-request overrides to the configured settings.
func segmentSettings(r *http.Request, s pipeline.Settings) (pipeline.Settings, error) {
	if v := r.FormValue("max_paragraphs"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return s, fmt.Errorf("invalid max_paragraphs: %q", v)
		}
		s.Segment.MaxParagraphs = n
	}
	if v := r.FormValue("fuzzy"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return s, fmt.Errorf("invalid fuzzy: %q", v)
		}
		s.Fuzzy = b
	}
	if v := r.FormValue("scope"); v != "" {
		scope, err := segment.ParseScope(v)
		if err != nil {
			return s, err
		}
		s.Scope = scope
	}
	if v := r.FormValue("duplicates"); v != "" {
		p, err := segment.ParseDuplicatePolicy(v)
		if err != nil {
			return s, err
		}
		s.Segment.Duplicates = p
	}
	if v := r.FormValue("precedence"); v != "" {
		p, err := segment.ParsePrecedence(v)
		if err != nil {
			return s, err
		}
		s.Segment.Precedence = p
	}
	if v := r.FormValue("page_hints"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return s, fmt.Errorf("invalid page_hints: %q", v)
		}
		s.Segment.UsePageHints = b
	}
	if v := r.FormValue("page_offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return s, fmt.Errorf("invalid page_offset: %q", v)
		}
		s.Segment.PageOffset = n
	}
	return s, nil
}
