package api

import (
	"net/http"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	clients := s.orchestrator.Clients()
	if clients == nil || clients.Stats == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"model": clients.Generator.Model(),
		"stats": clients.Stats.Snapshot(),
	})
}
