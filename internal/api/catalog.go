package api

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/hyejin/flowd/internal/export"
)

// listConnectors returns the ids of the configured LLM connectors.
// GET /api/connectors
func (s *Server) listConnectors(w http.ResponseWriter, _ *http.Request) {
	ids := []string{}
	if s.connectors != nil {
		ids = s.connectors.List()
	}
	sort.Strings(ids)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"connectors": ids})
}

// listDocuments returns metadata for documents exported by document
// actions.
// GET /api/documents
func (s *Server) listDocuments(w http.ResponseWriter, _ *http.Request) {
	records := []export.Record{}
	if s.documents != nil {
		records = s.documents.Records()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"documents": records})
}
