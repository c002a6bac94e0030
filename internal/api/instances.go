package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hyejin/flowd/internal/flow"
	"github.com/hyejin/flowd/internal/registry"
)

type startInstanceRequest struct {
	Draft *flow.WorkflowDraft `json:"draft"`
}

// startInstance creates an ephemeral instance for a draft.
// POST /api/instances
func (s *Server) startInstance(w http.ResponseWriter, r *http.Request) {
	var req startInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Draft == nil {
		http.Error(w, "draft is required", http.StatusBadRequest)
		return
	}

	inst, err := s.instances.Start(req.Draft)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(inst)
}

// listInstances returns all tracked instances.
// GET /api/instances
func (s *Server) listInstances(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"instances": s.instances.ListInstances()})
}

// POST /api/instances/{id}/pause
func (s *Server) pauseInstance(w http.ResponseWriter, r *http.Request) {
	s.instanceTransition(w, r, s.instances.Pause)
}

// POST /api/instances/{id}/resume
func (s *Server) resumeInstance(w http.ResponseWriter, r *http.Request) {
	s.instanceTransition(w, r, s.instances.Resume)
}

// POST /api/instances/{id}/complete
func (s *Server) completeInstance(w http.ResponseWriter, r *http.Request) {
	s.instanceTransition(w, r, s.instances.Complete)
}

func (s *Server) instanceTransition(w http.ResponseWriter, r *http.Request, op func(string) error) {
	id := chi.URLParam(r, "id")
	if err := op(id); err != nil {
		status := http.StatusConflict
		if errors.Is(err, registry.ErrInstanceNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
