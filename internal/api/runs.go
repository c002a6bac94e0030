package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hyejin/flowd/internal/engine"
	"github.com/hyejin/flowd/internal/flow"
	"github.com/hyejin/flowd/internal/repository"
)

type executeRequest struct {
	WorkflowID       string              `json:"workflow_id"`
	Draft            *flow.WorkflowDraft `json:"draft"`
	InitialVariables map[string]any      `json:"initial_variables,omitempty"`
	VersionID        string              `json:"version_id,omitempty"`
}

// executeWorkflow starts a run and returns its id immediately.
// POST /api/workflows/execute
func (s *Server) executeWorkflow(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Draft == nil {
		http.Error(w, "draft is required", http.StatusBadRequest)
		return
	}
	workflowID := req.WorkflowID
	if workflowID == "" {
		workflowID = req.Draft.ID
	}

	runID, err := s.engine.ExecuteWorkflow(r.Context(), req.Draft, workflowID, engine.ExecuteOptions{
		InitialVariables: req.InitialVariables,
		VersionID:        req.VersionID,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{"run_id": runID})
}

// getRun returns a single run record.
// GET /api/runs/{id}
func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.engine.Run(r.Context(), id)
	if err != nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run)
}

// listWorkflowRuns returns runs for a workflow, newest first.
// GET /api/workflows/{workflowId}/runs
func (s *Server) listWorkflowRuns(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowId")
	runs, err := s.engine.Runs(r.Context(), workflowID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*flow.WorkflowRun{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"runs": runs})
}

// getRunEvents returns the run's ordered event log.
// GET /api/runs/{id}/events
func (s *Server) getRunEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	events, err := s.engine.Events(r.Context(), id)
	if err != nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if events == nil {
		events = []*flow.RunEvent{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"events": events})
}

// streamRunEvents streams live run events over SSE until the client
// disconnects. Only events for the requested run are forwarded.
// GET /api/runs/{id}/stream
func (s *Server) streamRunEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.events.Channel(r.Context(), 64)
	for ev := range ch {
		if ev.RunID != id {
			continue
		}
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
		flusher.Flush()
	}
}

// pauseRun requests a pause; effective at the next node boundary.
// POST /api/runs/{id}/pause
func (s *Server) pauseRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.engine.PauseRun(r.Context(), id); err != nil {
		http.Error(w, err.Error(), statusForRunError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resumeRequest struct {
	Draft *flow.WorkflowDraft `json:"draft"`
}

// resumeRun resumes a paused run from its persisted position.
// POST /api/runs/{id}/resume
func (s *Server) resumeRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req resumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Draft == nil {
		http.Error(w, "draft is required", http.StatusBadRequest)
		return
	}

	if err := s.engine.ResumeRun(r.Context(), id, req.Draft); err != nil {
		http.Error(w, err.Error(), statusForRunError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// deleteRun removes a run and its events. Administrative cleanup.
// DELETE /api/runs/{id}
func (s *Server) deleteRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.engine.DeleteRun(r.Context(), id); err != nil {
		http.Error(w, err.Error(), statusForRunError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func statusForRunError(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrNotRunning), errors.Is(err, engine.ErrNotPaused), errors.Is(err, engine.ErrRunActive):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
