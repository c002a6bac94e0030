package repository

import (
	"context"
	"log/slog"

	"github.com/hyejin/flowd/internal/flow"
)

// Backend is the durable run/event surface behind a PersistentRunStore.
// Satisfied by *db.DB.
type Backend interface {
	CreateRun(ctx context.Context, run *flow.WorkflowRun) error
	GetRun(ctx context.Context, id string) (*flow.WorkflowRun, error)
	UpdateRunStatus(ctx context.Context, id string, status flow.RunStatus, errMsg string) error
	UpdateRunContext(ctx context.Context, id string, rc flow.RunContext, currentNode string) error
	ListRunsByWorkflow(ctx context.Context, workflowID string) ([]*flow.WorkflowRun, error)
	AddEvent(ctx context.Context, ev *flow.RunEvent) error
	ListEvents(ctx context.Context, runID string) ([]*flow.RunEvent, error)
	DeleteRun(ctx context.Context, id string) error
}

// PersistentRunStore wraps a MemoryRunStore with a durable backend.
// Writes go to both stores (backend failure is logged but non-fatal so an
// in-flight run survives a database hiccup). Reads try memory first,
// falling back to the backend; a fallback hit rehydrates the memory store
// so the run's write path works again after a restart.
type PersistentRunStore struct {
	mem *MemoryRunStore
	db  Backend
}

func NewPersistentRunStore(mem *MemoryRunStore, database Backend) *PersistentRunStore {
	return &PersistentRunStore{mem: mem, db: database}
}

func (s *PersistentRunStore) CreateRun(ctx context.Context, workflowID, versionID string, initial flow.RunContext) (*flow.WorkflowRun, error) {
	run, err := s.mem.CreateRun(ctx, workflowID, versionID, initial)
	if err != nil {
		return nil, err
	}
	if dbErr := s.db.CreateRun(ctx, run); dbErr != nil {
		slog.Warn("db create run failed, in-memory only", "run_id", run.ID, "err", dbErr)
	}
	return run, nil
}

func (s *PersistentRunStore) Get(ctx context.Context, id string) (*flow.WorkflowRun, error) {
	run, err := s.mem.Get(ctx, id)
	if err == nil {
		return run, nil
	}

	dbRun, dbErr := s.db.GetRun(ctx, id)
	if dbErr != nil {
		return nil, err // return original ErrNotFound
	}

	s.mem.restore(dbRun)
	return dbRun, nil
}

func (s *PersistentRunStore) GetByWorkflow(ctx context.Context, workflowID string) ([]*flow.WorkflowRun, error) {
	runs, err := s.db.ListRunsByWorkflow(ctx, workflowID)
	if err == nil {
		return runs, nil
	}
	slog.Warn("db list runs failed, falling back to in-memory", "err", err)
	return s.mem.GetByWorkflow(ctx, workflowID)
}

func (s *PersistentRunStore) UpdateStatus(ctx context.Context, id string, status flow.RunStatus, errMsg string) error {
	memErr := s.mem.UpdateStatus(ctx, id, status, errMsg)
	if dbErr := s.db.UpdateRunStatus(ctx, id, status, errMsg); dbErr != nil {
		slog.Warn("db update run status failed, in-memory only", "run_id", id, "err", dbErr)
	}
	return memErr
}

func (s *PersistentRunStore) UpdateContext(ctx context.Context, id string, rc flow.RunContext, currentNode string) error {
	memErr := s.mem.UpdateContext(ctx, id, rc, currentNode)
	if dbErr := s.db.UpdateRunContext(ctx, id, rc, currentNode); dbErr != nil {
		slog.Warn("db update run context failed, in-memory only", "run_id", id, "err", dbErr)
	}
	return memErr
}

func (s *PersistentRunStore) AddEvent(ctx context.Context, runID, eventType string, payload map[string]any, emitter string) (*flow.RunEvent, error) {
	ev, err := s.mem.AddEvent(ctx, runID, eventType, payload, emitter)
	if err != nil {
		return nil, err
	}
	if dbErr := s.db.AddEvent(ctx, ev); dbErr != nil {
		slog.Warn("db add event failed, in-memory only", "run_id", runID, "err", dbErr)
	}
	return ev, nil
}

func (s *PersistentRunStore) Events(ctx context.Context, runID string) ([]*flow.RunEvent, error) {
	events, err := s.db.ListEvents(ctx, runID)
	if err == nil && len(events) > 0 {
		return events, nil
	}
	if err != nil {
		slog.Warn("db list events failed, falling back to in-memory", "err", err)
	}
	return s.mem.Events(ctx, runID)
}

func (s *PersistentRunStore) DeleteRun(ctx context.Context, id string) error {
	memErr := s.mem.DeleteRun(ctx, id)
	dbErr := s.db.DeleteRun(ctx, id)
	if dbErr != nil {
		slog.Warn("db delete run failed", "run_id", id, "err", dbErr)
	}
	if memErr != nil && dbErr != nil {
		return memErr
	}
	return nil
}
