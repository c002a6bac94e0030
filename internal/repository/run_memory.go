package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hyejin/flowd/internal/flow"
)

const maxRunRecords = 1000

// MemoryRunStore keeps runs and events in memory with FIFO eviction of the
// oldest runs once the cap is reached.
type MemoryRunStore struct {
	mu     sync.RWMutex
	runs   map[string]*flow.WorkflowRun
	events map[string][]*flow.RunEvent
	order  []string // run insertion order for FIFO eviction
	seq    int64
}

func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{
		runs:   make(map[string]*flow.WorkflowRun),
		events: make(map[string][]*flow.RunEvent),
	}
}

func (s *MemoryRunStore) CreateRun(_ context.Context, workflowID, versionID string, initial flow.RunContext) (*flow.WorkflowRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) >= maxRunRecords {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.runs, oldest)
		delete(s.events, oldest)
	}

	run := &flow.WorkflowRun{
		ID:          flow.GenerateID("run"),
		WorkflowID:  workflowID,
		VersionID:   versionID,
		Status:      flow.RunStatusRunning,
		CurrentNode: initial.CurrentNode,
		Context:     initial,
		StartedAt:   time.Now(),
	}
	s.runs[run.ID] = run
	s.order = append(s.order, run.ID)
	return cloneRun(run), nil
}

// restore inserts an existing run record, keeping its id and timestamps.
// Used by the persistent store to rehydrate a run loaded from the
// database after a restart.
func (s *MemoryRunStore) restore(run *flow.WorkflowRun) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; ok {
		return
	}
	if len(s.order) >= maxRunRecords {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.runs, oldest)
		delete(s.events, oldest)
	}
	s.runs[run.ID] = cloneRun(run)
	s.order = append(s.order, run.ID)
}

func (s *MemoryRunStore) Get(_ context.Context, id string) (*flow.WorkflowRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	return cloneRun(run), nil
}

func (s *MemoryRunStore) GetByWorkflow(_ context.Context, workflowID string) ([]*flow.WorkflowRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*flow.WorkflowRun
	for _, run := range s.runs {
		if run.WorkflowID == workflowID {
			out = append(out, cloneRun(run))
		}
	}
	// Newest first, matching the persistent store's ordering.
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

func (s *MemoryRunStore) UpdateStatus(_ context.Context, id string, status flow.RunStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	run.Status = status
	if errMsg != "" {
		run.Error = &errMsg
	}
	if status == flow.RunStatusCompleted || status == flow.RunStatusFailed {
		now := time.Now()
		run.CompletedAt = &now
	}
	return nil
}

func (s *MemoryRunStore) UpdateContext(_ context.Context, id string, rc flow.RunContext, currentNode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	run.Context = rc
	if currentNode != "" {
		run.CurrentNode = currentNode
	}
	return nil
}

func (s *MemoryRunStore) AddEvent(_ context.Context, runID, eventType string, payload map[string]any, emitter string) (*flow.RunEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[runID]; !ok {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	s.seq++
	ev := &flow.RunEvent{
		ID:        flow.GenerateID("ev"),
		RunID:     runID,
		Type:      eventType,
		Payload:   payload,
		Emitter:   emitter,
		Timestamp: time.Now(),
		Seq:       s.seq,
	}
	s.events[runID] = append(s.events[runID], ev)
	return ev, nil
}

func (s *MemoryRunStore) Events(_ context.Context, runID string) ([]*flow.RunEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.runs[runID]; !ok {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	src := s.events[runID]
	out := make([]*flow.RunEvent, len(src))
	copy(out, src)
	// Events are appended with monotonic timestamps, but sort stably anyway
	// so equal timestamps keep insertion order.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (s *MemoryRunStore) DeleteRun(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[id]; !ok {
		return fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	delete(s.runs, id)
	delete(s.events, id)
	for i, rid := range s.order {
		if rid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func cloneRun(run *flow.WorkflowRun) *flow.WorkflowRun {
	cp := *run
	cp.Context.Variables = copyMap(run.Context.Variables)
	cp.Context.Metadata = copyMap(run.Context.Metadata)
	cp.Context.History = append([]string(nil), run.Context.History...)
	return &cp
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
