// Package engine drives workflow drafts to completion as durable,
// resumable runs. Each run's traversal executes as an independent
// background task; the engine owns pause/resume and the single-writer
// guarantee over each run record.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/hyejin/flowd/internal/action"
	"github.com/hyejin/flowd/internal/bus"
	"github.com/hyejin/flowd/internal/flow"
	"github.com/hyejin/flowd/internal/metrics"
	"github.com/hyejin/flowd/internal/repository"
)

const emitterEngine = "engine"

var (
	// ErrNotRunning is returned by PauseRun when the run is not running.
	ErrNotRunning = errors.New("run is not running")
	// ErrNotPaused is returned by ResumeRun when the run is not paused.
	ErrNotPaused = errors.New("run is not paused")
	// ErrRunActive is returned by ResumeRun when a traversal task is
	// already driving the run.
	ErrRunActive = errors.New("run traversal already active")
)

// ActionExecutor executes one action against a variable snapshot.
type ActionExecutor interface {
	Execute(ctx context.Context, a flow.WorkflowAction, ec action.ExecContext) action.Result
}

// Options configure an Engine.
type Options struct {
	// MaxConcurrentRuns bounds how many traversal tasks run at once.
	// Zero or negative means the default of 10.
	MaxConcurrentRuns int
}

// ExecuteOptions carry per-run parameters for ExecuteWorkflow.
type ExecuteOptions struct {
	InitialVariables map[string]any
	VersionID        string
}

// Engine is the workflow execution engine.
type Engine struct {
	store repository.RunStore
	bus   *bus.Bus
	exec  ActionExecutor
	sem   *semaphore.Weighted

	mu     sync.Mutex
	active map[string]bool // run ids with a live traversal task
}

func New(store repository.RunStore, eventBus *bus.Bus, exec ActionExecutor, opts Options) *Engine {
	maxRuns := opts.MaxConcurrentRuns
	if maxRuns <= 0 {
		maxRuns = 10
	}
	return &Engine{
		store:  store,
		bus:    eventBus,
		exec:   exec,
		sem:    semaphore.NewWeighted(int64(maxRuns)),
		active: make(map[string]bool),
	}
}

// ExecuteWorkflow validates the draft, creates a run positioned at the
// start node, and launches the traversal as a detached background task.
// It returns the run id immediately; the caller does not block on
// completion.
func (e *Engine) ExecuteWorkflow(ctx context.Context, draft *flow.WorkflowDraft, workflowID string, opts ExecuteOptions) (string, error) {
	if res := flow.Validate(draft); !res.Valid {
		return "", fmt.Errorf("workflow validation failed: %s", res.Message())
	}

	starts := draft.StartNodes()
	if len(starts) != 1 {
		return "", fmt.Errorf("workflow must have exactly one start node, found %d", len(starts))
	}
	startNode := starts[0]

	rc := flow.NewRunContext(startNode.ID, opts.InitialVariables)
	rc.Metadata["workflow_id"] = workflowID
	if draft.Name != "" {
		rc.Metadata["workflow_name"] = draft.Name
	}

	run, err := e.store.CreateRun(ctx, workflowID, opts.VersionID, rc)
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}

	metrics.RunsStarted.Inc()
	e.emit(ctx, run.ID, flow.EventWorkflowStarted, map[string]any{
		"workflow_id": workflowID,
		"start_node":  startNode.ID,
	})

	e.acquireRun(run.ID)
	go e.runTraversal(context.WithoutCancel(ctx), run.ID, draft)

	return run.ID, nil
}

// PauseRun requests a pause. Legal only while the run is running; the
// traversal observes the new status at its next iteration boundary.
func (e *Engine) PauseRun(ctx context.Context, runID string) error {
	run, err := e.store.Get(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status != flow.RunStatusRunning {
		return fmt.Errorf("%w: run %s is %s", ErrNotRunning, runID, run.Status)
	}

	if err := e.store.UpdateStatus(ctx, runID, flow.RunStatusPaused, ""); err != nil {
		return err
	}
	metrics.RunsPaused.Inc()
	e.emit(ctx, runID, flow.EventWorkflowPaused, map[string]any{
		"reason": flow.PauseReasonManual,
	})
	return nil
}

// ResumeRun re-enters the traversal loop of a paused run, starting at the
// persisted current node (falling back to the draft's start node if the
// pointer is missing).
func (e *Engine) ResumeRun(ctx context.Context, runID string, draft *flow.WorkflowDraft) error {
	run, err := e.store.Get(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status != flow.RunStatusPaused {
		return fmt.Errorf("%w: run %s is %s", ErrNotPaused, runID, run.Status)
	}
	if !e.tryAcquireRun(runID) {
		return fmt.Errorf("%w: %s", ErrRunActive, runID)
	}

	current := run.Context.CurrentNode
	if current == "" || draft.Node(current) == nil {
		starts := draft.StartNodes()
		if len(starts) == 0 {
			e.releaseRun(runID)
			return fmt.Errorf("run %s has no resumable position and draft has no start node", runID)
		}
		current = starts[0].ID
		run.Context.CurrentNode = current
		if err := e.store.UpdateContext(ctx, runID, run.Context, current); err != nil {
			e.releaseRun(runID)
			return err
		}
	}

	if err := e.store.UpdateStatus(ctx, runID, flow.RunStatusRunning, ""); err != nil {
		e.releaseRun(runID)
		return err
	}
	e.emit(ctx, runID, flow.EventWorkflowResumed, map[string]any{
		"node_id": current,
	})

	go e.runTraversal(context.WithoutCancel(ctx), runID, draft)
	return nil
}

// Runs returns the persisted runs for a workflow.
func (e *Engine) Runs(ctx context.Context, workflowID string) ([]*flow.WorkflowRun, error) {
	return e.store.GetByWorkflow(ctx, workflowID)
}

// Run returns one persisted run.
func (e *Engine) Run(ctx context.Context, runID string) (*flow.WorkflowRun, error) {
	return e.store.Get(ctx, runID)
}

// Events returns a run's ordered event log.
func (e *Engine) Events(ctx context.Context, runID string) ([]*flow.RunEvent, error) {
	return e.store.Events(ctx, runID)
}

// DeleteRun removes a run and its events. Administrative cleanup only.
func (e *Engine) DeleteRun(ctx context.Context, runID string) error {
	return e.store.DeleteRun(ctx, runID)
}

// emit appends an event to the store and publishes it on the bus. The two
// writes are deliberately not transactional; both derive from the
// persisted (currentNode, context) pair, so a crash between them is safe
// to resume from.
func (e *Engine) emit(ctx context.Context, runID, eventType string, payload map[string]any) {
	ev, err := e.store.AddEvent(ctx, runID, eventType, payload, emitterEngine)
	if err != nil {
		slog.Warn("append run event failed", "run_id", runID, "type", eventType, "err", err)
		e.bus.PublishEvent(eventType, runID, payload)
		return
	}
	e.bus.Publish(*ev)
}

func (e *Engine) acquireRun(runID string) {
	e.mu.Lock()
	e.active[runID] = true
	e.mu.Unlock()
}

func (e *Engine) tryAcquireRun(runID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active[runID] {
		return false
	}
	e.active[runID] = true
	return true
}

func (e *Engine) releaseRun(runID string) {
	e.mu.Lock()
	delete(e.active, runID)
	e.mu.Unlock()
}
