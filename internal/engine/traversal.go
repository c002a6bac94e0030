package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hyejin/flowd/internal/action"
	"github.com/hyejin/flowd/internal/flow"
	"github.com/hyejin/flowd/internal/metrics"
)

// runTraversal is the traversal task boundary: it holds the per-run
// activity guard and a global concurrency slot, and never lets a failure
// escape: unexpected errors and panics mark the run failed instead of
// crashing the process or other runs.
func (e *Engine) runTraversal(ctx context.Context, runID string, draft *flow.WorkflowDraft) {
	defer e.releaseRun(runID)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("traversal panicked", "run_id", runID, "panic", r)
			e.failRun(ctx, runID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		e.failRun(ctx, runID, fmt.Sprintf("acquire run slot: %v", err))
		return
	}
	defer e.sem.Release(1)

	if err := e.traverse(ctx, runID, draft); err != nil {
		e.failRun(ctx, runID, err.Error())
	}
}

// traverse walks the node/transition graph until it reaches a terminal
// node, a suspension point, or a fatal error. Pause requests take effect
// here, at iteration boundaries, never mid-action.
func (e *Engine) traverse(ctx context.Context, runID string, draft *flow.WorkflowDraft) error {
	for {
		run, err := e.store.Get(ctx, runID)
		if err != nil {
			return fmt.Errorf("load run: %w", err)
		}
		if run.Status != flow.RunStatusRunning {
			// Paused (or externally changed) between nodes; stop quietly.
			return nil
		}

		node := draft.Node(run.Context.CurrentNode)
		if node == nil {
			return fmt.Errorf("node not found: %q", run.Context.CurrentNode)
		}

		if err := e.store.UpdateContext(ctx, runID, run.Context, node.ID); err != nil {
			return fmt.Errorf("persist context: %w", err)
		}
		e.emit(ctx, runID, flow.EventNodeEntered, map[string]any{
			"node_id": node.ID,
			"label":   node.Label,
		})

		if err := e.runActions(ctx, runID, node.ID, node.EntryActions, &run.Context); err != nil {
			return err
		}

		transition := draft.TransitionFrom(node.ID)
		if transition == nil {
			// Terminal node.
			e.emit(ctx, runID, flow.EventWorkflowCompleted, map[string]any{
				"node_id": node.ID,
			})
			if err := e.store.UpdateStatus(ctx, runID, flow.RunStatusCompleted, ""); err != nil {
				return fmt.Errorf("mark completed: %w", err)
			}
			metrics.RunsCompleted.Inc()
			slog.Info("workflow run completed", "run_id", runID, "node_id", node.ID)
			return nil
		}

		if transition.Trigger != nil && transition.Trigger.Type == flow.TriggerConditional {
			satisfied, evalErr := flow.EvalCondition(transition.Trigger.Expression, run.Context.Variables)
			if evalErr != nil {
				slog.Debug("trigger condition errored, treating as not ready",
					"run_id", runID, "transition_id", transition.ID, "err", evalErr)
			}
			if !satisfied {
				// Suspension, not a failure: the trigger is not yet ready.
				e.emit(ctx, runID, flow.EventWorkflowPaused, map[string]any{
					"reason":        flow.PauseReasonTriggerNotReady,
					"node_id":       node.ID,
					"transition_id": transition.ID,
				})
				if err := e.store.UpdateStatus(ctx, runID, flow.RunStatusPaused, ""); err != nil {
					return fmt.Errorf("mark paused: %w", err)
				}
				metrics.RunsPaused.Inc()
				return nil
			}
		}

		for _, v := range transition.Validators {
			ok, evalErr := flow.EvalCondition(v.Expression, run.Context.Variables)
			if evalErr != nil {
				return fmt.Errorf("validator on transition %q: %v", transition.ID, evalErr)
			}
			if !ok {
				return fmt.Errorf("validator failed on transition %q: %s", transition.ID, v.Expression)
			}
		}

		if err := e.runActions(ctx, runID, node.ID, node.ExitActions, &run.Context); err != nil {
			return err
		}

		e.emit(ctx, runID, flow.EventNodeExited, map[string]any{
			"node_id": node.ID,
			"next":    transition.Target,
		})

		run.Context.History = append(run.Context.History, node.ID)
		run.Context.CurrentNode = transition.Target
		if err := e.store.UpdateContext(ctx, runID, run.Context, transition.Target); err != nil {
			return fmt.Errorf("advance context: %w", err)
		}
	}
}

// runActions executes an action list sequentially. Successful updates are
// merged immediately so later actions in the same list observe them; any
// failure is fatal to the run.
func (e *Engine) runActions(ctx context.Context, runID, nodeID string, actions []flow.WorkflowAction, rc *flow.RunContext) error {
	for _, a := range actions {
		res := e.exec.Execute(ctx, a, action.ExecContext{
			RunID:     runID,
			NodeID:    nodeID,
			Variables: rc.CopyVariables(),
		})
		if !res.Success {
			return fmt.Errorf("action %s (%s) failed: %s", a.ID, a.Type, res.Error)
		}
		rc.Merge(res.ContextUpdates)
	}
	if len(actions) > 0 {
		if err := e.store.UpdateContext(ctx, runID, *rc, nodeID); err != nil {
			return fmt.Errorf("persist context: %w", err)
		}
	}
	return nil
}

// failRun records a fatal run error. Not retried automatically.
func (e *Engine) failRun(ctx context.Context, runID, msg string) {
	slog.Error("workflow run failed", "run_id", runID, "err", msg)
	e.emit(ctx, runID, flow.EventWorkflowFailed, map[string]any{
		"error": msg,
	})
	if err := e.store.UpdateStatus(ctx, runID, flow.RunStatusFailed, msg); err != nil {
		slog.Error("mark run failed", "run_id", runID, "err", err)
	}
	metrics.RunsFailed.Inc()
}
