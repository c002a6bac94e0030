package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyejin/flowd/internal/action"
	"github.com/hyejin/flowd/internal/bus"
	"github.com/hyejin/flowd/internal/flow"
	"github.com/hyejin/flowd/internal/repository"
)

func newTestEngine(t *testing.T) (*Engine, *repository.MemoryRunStore) {
	t.Helper()
	store := repository.NewMemoryRunStore()
	eng := New(store, bus.New(), action.NewExecutor(nil, nil), Options{})
	return eng, store
}

func waitForStatus(t *testing.T, store repository.RunStore, runID string, want flow.RunStatus) *flow.WorkflowRun {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		run, err := store.Get(context.Background(), runID)
		if err == nil && run.Status == want {
			return run
		}
		time.Sleep(5 * time.Millisecond)
	}
	run, _ := store.Get(context.Background(), runID)
	t.Fatalf("run %s never reached status %q (last: %+v)", runID, want, run)
	return nil
}

func eventTypes(t *testing.T, store repository.RunStore, runID string) []string {
	t.Helper()
	events, err := store.Events(context.Background(), runID)
	require.NoError(t, err)
	types := make([]string, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

func linearDraft() *flow.WorkflowDraft {
	return &flow.WorkflowDraft{
		ID:   "wf-linear",
		Name: "linear",
		Nodes: []flow.WorkflowNode{
			{ID: "start", Type: flow.NodeTypeStart},
			{ID: "end", Type: flow.NodeTypeEnd},
		},
		Transitions: []flow.WorkflowTransition{
			{ID: "t1", Source: "start", Target: "end"},
		},
	}
}

func TestExecuteWorkflow_LinearDraftCompletes(t *testing.T) {
	eng, store := newTestEngine(t)

	runID, err := eng.ExecuteWorkflow(context.Background(), linearDraft(), "wf-linear", ExecuteOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	run := waitForStatus(t, store, runID, flow.RunStatusCompleted)
	assert.Equal(t, []string{"start"}, run.Context.History)
	assert.Equal(t, "end", run.CurrentNode)
	require.NotNil(t, run.CompletedAt)

	types := eventTypes(t, store, runID)
	assert.Equal(t, []string{
		flow.EventWorkflowStarted,
		flow.EventNodeEntered, // start
		flow.EventNodeExited,  // start
		flow.EventNodeEntered, // end
		flow.EventWorkflowCompleted,
	}, types)
}

func TestExecuteWorkflow_SingleNodeCompletes(t *testing.T) {
	eng, store := newTestEngine(t)
	draft := &flow.WorkflowDraft{
		ID:    "wf-solo",
		Nodes: []flow.WorkflowNode{{ID: "start", Type: flow.NodeTypeStart}},
	}

	runID, err := eng.ExecuteWorkflow(context.Background(), draft, "wf-solo", ExecuteOptions{})
	require.NoError(t, err)

	waitForStatus(t, store, runID, flow.RunStatusCompleted)
	assert.Contains(t, eventTypes(t, store, runID), flow.EventWorkflowCompleted)
}

func TestExecuteWorkflow_EmptyDraftCreatesNoRun(t *testing.T) {
	eng, store := newTestEngine(t)

	_, err := eng.ExecuteWorkflow(context.Background(), &flow.WorkflowDraft{ID: "wf-empty"}, "wf-empty", ExecuteOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")

	runs, _ := store.GetByWorkflow(context.Background(), "wf-empty")
	assert.Empty(t, runs)
}

func TestExecuteWorkflow_RequiresExactlyOneStart(t *testing.T) {
	eng, _ := newTestEngine(t)
	draft := &flow.WorkflowDraft{
		ID: "wf-two-starts",
		Nodes: []flow.WorkflowNode{
			{ID: "s1", Type: flow.NodeTypeStart},
			{ID: "s2", Type: flow.NodeTypeStart},
		},
	}

	_, err := eng.ExecuteWorkflow(context.Background(), draft, "wf-two-starts", ExecuteOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one start node")
}

func TestExecuteWorkflow_EntryActionFailureFailsRun(t *testing.T) {
	eng, store := newTestEngine(t)
	draft := linearDraft()
	draft.Nodes[0].EntryActions = []flow.WorkflowAction{
		{ID: "bad", Type: flow.ActionTypeVariable, Config: map[string]any{"value": "nameless"}},
	}

	runID, err := eng.ExecuteWorkflow(context.Background(), draft, "wf-linear", ExecuteOptions{})
	require.NoError(t, err)

	run := waitForStatus(t, store, runID, flow.RunStatusFailed)
	require.NotNil(t, run.Error)
	assert.Contains(t, *run.Error, "bad")
	assert.Contains(t, eventTypes(t, store, runID), flow.EventWorkflowFailed)
}

func TestExecuteWorkflow_VariableFlowsIntoLaterAction(t *testing.T) {
	eng, store := newTestEngine(t)
	draft := linearDraft()
	draft.Nodes[0].EntryActions = []flow.WorkflowAction{
		{ID: "set", Type: flow.ActionTypeVariable, Config: map[string]any{"name": "x", "value": 5}},
	}
	draft.Nodes[1].EntryActions = []flow.WorkflowAction{
		{ID: "copy", Type: flow.ActionTypeConditional, Config: map[string]any{
			"condition": "{{x}} == 5",
			"then": []map[string]any{
				{"id": "mark", "type": "variable", "config": map[string]any{"name": "seen", "value": true}},
			},
		}},
	}

	runID, err := eng.ExecuteWorkflow(context.Background(), draft, "wf-linear", ExecuteOptions{})
	require.NoError(t, err)

	run := waitForStatus(t, store, runID, flow.RunStatusCompleted)
	assert.Equal(t, 5, run.Context.Variables["x"])
	assert.Equal(t, true, run.Context.Variables["seen"])
}

func TestExecuteWorkflow_ConditionalTriggerSuspends(t *testing.T) {
	eng, store := newTestEngine(t)
	draft := linearDraft()
	draft.Transitions[0].Trigger = &flow.Trigger{
		Type:       flow.TriggerConditional,
		Expression: `{{approved}} == true`,
	}

	runID, err := eng.ExecuteWorkflow(context.Background(), draft, "wf-linear", ExecuteOptions{})
	require.NoError(t, err)

	run := waitForStatus(t, store, runID, flow.RunStatusPaused)
	assert.Equal(t, "start", run.CurrentNode, "suspension must not advance currentNode")
	assert.Empty(t, run.Context.History)
	assert.Nil(t, run.Error, "suspension is not a failure")

	events, err := store.Events(context.Background(), runID)
	require.NoError(t, err)
	var paused *flow.RunEvent
	for _, ev := range events {
		if ev.Type == flow.EventWorkflowPaused {
			paused = ev
		}
	}
	require.NotNil(t, paused)
	assert.Equal(t, flow.PauseReasonTriggerNotReady, paused.Payload["reason"])
}

func TestExecuteWorkflow_ConditionalTriggerSatisfiedProceeds(t *testing.T) {
	eng, store := newTestEngine(t)
	draft := linearDraft()
	draft.Transitions[0].Trigger = &flow.Trigger{
		Type:       flow.TriggerConditional,
		Expression: `{{approved}} == true`,
	}

	runID, err := eng.ExecuteWorkflow(context.Background(), draft, "wf-linear", ExecuteOptions{
		InitialVariables: map[string]any{"approved": true},
	})
	require.NoError(t, err)

	waitForStatus(t, store, runID, flow.RunStatusCompleted)
}

func TestExecuteWorkflow_ImmediateTriggerProceeds(t *testing.T) {
	eng, store := newTestEngine(t)
	draft := linearDraft()
	draft.Transitions[0].Trigger = &flow.Trigger{Type: flow.TriggerImmediate}

	runID, err := eng.ExecuteWorkflow(context.Background(), draft, "wf-linear", ExecuteOptions{})
	require.NoError(t, err)

	waitForStatus(t, store, runID, flow.RunStatusCompleted)
}

func TestExecuteWorkflow_ValidatorFailureIsFatal(t *testing.T) {
	eng, store := newTestEngine(t)
	draft := linearDraft()
	draft.Transitions[0].Validators = []flow.Validator{
		{Type: flow.ValidatorExpression, Expression: `{{count}} > 10`},
	}

	runID, err := eng.ExecuteWorkflow(context.Background(), draft, "wf-linear", ExecuteOptions{
		InitialVariables: map[string]any{"count": 3},
	})
	require.NoError(t, err)

	run := waitForStatus(t, store, runID, flow.RunStatusFailed)
	require.NotNil(t, run.Error)
	assert.Contains(t, *run.Error, "validator failed")
}

func TestExecuteWorkflow_FirstTransitionWins(t *testing.T) {
	eng, store := newTestEngine(t)
	draft := &flow.WorkflowDraft{
		ID: "wf-fanout",
		Nodes: []flow.WorkflowNode{
			{ID: "start", Type: flow.NodeTypeStart},
			{ID: "a", Type: flow.NodeTypeEnd},
			{ID: "b", Type: flow.NodeTypeEnd},
		},
		Transitions: []flow.WorkflowTransition{
			{ID: "t1", Source: "start", Target: "a"},
			{ID: "t2", Source: "start", Target: "b"},
		},
	}

	runID, err := eng.ExecuteWorkflow(context.Background(), draft, "wf-fanout", ExecuteOptions{})
	require.NoError(t, err)

	run := waitForStatus(t, store, runID, flow.RunStatusCompleted)
	assert.Equal(t, "a", run.CurrentNode)
}

func TestPauseRun_OnlyLegalWhileRunning(t *testing.T) {
	eng, store := newTestEngine(t)

	runID, err := eng.ExecuteWorkflow(context.Background(), linearDraft(), "wf-linear", ExecuteOptions{})
	require.NoError(t, err)
	waitForStatus(t, store, runID, flow.RunStatusCompleted)

	err = eng.PauseRun(context.Background(), runID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotRunning))

	// State unchanged.
	run, _ := store.Get(context.Background(), runID)
	assert.Equal(t, flow.RunStatusCompleted, run.Status)
}

func TestPauseRun_UnknownRun(t *testing.T) {
	eng, _ := newTestEngine(t)
	err := eng.PauseRun(context.Background(), "run-nope")
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestResumeRun_OnlyLegalWhilePaused(t *testing.T) {
	eng, store := newTestEngine(t)

	runID, err := eng.ExecuteWorkflow(context.Background(), linearDraft(), "wf-linear", ExecuteOptions{})
	require.NoError(t, err)
	waitForStatus(t, store, runID, flow.RunStatusCompleted)

	err = eng.ResumeRun(context.Background(), runID, linearDraft())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotPaused))
}

func TestResumeRun_ContinuesFromTriggerSuspension(t *testing.T) {
	eng, store := newTestEngine(t)
	draft := linearDraft()
	draft.Transitions[0].Trigger = &flow.Trigger{
		Type:       flow.TriggerConditional,
		Expression: `{{approved}} == true`,
	}

	runID, err := eng.ExecuteWorkflow(context.Background(), draft, "wf-linear", ExecuteOptions{})
	require.NoError(t, err)
	waitForStatus(t, store, runID, flow.RunStatusPaused)

	// Resume with a draft whose trigger is now immediate, standing in for
	// the external condition becoming satisfied.
	resumed := linearDraft()
	require.NoError(t, resumeEventually(t, eng, runID, resumed))

	waitForStatus(t, store, runID, flow.RunStatusCompleted)
	assert.Contains(t, eventTypes(t, store, runID), flow.EventWorkflowResumed)
}

// gateExecutor blocks a designated action until released, letting tests
// pause a run mid-node deterministically.
type gateExecutor struct {
	inner   *action.Executor
	entered chan struct{}
	release chan struct{}
}

func (g *gateExecutor) Execute(ctx context.Context, a flow.WorkflowAction, ec action.ExecContext) action.Result {
	if a.ID == "gate" {
		g.entered <- struct{}{}
		<-g.release
		return action.Result{Success: true}
	}
	return g.inner.Execute(ctx, a, ec)
}

func TestPauseRun_TakesEffectAtIterationBoundary(t *testing.T) {
	store := repository.NewMemoryRunStore()
	gate := &gateExecutor{
		inner:   action.NewExecutor(nil, nil),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	eng := New(store, bus.New(), gate, Options{})

	draft := linearDraft()
	draft.Nodes[0].EntryActions = []flow.WorkflowAction{{ID: "gate", Type: flow.ActionTypeVariable}}

	runID, err := eng.ExecuteWorkflow(context.Background(), draft, "wf-linear", ExecuteOptions{})
	require.NoError(t, err)

	<-gate.entered // traversal is mid-action on the start node

	require.NoError(t, eng.PauseRun(context.Background(), runID))
	close(gate.release)

	// The in-flight action finishes and the node completes; the pause is
	// observed at the next iteration boundary, after advancing to "end".
	run := waitForStatus(t, store, runID, flow.RunStatusPaused)
	deadline := time.Now().Add(2 * time.Second)
	for run.CurrentNode != "end" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
		run, _ = store.Get(context.Background(), runID)
	}
	assert.Equal(t, "end", run.CurrentNode)
	assert.Equal(t, flow.RunStatusPaused, run.Status)

	require.NoError(t, resumeEventually(t, eng, runID, draft))
	waitForStatus(t, store, runID, flow.RunStatusCompleted)
}

// resumeEventually retries ResumeRun while the previous traversal task is
// still winding down.
func resumeEventually(t *testing.T, eng *Engine, runID string, draft *flow.WorkflowDraft) error {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		err := eng.ResumeRun(context.Background(), runID, draft)
		if err == nil || !errors.Is(err, ErrRunActive) || time.Now().After(deadline) {
			return err
		}
		time.Sleep(5 * time.Millisecond)
	}
}
