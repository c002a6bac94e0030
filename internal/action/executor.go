// Package action implements the polymorphic action executor. Each action
// runs against a snapshot of the run's variables and reports its outcome
// as a Result. Action-level faults never surface as Go errors, so the
// engine decides fatality.
package action

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/hyejin/flowd/internal/connector"
	"github.com/hyejin/flowd/internal/export"
	"github.com/hyejin/flowd/internal/flow"
	"github.com/hyejin/flowd/internal/metrics"
)

// ExecContext is the slice of run state an action may observe.
type ExecContext struct {
	RunID     string
	NodeID    string
	Variables map[string]any
}

// Result is the outcome of one action execution. ContextUpdates are merged
// into the run context by the caller, shallow overwrite, last write wins.
type Result struct {
	Success        bool           `json:"success"`
	Output         any            `json:"output,omitempty"`
	Error          string         `json:"error,omitempty"`
	ContextUpdates map[string]any `json:"context_updates,omitempty"`
}

func failure(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Executor dispatches actions by type.
type Executor struct {
	connectors *connector.Registry
	exporter   export.Exporter
}

// NewExecutor creates an Executor. Either collaborator may be nil; actions
// that need a missing capability fail with a descriptive Result.
func NewExecutor(connectors *connector.Registry, exporter export.Exporter) *Executor {
	return &Executor{connectors: connectors, exporter: exporter}
}

// Execute runs a single action. An unknown action type is a failure
// Result, not an error.
func (e *Executor) Execute(ctx context.Context, action flow.WorkflowAction, ec ExecContext) Result {
	var res Result
	switch action.Type {
	case flow.ActionTypeLLM:
		res = e.executeLLM(ctx, action, ec)
	case flow.ActionTypeDocument:
		res = e.executeDocument(ctx, action, ec)
	case flow.ActionTypeVariable:
		res = e.executeVariable(action)
	case flow.ActionTypeConditional:
		res = e.executeConditional(ctx, action, ec)
	default:
		res = failure("unknown action type %q", action.Type)
	}
	metrics.ObserveAction(string(action.Type), res.Success)
	return res
}

// decodeConfig maps an action's free-form config into a typed struct.
func decodeConfig(config map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(config)
}
