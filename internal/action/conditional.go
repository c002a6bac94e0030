package action

import (
	"context"

	"github.com/hyejin/flowd/internal/flow"
)

type conditionalConfig struct {
	Condition string                `mapstructure:"condition"`
	Then      []flow.WorkflowAction `mapstructure:"then"`
	Else      []flow.WorkflowAction `mapstructure:"else"`
}

// executeConditional evaluates the condition against current variables and
// recursively executes the selected branch. Success aggregates as logical
// AND over sub-results; each sub-result's context updates are merged into
// the working snapshot in declaration order, so later sub-actions observe
// earlier ones.
func (e *Executor) executeConditional(ctx context.Context, action flow.WorkflowAction, ec ExecContext) Result {
	var cfg conditionalConfig
	if err := decodeConfig(action.Config, &cfg); err != nil {
		return failure("conditional action %s: invalid config: %v", action.ID, err)
	}

	// Condition evaluation fails closed: an unresolvable or erroring
	// expression selects the else branch.
	truthy, err := flow.EvalCondition(cfg.Condition, ec.Variables)
	if err != nil {
		truthy = false
	}

	branch := cfg.Then
	if !truthy {
		branch = cfg.Else
	}

	working := make(map[string]any, len(ec.Variables))
	for k, v := range ec.Variables {
		working[k] = v
	}

	merged := make(map[string]any)
	success := true
	var firstErr string

	for _, sub := range branch {
		res := e.Execute(ctx, sub, ExecContext{
			RunID:     ec.RunID,
			NodeID:    ec.NodeID,
			Variables: working,
		})
		if !res.Success {
			success = false
			if firstErr == "" {
				firstErr = res.Error
			}
		}
		for k, v := range res.ContextUpdates {
			working[k] = v
			merged[k] = v
		}
	}

	return Result{
		Success:        success,
		Output:         truthy,
		Error:          firstErr,
		ContextUpdates: merged,
	}
}
