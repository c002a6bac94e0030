package action

import "github.com/hyejin/flowd/internal/flow"

type variableConfig struct {
	Name  string `mapstructure:"name"`
	Value any    `mapstructure:"value"`
}

// executeVariable is a pure assignment: stores the configured literal
// value under the configured name.
func (e *Executor) executeVariable(action flow.WorkflowAction) Result {
	var cfg variableConfig
	if err := decodeConfig(action.Config, &cfg); err != nil {
		return failure("variable action %s: invalid config: %v", action.ID, err)
	}
	if cfg.Name == "" {
		return failure("variable action %s: name is required", action.ID)
	}

	return Result{
		Success:        true,
		Output:         cfg.Value,
		ContextUpdates: map[string]any{cfg.Name: cfg.Value},
	}
}
