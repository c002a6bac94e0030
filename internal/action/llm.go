package action

import (
	"context"

	"github.com/hyejin/flowd/internal/connector"
	"github.com/hyejin/flowd/internal/flow"
)

const defaultOutputVariable = "llm_response"

type llmConfig struct {
	ConnectorID    string   `mapstructure:"connector_id"`
	Model          string   `mapstructure:"model"`
	Prompt         string   `mapstructure:"prompt"`
	System         string   `mapstructure:"system"`
	Temperature    *float64 `mapstructure:"temperature"`
	MaxTokens      *int     `mapstructure:"max_tokens"`
	OutputVariable string   `mapstructure:"output_variable"`
}

// executeLLM interpolates the configured prompt against run variables and
// calls chat completion on the configured connector. The response text and
// token usage land under the output variable and its _usage companion.
func (e *Executor) executeLLM(ctx context.Context, action flow.WorkflowAction, ec ExecContext) Result {
	var cfg llmConfig
	if err := decodeConfig(action.Config, &cfg); err != nil {
		return failure("llm action %s: invalid config: %v", action.ID, err)
	}
	if cfg.Prompt == "" {
		return failure("llm action %s: prompt is required", action.ID)
	}
	if e.connectors == nil {
		return failure("llm action %s: no connector registry available", action.ID)
	}

	conn, ok := e.connectors.Get(cfg.ConnectorID)
	if !ok {
		return failure("llm action %s: connector %q not found", action.ID, cfg.ConnectorID)
	}

	prompt := flow.Interpolate(cfg.Prompt, ec.Variables)

	var messages []connector.Message
	if cfg.System != "" {
		messages = append(messages, connector.Message{Role: connector.RoleSystem, Content: flow.Interpolate(cfg.System, ec.Variables)})
	}
	messages = append(messages, connector.Message{Role: connector.RoleUser, Content: prompt})

	resp, err := conn.Chat(ctx, messages, connector.ChatOptions{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})
	if err != nil {
		return failure("llm action %s: chat completion: %v", action.ID, err)
	}

	outVar := cfg.OutputVariable
	if outVar == "" {
		outVar = defaultOutputVariable
	}

	return Result{
		Success: true,
		Output:  resp.Content,
		ContextUpdates: map[string]any{
			outVar: resp.Content,
			outVar + "_usage": map[string]any{
				"prompt_tokens":     resp.Usage.PromptTokens,
				"completion_tokens": resp.Usage.CompletionTokens,
				"total_tokens":      resp.Usage.TotalTokens,
			},
		},
	}
}
