package action

import (
	"context"

	"github.com/hyejin/flowd/internal/export"
	"github.com/hyejin/flowd/internal/flow"
)

type documentConfig struct {
	Name    string `mapstructure:"name"`
	Format  string `mapstructure:"format"`
	Content string `mapstructure:"content"`
}

// executeDocument renders interpolated content through the export
// capability and stores the artifact path under document_<name>.
func (e *Executor) executeDocument(ctx context.Context, action flow.WorkflowAction, ec ExecContext) Result {
	var cfg documentConfig
	if err := decodeConfig(action.Config, &cfg); err != nil {
		return failure("document action %s: invalid config: %v", action.ID, err)
	}
	if cfg.Name == "" {
		return failure("document action %s: name is required", action.ID)
	}
	if e.exporter == nil {
		return failure("document action %s: no document exporter available", action.ID)
	}

	content := flow.Interpolate(cfg.Content, ec.Variables)

	res, err := e.exporter.Export(ctx, export.Request{
		Name:    cfg.Name,
		Format:  cfg.Format,
		Content: content,
	})
	if err != nil {
		return failure("document action %s: export: %v", action.ID, err)
	}

	return Result{
		Success: true,
		Output:  res.Path,
		ContextUpdates: map[string]any{
			"document_" + cfg.Name: res.Path,
		},
	}
}
