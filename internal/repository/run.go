package repository

import (
	"context"
	"errors"

	"github.com/hyejin/flowd/internal/flow"
)

// ErrNotFound is returned when a run id does not exist in the store.
var ErrNotFound = errors.New("not found")

// RunStore abstracts durable persistence for workflow runs and their
// append-only event log.
type RunStore interface {
	// CreateRun persists a new run in running state and returns it.
	CreateRun(ctx context.Context, workflowID, versionID string, initial flow.RunContext) (*flow.WorkflowRun, error)
	Get(ctx context.Context, id string) (*flow.WorkflowRun, error)
	GetByWorkflow(ctx context.Context, workflowID string) ([]*flow.WorkflowRun, error)
	// UpdateStatus sets the run status; CompletedAt is set only when the
	// status is completed or failed. errMsg is stored when non-empty.
	UpdateStatus(ctx context.Context, id string, status flow.RunStatus, errMsg string) error
	// UpdateContext overwrites the serialized context and, when currentNode
	// is non-empty, the position pointer. It is a full overwrite, not a patch.
	UpdateContext(ctx context.Context, id string, rc flow.RunContext, currentNode string) error
	// AddEvent appends one immutable event row with a store-assigned
	// timestamp and sequence number.
	AddEvent(ctx context.Context, runID, eventType string, payload map[string]any, emitter string) (*flow.RunEvent, error)
	// Events returns the run's events ordered by timestamp ascending,
	// insertion order breaking ties.
	Events(ctx context.Context, runID string) ([]*flow.RunEvent, error)
	// DeleteRun removes the run and all of its events. Administrative
	// cleanup only; never called during normal execution.
	DeleteRun(ctx context.Context, id string) error
}
