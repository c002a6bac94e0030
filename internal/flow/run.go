package flow

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// RunStatus represents the lifecycle state of a workflow run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusPaused    RunStatus = "paused"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// WorkflowRun is the persisted record of one execution of a draft.
// Created by the engine, mutated only by the engine, and never deleted
// except by administrative cleanup.
type WorkflowRun struct {
	ID          string     `json:"id"`
	WorkflowID  string     `json:"workflow_id"`
	VersionID   string     `json:"version_id,omitempty"`
	Status      RunStatus  `json:"status"`
	CurrentNode string     `json:"current_node"`
	Context     RunContext `json:"context"`
	Error       *string    `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RunContext is the mutable state a run carries between nodes: a variable
// bag, the position pointer, and the ordered history of visited nodes.
type RunContext struct {
	Variables   map[string]any `json:"variables"`
	CurrentNode string         `json:"current_node"`
	History     []string       `json:"history"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewRunContext builds an initial context positioned at startNode.
func NewRunContext(startNode string, variables map[string]any) RunContext {
	vars := make(map[string]any, len(variables))
	for k, v := range variables {
		vars[k] = v
	}
	return RunContext{
		Variables:   vars,
		CurrentNode: startNode,
		History:     []string{},
		Metadata:    map[string]any{},
	}
}

// Merge overwrites the context's variables with updates, last write wins.
func (c *RunContext) Merge(updates map[string]any) {
	if len(updates) == 0 {
		return
	}
	if c.Variables == nil {
		c.Variables = make(map[string]any, len(updates))
	}
	for k, v := range updates {
		c.Variables[k] = v
	}
}

// CopyVariables returns a shallow snapshot of the variable bag, safe to
// hand to action executors.
func (c *RunContext) CopyVariables() map[string]any {
	cp := make(map[string]any, len(c.Variables))
	for k, v := range c.Variables {
		cp[k] = v
	}
	return cp
}

// Run event types. Events are append-only and ordered by timestamp,
// insertion order breaking ties.
const (
	EventWorkflowStarted   = "workflow-started"
	EventWorkflowCompleted = "workflow-completed"
	EventWorkflowFailed    = "workflow-failed"
	EventWorkflowPaused    = "workflow-paused"
	EventWorkflowResumed   = "workflow-resumed"
	EventNodeEntered       = "node-entered"
	EventNodeExited        = "node-exited"
)

// Pause reason codes carried in workflow-paused payloads.
const (
	PauseReasonManual          = "manual"
	PauseReasonTriggerNotReady = "trigger-not-ready"
)

// RunEvent is an immutable, timestamped record of run progress.
type RunEvent struct {
	ID        string         `json:"id"`
	RunID     string         `json:"run_id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Emitter   string         `json:"emitter,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Seq       int64          `json:"-"` // store-assigned, breaks timestamp ties
}

// GenerateID generates a random ID with the given prefix.
func GenerateID(prefix string) string {
	b := make([]byte, 8)
	rand.Read(b)
	return prefix + "-" + hex.EncodeToString(b)
}
