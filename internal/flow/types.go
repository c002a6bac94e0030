package flow

// NodeType tags a node in a workflow draft.
type NodeType string

const (
	NodeTypeStart    NodeType = "start"
	NodeTypeTask     NodeType = "task"
	NodeTypeDecision NodeType = "decision"
	NodeTypeEnd      NodeType = "end"
)

// ActionType identifies the kind of work an action performs.
type ActionType string

const (
	ActionTypeLLM         ActionType = "llm"
	ActionTypeDocument    ActionType = "document"
	ActionTypeVariable    ActionType = "variable"
	ActionTypeConditional ActionType = "conditional"
)

// TriggerType gates when a transition may be traversed.
type TriggerType string

const (
	TriggerImmediate   TriggerType = "immediate"
	TriggerConditional TriggerType = "conditional"
)

// ValidatorType identifies a transition validator. Only expression
// validators exist today.
type ValidatorType string

const ValidatorExpression ValidatorType = "expression"

// WorkflowDraft is the static graph definition submitted for execution.
// Drafts are created and edited outside the engine; the engine only reads them.
type WorkflowDraft struct {
	ID          string               `json:"id" yaml:"id"`
	Name        string               `json:"name" yaml:"name"`
	Version     int                  `json:"version,omitempty" yaml:"version,omitempty"`
	Nodes       []WorkflowNode       `json:"nodes" yaml:"nodes"`
	Transitions []WorkflowTransition `json:"transitions" yaml:"transitions"`
}

// WorkflowNode is a graph vertex with ordered entry and exit actions.
type WorkflowNode struct {
	ID           string           `json:"id" yaml:"id"`
	Type         NodeType         `json:"type" yaml:"type"`
	Label        string           `json:"label,omitempty" yaml:"label,omitempty"`
	EntryActions []WorkflowAction `json:"entry_actions,omitempty" yaml:"entry_actions,omitempty"`
	ExitActions  []WorkflowAction `json:"exit_actions,omitempty" yaml:"exit_actions,omitempty"`
	Metadata     map[string]any   `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// WorkflowTransition is a directed edge with an optional trigger and
// optional ordered validators. During traversal at most one transition is
// selected per source node: the first one in declaration order.
type WorkflowTransition struct {
	ID         string      `json:"id" yaml:"id"`
	Source     string      `json:"source" yaml:"source"`
	Target     string      `json:"target" yaml:"target"`
	Trigger    *Trigger    `json:"trigger,omitempty" yaml:"trigger,omitempty"`
	Validators []Validator `json:"validators,omitempty" yaml:"validators,omitempty"`
}

// WorkflowAction is a typed unit of work with free-form configuration.
type WorkflowAction struct {
	ID     string         `json:"id" yaml:"id" mapstructure:"id"`
	Type   ActionType     `json:"type" yaml:"type" mapstructure:"type"`
	Config map[string]any `json:"config" yaml:"config" mapstructure:"config"`
}

// Trigger gates a transition. An immediate trigger always proceeds; a
// conditional trigger proceeds only when its expression is truthy against
// the run's current variables.
type Trigger struct {
	Type       TriggerType `json:"type" yaml:"type"`
	Expression string      `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// Validator is a fatal-on-failure check evaluated before exit actions.
type Validator struct {
	Type       ValidatorType `json:"type" yaml:"type"`
	Expression string        `json:"expression" yaml:"expression"`
}

// Node returns the node with the given id, or nil when absent.
func (d *WorkflowDraft) Node(id string) *WorkflowNode {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i]
		}
	}
	return nil
}

// StartNodes returns all nodes of type start in declaration order.
func (d *WorkflowDraft) StartNodes() []*WorkflowNode {
	var starts []*WorkflowNode
	for i := range d.Nodes {
		if d.Nodes[i].Type == NodeTypeStart {
			starts = append(starts, &d.Nodes[i])
		}
	}
	return starts
}

// TransitionFrom returns the first transition whose source is nodeID, in
// declaration order, or nil when the node is terminal.
func (d *WorkflowDraft) TransitionFrom(nodeID string) *WorkflowTransition {
	for i := range d.Transitions {
		if d.Transitions[i].Source == nodeID {
			return &d.Transitions[i]
		}
	}
	return nil
}
