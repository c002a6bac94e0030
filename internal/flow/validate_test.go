package flow

import (
	"strings"
	"testing"
)

func TestValidate_EmptyDraft(t *testing.T) {
	res := Validate(&WorkflowDraft{ID: "wf-1"})
	if res.Valid {
		t.Fatal("empty draft should be invalid")
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "no nodes") {
		t.Errorf("errors = %v, want single 'no nodes' error", res.Errors)
	}
}

func TestValidate_NilDraft(t *testing.T) {
	if res := Validate(nil); res.Valid {
		t.Fatal("nil draft should be invalid")
	}
}

func TestValidate_UnknownTransitionEndpoints(t *testing.T) {
	draft := &WorkflowDraft{
		ID:    "wf-1",
		Nodes: []WorkflowNode{{ID: "a", Type: NodeTypeStart}},
		Transitions: []WorkflowTransition{
			{ID: "t1", Source: "a", Target: "ghost"},
			{ID: "t2", Source: "phantom", Target: "a"},
		},
	}

	res := Validate(draft)
	if res.Valid {
		t.Fatal("draft with dangling transitions should be invalid")
	}
	if len(res.Errors) != 2 {
		t.Errorf("errors = %v, want 2", res.Errors)
	}
}

func TestValidate_DuplicateNodeIDs(t *testing.T) {
	draft := &WorkflowDraft{
		Nodes: []WorkflowNode{
			{ID: "a", Type: NodeTypeStart},
			{ID: "a", Type: NodeTypeEnd},
		},
	}
	if res := Validate(draft); res.Valid {
		t.Fatal("duplicate node ids should be invalid")
	}
}

func TestValidate_MultipleTransitionsWarns(t *testing.T) {
	draft := &WorkflowDraft{
		Nodes: []WorkflowNode{
			{ID: "a", Type: NodeTypeStart},
			{ID: "b", Type: NodeTypeEnd},
			{ID: "c", Type: NodeTypeEnd},
		},
		Transitions: []WorkflowTransition{
			{ID: "t1", Source: "a", Target: "b"},
			{ID: "t2", Source: "a", Target: "c"},
		},
	}

	res := Validate(draft)
	if !res.Valid {
		t.Fatalf("draft should be valid, errors: %v", res.Errors)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("warnings = %v, want 1", res.Warnings)
	}
}

func TestTransitionFrom_FirstMatchWins(t *testing.T) {
	draft := &WorkflowDraft{
		Nodes: []WorkflowNode{
			{ID: "a", Type: NodeTypeStart},
			{ID: "b", Type: NodeTypeEnd},
			{ID: "c", Type: NodeTypeEnd},
		},
		Transitions: []WorkflowTransition{
			{ID: "t1", Source: "a", Target: "b"},
			{ID: "t2", Source: "a", Target: "c"},
		},
	}

	tr := draft.TransitionFrom("a")
	if tr == nil || tr.ID != "t1" {
		t.Fatalf("TransitionFrom(a) = %+v, want t1 (declaration order)", tr)
	}
	if draft.TransitionFrom("b") != nil {
		t.Error("terminal node should have no transition")
	}
}
