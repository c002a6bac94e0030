package flow

import (
	"fmt"
	"strings"
)

// ValidationResult aggregates structural checks on a draft.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Message joins all errors into a single human-readable string.
func (r ValidationResult) Message() string {
	return strings.Join(r.Errors, "; ")
}

// Validate runs structural checks on a draft: a non-empty node set, unique
// node ids, and referential integrity of transition endpoints. It never
// inspects action configs; those fail at execution time.
func Validate(draft *WorkflowDraft) ValidationResult {
	var res ValidationResult

	if draft == nil || len(draft.Nodes) == 0 {
		res.Errors = append(res.Errors, "workflow has no nodes")
		return res
	}

	seen := make(map[string]bool, len(draft.Nodes))
	for _, n := range draft.Nodes {
		if n.ID == "" {
			res.Errors = append(res.Errors, "node with empty id")
			continue
		}
		if seen[n.ID] {
			res.Errors = append(res.Errors, fmt.Sprintf("duplicate node id %q", n.ID))
		}
		seen[n.ID] = true
	}

	sources := make(map[string]int)
	for _, t := range draft.Transitions {
		if !seen[t.Source] {
			res.Errors = append(res.Errors, fmt.Sprintf("transition %q references unknown source node %q", t.ID, t.Source))
		}
		if !seen[t.Target] {
			res.Errors = append(res.Errors, fmt.Sprintf("transition %q references unknown target node %q", t.ID, t.Target))
		}
		sources[t.Source]++
	}

	// Only the first transition from a node is ever selected.
	for src, n := range sources {
		if n > 1 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("node %q has %d outgoing transitions; only the first is selected", src, n))
		}
	}

	res.Valid = len(res.Errors) == 0
	return res
}
