// Package registry tracks ephemeral workflow instances. An instance is a
// process-lifetime lifecycle handle, deliberately distinct from the
// persisted run model: it exists for synchronous lifecycle semantics
// without storage I/O and is lost on restart.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/hyejin/flowd/internal/flow"
)

// InstanceStatus is the lifecycle state of an instance.
type InstanceStatus string

const (
	InstanceRunning   InstanceStatus = "running"
	InstancePaused    InstanceStatus = "paused"
	InstanceCompleted InstanceStatus = "completed"
)

var (
	// ErrInstanceNotFound is returned for operations on unknown ids.
	ErrInstanceNotFound = errors.New("instance not found")
	// ErrIllegalTransition is returned when an operation is not legal
	// from the instance's current state.
	ErrIllegalTransition = errors.New("illegal instance transition")
)

// WorkflowInstance is an in-memory lifecycle handle for a draft.
type WorkflowInstance struct {
	ID     string              `json:"id"`
	Draft  *flow.WorkflowDraft `json:"draft"`
	Status InstanceStatus      `json:"status"`
}

// Registry is a thread-safe in-memory instance tracker.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]*WorkflowInstance
}

func New() *Registry {
	return &Registry{instances: make(map[string]*WorkflowInstance)}
}

// Start validates the draft and creates a running instance with a freshly
// generated unique id.
func (r *Registry) Start(draft *flow.WorkflowDraft) (*WorkflowInstance, error) {
	if res := flow.Validate(draft); !res.Valid {
		return nil, fmt.Errorf("invalid draft: %s", res.Message())
	}

	inst := &WorkflowInstance{
		ID:     uuid.NewString(),
		Draft:  draft,
		Status: InstanceRunning,
	}

	r.mu.Lock()
	r.instances[inst.ID] = inst
	r.mu.Unlock()

	return inst, nil
}

// Pause moves a running instance to paused.
func (r *Registry) Pause(id string) error {
	return r.transition(id, InstanceRunning, InstancePaused)
}

// Resume moves a paused instance back to running.
func (r *Registry) Resume(id string) error {
	return r.transition(id, InstancePaused, InstanceRunning)
}

// Complete moves a running instance to completed.
func (r *Registry) Complete(id string) error {
	return r.transition(id, InstanceRunning, InstanceCompleted)
}

// Get returns the instance for id.
func (r *Registry) Get(id string) (*WorkflowInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}
	return inst, nil
}

// ListInstances returns all tracked instances in arbitrary order.
func (r *Registry) ListInstances() []*WorkflowInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*WorkflowInstance, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, inst)
	}
	return out
}

func (r *Registry) transition(id string, from, to InstanceStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}
	if inst.Status != from {
		return fmt.Errorf("%w: cannot move %s instance %s to %s", ErrIllegalTransition, inst.Status, id, to)
	}
	inst.Status = to
	return nil
}
