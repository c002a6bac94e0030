// Package schedule runs workflows on recurring cron schedules. It is a
// client of the execution engine, not part of it: each firing simply calls
// ExecuteWorkflow and reports through the normal run/event machinery.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hyejin/flowd/internal/engine"
	"github.com/hyejin/flowd/internal/flow"
)

// ErrScheduleNotFound is returned for operations on unknown schedule ids.
var ErrScheduleNotFound = errors.New("schedule not found")

// Schedule binds a draft to a cron expression.
type Schedule struct {
	ID         string              `json:"id"`
	WorkflowID string              `json:"workflow_id"`
	CronExpr   string              `json:"cron_expr"`
	Timezone   string              `json:"timezone,omitempty"`
	Draft      *flow.WorkflowDraft `json:"draft"`
	Variables  map[string]any      `json:"variables,omitempty"`
	Enabled    bool                `json:"enabled"`
	CreatedAt  time.Time           `json:"created_at"`
	LastRunAt  *time.Time          `json:"last_run_at,omitempty"`
	LastRunID  string              `json:"last_run_id,omitempty"`
}

// Service owns the cron runner and the schedule set.
type Service struct {
	engine *engine.Engine
	cron   *cron.Cron

	mu        sync.Mutex
	schedules map[string]*Schedule
	entries   map[string]cron.EntryID
}

func NewService(eng *engine.Engine) *Service {
	return &Service{
		engine:    eng,
		cron:      cron.New(),
		schedules: make(map[string]*Schedule),
		entries:   make(map[string]cron.EntryID),
	}
}

// Start begins firing due schedules.
func (s *Service) Start() { s.cron.Start() }

// Stop halts the cron runner and waits for in-flight jobs.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
}

// Add validates and registers a schedule. Disabled schedules are stored
// but not registered with cron.
func (s *Service) Add(sched *Schedule) error {
	if sched.Draft == nil {
		return fmt.Errorf("schedule %s has no draft", sched.ID)
	}
	if res := flow.Validate(sched.Draft); !res.Valid {
		return fmt.Errorf("schedule %s draft invalid: %s", sched.ID, res.Message())
	}
	if sched.ID == "" {
		sched.ID = flow.GenerateID("sched")
	}
	if sched.CreatedAt.IsZero() {
		sched.CreatedAt = time.Now()
	}

	var cronSched cron.Schedule
	if sched.Enabled {
		var err error
		cronSched, err = parseCronExpr(sched.CronExpr, sched.Timezone)
		if err != nil {
			return fmt.Errorf("parse cron expression %q: %w", sched.CronExpr, err)
		}
	}

	// Store the schedule before registering the cron entry so a firing in
	// between cannot miss it.
	s.mu.Lock()
	s.schedules[sched.ID] = sched
	if cronSched != nil {
		s.entries[sched.ID] = s.cron.Schedule(cronSched, cron.FuncJob(func() {
			s.fire(sched.ID)
		}))
	}
	s.mu.Unlock()

	slog.Info("registered schedule", "id", sched.ID, "workflow_id", sched.WorkflowID, "cron", sched.CronExpr, "enabled", sched.Enabled)
	return nil
}

// Remove deregisters and deletes a schedule.
func (s *Service) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schedules[id]; !ok {
		return fmt.Errorf("%w: %s", ErrScheduleNotFound, id)
	}
	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
	delete(s.schedules, id)
	return nil
}

// List returns all schedules.
func (s *Service) List() []*Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Schedule, 0, len(s.schedules))
	for _, sched := range s.schedules {
		out = append(out, sched)
	}
	return out
}

// fire executes one due schedule.
func (s *Service) fire(id string) {
	s.mu.Lock()
	sched, ok := s.schedules[id]
	s.mu.Unlock()
	if !ok {
		return
	}

	runID, err := s.engine.ExecuteWorkflow(context.Background(), sched.Draft, sched.WorkflowID, engine.ExecuteOptions{
		InitialVariables: sched.Variables,
	})
	if err != nil {
		slog.Error("scheduled run failed to start", "schedule_id", id, "workflow_id", sched.WorkflowID, "err", err)
		return
	}

	now := time.Now()
	s.mu.Lock()
	sched.LastRunAt = &now
	sched.LastRunID = runID
	s.mu.Unlock()

	slog.Info("scheduled run started", "schedule_id", id, "run_id", runID)
}

// parseCronExpr tries 6-field (with seconds) then 5-field (standard)
// parsing. A non-UTC timezone is applied via the CRON_TZ= prefix.
func parseCronExpr(expr string, timezone string) (cron.Schedule, error) {
	if timezone != "" && timezone != "UTC" {
		expr = "CRON_TZ=" + timezone + " " + expr
	}
	parser6 := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser6.Parse(expr)
	if err == nil {
		return sched, nil
	}
	parser5 := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser5.Parse(expr)
}
