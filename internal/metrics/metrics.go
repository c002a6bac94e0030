// Package metrics exposes Prometheus counters for run and action activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowd_runs_started_total",
		Help: "Total number of workflow runs started",
	})
	RunsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowd_runs_completed_total",
		Help: "Total number of workflow runs completed successfully",
	})
	RunsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowd_runs_failed_total",
		Help: "Total number of workflow runs that ended in failure",
	})
	RunsPaused = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowd_runs_paused_total",
		Help: "Total number of times a run entered the paused state",
	})
	ActionExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowd_action_executions_total",
		Help: "Total number of action executions by type and outcome",
	}, []string{"type", "outcome"})
)

// ObserveAction records one action execution outcome.
func ObserveAction(actionType string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	ActionExecutions.WithLabelValues(actionType, outcome).Inc()
}
