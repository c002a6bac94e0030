package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hyejin/flowd/internal/flow"
)

// CreateRun stores a new run record.
func (d *DB) CreateRun(ctx context.Context, run *flow.WorkflowRun) error {
	contextJSON, _ := json.Marshal(run.Context)

	_, err := d.Pool.ExecContext(ctx,
		`INSERT INTO workflow_runs (id, workflow_id, version_id, status, current_node, context, error, started_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		run.ID, run.WorkflowID, run.VersionID, string(run.Status),
		run.CurrentNode, contextJSON, run.Error, run.StartedAt, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetRun retrieves a run record by ID.
func (d *DB) GetRun(ctx context.Context, id string) (*flow.WorkflowRun, error) {
	run := &flow.WorkflowRun{}
	var status string
	var contextJSON []byte

	err := d.Pool.QueryRowContext(ctx,
		`SELECT id, workflow_id, version_id, status, current_node, context, error, started_at, completed_at
		 FROM workflow_runs WHERE id = $1`, id,
	).Scan(&run.ID, &run.WorkflowID, &run.VersionID, &status,
		&run.CurrentNode, &contextJSON, &run.Error, &run.StartedAt, &run.CompletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	run.Status = flow.RunStatus(status)
	json.Unmarshal(contextJSON, &run.Context)
	return run, nil
}

// UpdateRunStatus sets the status and, for terminal states, completed_at.
func (d *DB) UpdateRunStatus(ctx context.Context, id string, status flow.RunStatus, errMsg string) error {
	var errVal any
	if errMsg != "" {
		errVal = errMsg
	}

	var query string
	if status == flow.RunStatusCompleted || status == flow.RunStatusFailed {
		query = `UPDATE workflow_runs SET status = $1, error = COALESCE($2, error), completed_at = NOW() WHERE id = $3`
	} else {
		query = `UPDATE workflow_runs SET status = $1, error = COALESCE($2, error) WHERE id = $3`
	}

	res, err := d.Pool.ExecContext(ctx, query, string(status), errVal, id)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// UpdateRunContext overwrites the serialized context and position pointer.
func (d *DB) UpdateRunContext(ctx context.Context, id string, rc flow.RunContext, currentNode string) error {
	contextJSON, _ := json.Marshal(rc)

	var err error
	if currentNode != "" {
		_, err = d.Pool.ExecContext(ctx,
			`UPDATE workflow_runs SET context = $1, current_node = $2 WHERE id = $3`,
			contextJSON, currentNode, id)
	} else {
		_, err = d.Pool.ExecContext(ctx,
			`UPDATE workflow_runs SET context = $1 WHERE id = $2`,
			contextJSON, id)
	}
	if err != nil {
		return fmt.Errorf("update run context: %w", err)
	}
	return nil
}

// ListRunsByWorkflow returns all runs for a workflow, newest first.
func (d *DB) ListRunsByWorkflow(ctx context.Context, workflowID string) ([]*flow.WorkflowRun, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT id, workflow_id, version_id, status, current_node, context, error, started_at, completed_at
		 FROM workflow_runs WHERE workflow_id = $1 ORDER BY started_at DESC`,
		workflowID,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var result []*flow.WorkflowRun
	for rows.Next() {
		run := &flow.WorkflowRun{}
		var status string
		var contextJSON []byte
		if err := rows.Scan(&run.ID, &run.WorkflowID, &run.VersionID, &status,
			&run.CurrentNode, &contextJSON, &run.Error, &run.StartedAt, &run.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Status = flow.RunStatus(status)
		json.Unmarshal(contextJSON, &run.Context)
		result = append(result, run)
	}
	return result, rows.Err()
}

// AddEvent appends one event row. Timestamp and sequence are assigned by
// the database.
func (d *DB) AddEvent(ctx context.Context, ev *flow.RunEvent) error {
	payloadJSON, _ := json.Marshal(ev.Payload)

	err := d.Pool.QueryRowContext(ctx,
		`INSERT INTO run_events (id, run_id, type, payload, emitter)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING seq, timestamp`,
		ev.ID, ev.RunID, ev.Type, payloadJSON, ev.Emitter,
	).Scan(&ev.Seq, &ev.Timestamp)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListEvents returns a run's events ordered by timestamp, sequence
// breaking ties.
func (d *DB) ListEvents(ctx context.Context, runID string) ([]*flow.RunEvent, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT seq, id, run_id, type, payload, emitter, timestamp
		 FROM run_events WHERE run_id = $1 ORDER BY timestamp ASC, seq ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var result []*flow.RunEvent
	for rows.Next() {
		ev := &flow.RunEvent{}
		var payloadJSON []byte
		if err := rows.Scan(&ev.Seq, &ev.ID, &ev.RunID, &ev.Type, &payloadJSON, &ev.Emitter, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		json.Unmarshal(payloadJSON, &ev.Payload)
		result = append(result, ev)
	}
	return result, rows.Err()
}

// DeleteRun removes the run row; events cascade.
func (d *DB) DeleteRun(ctx context.Context, id string) error {
	res, err := d.Pool.ExecContext(ctx, `DELETE FROM workflow_runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}
