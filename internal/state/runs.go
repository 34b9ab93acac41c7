package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of a recorded run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunKind says which entry point produced a run.
type RunKind string

const (
	// RunExecute is a full design-and-run request.
	RunExecute RunKind = "execute"
	// RunDesign only asked for a team design.
	RunDesign RunKind = "design"
	// RunSpec executed a design supplied by the caller.
	RunSpec RunKind = "spec"
)

// Run is one recorded request.
type Run struct {
	ID     string            `json:"id"`
	Kind   RunKind           `json:"kind"`
	Prompt string            `json:"prompt"`
	Inputs map[string]string `json:"inputs"`
	// Design is the team design as JSON, once known.
	Design     json.RawMessage `json:"design,omitempty"`
	Process    string          `json:"process,omitempty"`
	Status     RunStatus       `json:"status"`
	Result     string          `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	TokensIn   int64           `json:"tokens_in"`
	TokensOut  int64           `json:"tokens_out"`
	APICalls   int             `json:"api_calls"`
	CostUSD    float64         `json:"cost_usd"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Tasks      []TaskRecord    `json:"tasks,omitempty"`
}

// TaskRecord is the outcome of one task within a run.
type TaskRecord struct {
	Index      int       `json:"index"`
	Agent      string    `json:"agent"`
	Status     RunStatus `json:"status"`
	Output     string    `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// Outcome is what is known when a run ends.
type Outcome struct {
	Design    json.RawMessage
	Process   string
	Result    string
	Err       error
	TokensIn  int64
	TokensOut int64
	APICalls  int
	CostUSD   float64
}

// RecordStart inserts a run in the running state.
func (db *DB) RecordStart(r *Run) error {
	inputs, err := json.Marshal(r.Inputs)
	if err != nil {
		return fmt.Errorf("encode inputs: %w", err)
	}
	if r.Inputs == nil {
		inputs = []byte("{}")
	}
	status := r.Status
	if status == "" {
		status = RunRunning
	}

	_, err = db.Exec(`
		INSERT INTO runs (id, kind, prompt, inputs_json, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, string(r.Kind), r.Prompt, string(inputs), string(status), formatTime(r.StartedAt))
	if err != nil {
		return fmt.Errorf("record run start: %w", err)
	}
	return nil
}

// RecordFinish marks a run finished, succeeded unless o.Err is set.
func (db *DB) RecordFinish(id string, o Outcome, finishedAt time.Time) error {
	status := RunSucceeded
	var errText sql.NullString
	if o.Err != nil {
		status = RunFailed
		errText = sql.NullString{String: o.Err.Error(), Valid: true}
	}
	var design sql.NullString
	if len(o.Design) > 0 {
		design = sql.NullString{String: string(o.Design), Valid: true}
	}

	res, err := db.Exec(`
		UPDATE runs SET design_json = ?, process = ?, status = ?, result = ?, error = ?,
			tokens_in = ?, tokens_out = ?, api_calls = ?, cost_usd = ?, finished_at = ?
		WHERE id = ?
	`, design, o.Process, string(status), o.Result, errText,
		o.TokensIn, o.TokensOut, o.APICalls, o.CostUSD, formatTime(finishedAt), id)
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("record run finish: no run %q", id)
	}
	return nil
}

// RecordTask stores the outcome of one task of a run.
func (db *DB) RecordTask(runID string, t TaskRecord) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO run_tasks (run_id, idx, agent, status, output, error, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, runID, t.Index, t.Agent, string(t.Status), t.Output, t.Error, formatTime(t.FinishedAt))
	if err != nil {
		return fmt.Errorf("record task: %w", err)
	}
	return nil
}

const runColumns = `id, kind, prompt, inputs_json, design_json, process, status, result, error,
	tokens_in, tokens_out, api_calls, cost_usd, started_at, finished_at`

// GetRun retrieves a run and its task records. It returns nil, nil when the
// run does not exist.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	tasks, err := db.listTasks(id)
	if err != nil {
		return nil, err
	}
	r.Tasks = tasks
	return r, nil
}

// ListRuns returns the most recent runs first, without task records.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func (db *DB) listTasks(runID string) ([]TaskRecord, error) {
	rows, err := db.Query(`
		SELECT idx, agent, status, output, error, finished_at
		FROM run_tasks WHERE run_id = ? ORDER BY idx
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list run tasks: %w", err)
	}
	defer rows.Close()

	var tasks []TaskRecord
	for rows.Next() {
		var t TaskRecord
		var output, errText sql.NullString
		var finishedAt string
		if err := rows.Scan(&t.Index, &t.Agent, &t.Status, &output, &errText, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan run task: %w", err)
		}
		t.Output = output.String
		t.Error = errText.String
		t.FinishedAt, _ = parseTime(finishedAt)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	var inputs string
	var design, process, result, errText, finishedAt sql.NullString
	var startedAt string

	err := s.Scan(&r.ID, &r.Kind, &r.Prompt, &inputs, &design, &process, &r.Status,
		&result, &errText, &r.TokensIn, &r.TokensOut, &r.APICalls, &r.CostUSD, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(inputs), &r.Inputs); err != nil {
		return nil, fmt.Errorf("decode inputs: %w", err)
	}
	if design.Valid {
		r.Design = json.RawMessage(design.String)
	}
	r.Process = process.String
	r.Result = result.String
	r.Error = errText.String
	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)
	return &r, nil
}
