// Package system wires analysis, assembly and execution into the single
// request-to-result call dyncrew exposes.
package system

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/dyncrew/internal/analyze"
	"github.com/ShayCichocki/dyncrew/internal/crew"
	"github.com/ShayCichocki/dyncrew/internal/logging"
	"github.com/ShayCichocki/dyncrew/internal/state"
	"github.com/ShayCichocki/dyncrew/pkg/models"
)

// Designer produces a validated team design for a request.
// *analyze.Analyzer implements it.
type Designer interface {
	Analyze(ctx context.Context, prompt string, inputs map[string]string) (*models.TeamSpecification, error)
}

// Builder assembles a design into a runnable team. *factory.Factory
// implements it.
type Builder interface {
	Build(spec *models.TeamSpecification) (*crew.Team, error)
}

// TokenCounter reports cumulative model usage. *api.TokenTracker
// implements it.
type TokenCounter interface {
	Total() (input, output int64)
	Calls() int
	Cost() float64
}

// Config holds the collaborators of a System. Designer, Builder and Runtime
// are required; the rest are optional.
type Config struct {
	Designer Designer
	Builder  Builder
	Runtime  crew.Runtime

	// Tools, when set, is checked by ExecuteSpec before assembly.
	Tools analyze.ToolSet
	// DefaultProcess applies to supplied designs that omit a process.
	DefaultProcess models.ProcessMode
	// RunTimeout bounds each call, analysis included.
	RunTimeout time.Duration

	// OnDesign is called once a run's design is known and valid.
	OnDesign func(runID string, spec *models.TeamSpecification)

	History state.RunRecorder
	Tokens  TokenCounter
	Logger  *slog.Logger
}

// System is the dynamic crew entry point. It holds no per-request state and
// is safe for concurrent use.
type System struct {
	designer       Designer
	builder        Builder
	runtime        crew.Runtime
	tools          analyze.ToolSet
	defaultProcess models.ProcessMode
	runTimeout     time.Duration
	onDesign       func(string, *models.TeamSpecification)
	history        state.RunRecorder
	tokens         TokenCounter
	logger         *slog.Logger
	now            func() time.Time
}

// New creates a System.
func New(cfg Config) *System {
	mode := cfg.DefaultProcess
	if !mode.Valid() {
		mode = models.DefaultProcessMode
	}
	return &System{
		designer:       cfg.Designer,
		builder:        cfg.Builder,
		runtime:        cfg.Runtime,
		tools:          cfg.Tools,
		defaultProcess: mode,
		runTimeout:     cfg.RunTimeout,
		onDesign:       cfg.OnDesign,
		history:        cfg.History,
		tokens:         cfg.Tokens,
		logger:         logging.Component(cfg.Logger, "system"),
		now:            time.Now,
	}
}

// Result is the outcome of a run.
type Result struct {
	RunID     string
	Output    string
	Spec      *models.TeamSpecification
	TokensIn  int64
	TokensOut int64
	// APICalls counts model requests; CostUSD is their estimated price.
	APICalls int
	CostUSD  float64
	Duration time.Duration
}

// Execute designs a team for prompt, assembles it and runs it, returning
// the final text.
func (s *System) Execute(ctx context.Context, prompt string, inputs map[string]string) (string, error) {
	res, err := s.Run(ctx, prompt, inputs)
	if err != nil {
		return "", err
	}
	return res.Output, nil
}

// Run is Execute with run details.
func (s *System) Run(ctx context.Context, prompt string, inputs map[string]string) (*Result, error) {
	return s.do(ctx, state.RunExecute, prompt, inputs, func(ctx context.Context, rc *runContext) error {
		spec, err := s.designer.Analyze(ctx, prompt, inputs)
		if err != nil {
			return err
		}
		rc.spec = spec
		return s.buildAndRun(ctx, rc, prompt, inputs)
	})
}

// Design only asks for a team design.
func (s *System) Design(ctx context.Context, prompt string, inputs map[string]string) (*models.TeamSpecification, error) {
	res, err := s.do(ctx, state.RunDesign, prompt, inputs, func(ctx context.Context, rc *runContext) error {
		spec, err := s.designer.Analyze(ctx, prompt, inputs)
		if err != nil {
			return err
		}
		rc.spec = spec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res.Spec, nil
}

// ExecuteSpec assembles and runs a design supplied by the caller, skipping
// analysis. The design is validated first; the caller's copy is not
// modified.
func (s *System) ExecuteSpec(ctx context.Context, spec *models.TeamSpecification, prompt string, inputs map[string]string) (*Result, error) {
	return s.do(ctx, state.RunSpec, prompt, inputs, func(ctx context.Context, rc *runContext) error {
		if spec == nil {
			return &analyze.SpecificationValidationError{Field: "spec", Reason: "specification is empty"}
		}
		own := spec.Clone()
		mode, err := models.ParseProcessMode(string(own.Process))
		if err != nil {
			return &analyze.SpecificationValidationError{Field: "process", Reason: err.Error(), Err: err}
		}
		if own.Process == "" {
			mode = s.defaultProcess
		}
		own.Process = mode
		if err := analyze.Validate(own, s.tools); err != nil {
			return err
		}
		rc.spec = own
		return s.buildAndRun(ctx, rc, prompt, inputs)
	})
}

func (s *System) buildAndRun(ctx context.Context, rc *runContext, prompt string, inputs map[string]string) error {
	if s.onDesign != nil {
		s.onDesign(rc.id, rc.spec)
	}
	team, err := s.builder.Build(rc.spec)
	if err != nil {
		return err
	}
	team.Request = prompt
	rc.log.Info("crew assembled", "team", team.ID, "agents", len(team.Agents), "tasks", len(team.Tasks), "process", team.Process)

	out, err := s.runtime.Run(crew.WithObserver(ctx, rc.recordTask), team, inputs)
	if err != nil {
		var ee *crew.ExecutionError
		if !errors.As(err, &ee) {
			err = &crew.ExecutionError{Task: -1, Err: err}
		}
		return err
	}
	rc.output = out
	return nil
}

// runContext carries the state of one call.
type runContext struct {
	id     string
	log    *slog.Logger
	spec   *models.TeamSpecification
	output string

	recordTask crew.Observer
}

func (s *System) do(ctx context.Context, kind state.RunKind, prompt string, inputs map[string]string, fn func(context.Context, *runContext) error) (*Result, error) {
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	rc := &runContext{id: uuid.New().String()}
	rc.log = s.logger.With("run", rc.id, "kind", kind)
	rc.recordTask = s.taskRecorder(rc)

	start := s.now()
	u0 := s.readUsage()
	s.recordStart(rc, kind, prompt, inputs, start)
	rc.log.Info("run started", "inputs", len(inputs))

	err := fn(ctx, rc)

	u := s.readUsage().sub(u0)
	res := &Result{
		RunID:     rc.id,
		Output:    rc.output,
		Spec:      rc.spec,
		TokensIn:  u.in,
		TokensOut: u.out,
		APICalls:  u.calls,
		CostUSD:   u.cost,
		Duration:  s.now().Sub(start),
	}
	s.recordFinish(rc, res, err)

	if err != nil {
		rc.log.Error("run failed", "error", err, "duration", res.Duration)
		return nil, err
	}
	rc.log.Info("run finished",
		"duration", res.Duration,
		"tokens_in", res.TokensIn,
		"tokens_out", res.TokensOut,
		"api_calls", res.APICalls,
		"cost_usd", res.CostUSD)
	return res, nil
}

type usage struct {
	in, out int64
	calls   int
	cost    float64
}

func (u usage) sub(prev usage) usage {
	return usage{
		in:    u.in - prev.in,
		out:   u.out - prev.out,
		calls: u.calls - prev.calls,
		cost:  u.cost - prev.cost,
	}
}

// readUsage reads the shared counter. Concurrent runs on one client share
// it, so per-run figures are approximate in that case.
func (s *System) readUsage() usage {
	if s.tokens == nil {
		return usage{}
	}
	in, out := s.tokens.Total()
	return usage{in: in, out: out, calls: s.tokens.Calls(), cost: s.tokens.Cost()}
}

func (s *System) recordStart(rc *runContext, kind state.RunKind, prompt string, inputs map[string]string, start time.Time) {
	if s.history == nil {
		return
	}
	err := s.history.RecordStart(&state.Run{
		ID:        rc.id,
		Kind:      kind,
		Prompt:    prompt,
		Inputs:    inputs,
		StartedAt: start,
	})
	if err != nil {
		rc.log.Warn("history unavailable", "error", err)
	}
}

func (s *System) recordFinish(rc *runContext, res *Result, runErr error) {
	if s.history == nil {
		return
	}
	o := state.Outcome{
		Result:    res.Output,
		Err:       runErr,
		TokensIn:  res.TokensIn,
		TokensOut: res.TokensOut,
		APICalls:  res.APICalls,
		CostUSD:   res.CostUSD,
	}
	if res.Spec != nil {
		o.Process = string(res.Spec.Process)
		if data, err := json.Marshal(res.Spec); err == nil {
			o.Design = data
		}
	}
	if err := s.history.RecordFinish(rc.id, o, s.now()); err != nil {
		rc.log.Warn("history write failed", "error", err)
	}
}

func (s *System) taskRecorder(rc *runContext) crew.Observer {
	if s.history == nil {
		return nil
	}
	return func(e crew.Event) {
		var rec state.TaskRecord
		switch e.Type {
		case crew.EventTaskFinished:
			rec = state.TaskRecord{Index: e.Task, Agent: e.Agent, Status: state.RunSucceeded, Output: e.Output}
		case crew.EventTaskFailed:
			rec = state.TaskRecord{Index: e.Task, Agent: e.Agent, Status: state.RunFailed}
			if e.Err != nil {
				rec.Error = e.Err.Error()
			}
		default:
			return
		}
		rec.FinishedAt = s.now()
		if err := s.history.RecordTask(rc.id, rec); err != nil {
			rc.log.Warn("history write failed", "task", e.Task+1, "error", err)
		}
	}
}
