package crew

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ShayCichocki/dyncrew/internal/api"
	"github.com/ShayCichocki/dyncrew/internal/logging"
	"github.com/ShayCichocki/dyncrew/internal/tools"
	"github.com/ShayCichocki/dyncrew/pkg/models"
)

// AgentRunner runs one agent turn to completion. *api.AgentLoop implements it.
type AgentRunner interface {
	RunAgent(ctx context.Context, systemPrompt, userPrompt string, tools []api.Tool) (string, error)
}

// LoopRuntimeConfig configures a LoopRuntime.
type LoopRuntimeConfig struct {
	Runner   AgentRunner
	Observer Observer
	Logger   *slog.Logger
}

// LoopRuntime executes teams by driving each agent through an AgentRunner.
// It keeps no state between runs and is safe for concurrent use.
type LoopRuntime struct {
	runner   AgentRunner
	observer Observer
	logger   *slog.Logger
}

// NewLoopRuntime creates a runtime around the given runner.
func NewLoopRuntime(cfg LoopRuntimeConfig) *LoopRuntime {
	return &LoopRuntime{
		runner:   cfg.Runner,
		observer: cfg.Observer,
		logger:   logging.Component(cfg.Logger, "crew"),
	}
}

func (r *LoopRuntime) emit(ctx context.Context, e Event) {
	if r.observer != nil {
		r.observer(e)
	}
	if o := observerFrom(ctx); o != nil {
		o(e)
	}
}

// Run executes the team's tasks according to its process mode and returns
// the final text. Sequential teams return the last task's output;
// hierarchical teams return the manager's synthesis.
func (r *LoopRuntime) Run(ctx context.Context, team *Team, inputs map[string]string) (string, error) {
	if team == nil || len(team.Tasks) == 0 {
		return "", &ExecutionError{Task: -1, Err: errors.New("team has no tasks")}
	}

	start := time.Now()
	log := r.logger.With("team", team.ID, "process", team.Process)
	log.Info("crew started", "agents", len(team.Agents), "tasks", len(team.Tasks))

	var (
		result string
		err    error
	)
	switch team.Process {
	case models.ProcessHierarchical:
		result, err = r.runHierarchical(ctx, log, team, inputs)
	case models.ProcessSequential, "":
		result, err = r.runSequential(ctx, log, team, inputs)
	default:
		err = &ExecutionError{Task: -1, Err: fmt.Errorf("unsupported process %q", team.Process)}
	}
	if err != nil {
		log.Error("crew failed", "error", err, "duration", time.Since(start))
		return "", err
	}

	log.Info("crew finished", "duration", time.Since(start))
	r.emit(ctx, Event{Type: EventDone, Task: -1, Total: len(team.Tasks), Output: result})
	return result, nil
}

func (r *LoopRuntime) runSequential(ctx context.Context, log *slog.Logger, team *Team, inputs map[string]string) (string, error) {
	rep := interpolator(inputs)
	outputs := make([]priorOutput, 0, len(team.Tasks))

	for _, task := range team.Tasks {
		out, err := r.runTask(ctx, log, team, task, task.Agent, rep, outputs)
		if err != nil {
			return "", err
		}
		outputs = append(outputs, priorOutput{task: task, output: out})
	}
	return outputs[len(outputs)-1].output, nil
}

func (r *LoopRuntime) runHierarchical(ctx context.Context, log *slog.Logger, team *Team, inputs map[string]string) (string, error) {
	if team.Manager == nil {
		return "", &ExecutionError{Task: -1, Err: errors.New("hierarchical team has no manager")}
	}
	rep := interpolator(inputs)
	manager := team.Manager
	outputs := make([]priorOutput, 0, len(team.Tasks))

	for _, task := range team.Tasks {
		assignee, err := r.route(ctx, log, team, task, rep)
		if err != nil {
			return "", err
		}
		out, err := r.runTask(ctx, log, team, task, assignee, rep, outputs)
		if err != nil {
			return "", err
		}
		outputs = append(outputs, priorOutput{task: task, output: out})
	}

	r.emit(ctx, Event{Type: EventSynthesis, Task: -1, Total: len(team.Tasks), Agent: manager.Role})
	final, err := r.runner.RunAgent(ctx, managerSystemPrompt(manager, rep), synthesisPrompt(rep.Replace(team.Request), outputs), nil)
	if err != nil {
		return "", &ExecutionError{Task: -1, Agent: manager.Role, Err: err}
	}
	return final, nil
}

// route asks the manager who should perform a task. Only a task whose
// assigned agent allows delegation can move; an answer naming anyone outside
// the candidate list keeps the original assignment.
func (r *LoopRuntime) route(ctx context.Context, log *slog.Logger, team *Team, task *Task, rep *strings.Replacer) (*Agent, error) {
	if !task.Agent.AllowDelegation || len(team.Agents) < 2 {
		return task.Agent, nil
	}

	candidates := make([]*Agent, 0, len(team.Agents))
	candidates = append(candidates, task.Agent)
	for _, a := range team.Agents {
		if a != task.Agent && a != team.Manager {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) < 2 {
		return task.Agent, nil
	}

	answer, err := r.runner.RunAgent(ctx, managerSystemPrompt(team.Manager, rep), routingPrompt(task, rep, candidates), nil)
	if err != nil {
		return nil, &ExecutionError{Task: task.Index, Agent: team.Manager.Role, Err: fmt.Errorf("route task: %w", err)}
	}

	chosen := matchRole(answer, candidates)
	if chosen == nil {
		log.Warn("manager named no candidate, keeping assignment",
			"task", task.Index+1, "answer", truncate(answer, 80), "agent", task.Agent.Role)
		return task.Agent, nil
	}
	if chosen != task.Agent {
		log.Info("task delegated", "task", task.Index+1, "from", task.Agent.Role, "to", chosen.Role)
		r.emit(ctx, Event{Type: EventDelegated, Task: task.Index, Total: len(team.Tasks), Agent: chosen.Role})
	}
	return chosen, nil
}

// matchRole finds the candidate named by a free-text answer: an exact match
// first, then a case-insensitive one, then the longest role the answer
// mentions.
func matchRole(answer string, candidates []*Agent) *Agent {
	answer = strings.Trim(strings.TrimSpace(answer), "\"'`.")
	for _, a := range candidates {
		if a.Role == answer {
			return a
		}
	}
	for _, a := range candidates {
		if strings.EqualFold(a.Role, answer) {
			return a
		}
	}
	lower := strings.ToLower(answer)
	var best *Agent
	for _, a := range candidates {
		if strings.Contains(lower, strings.ToLower(a.Role)) && (best == nil || len(a.Role) > len(best.Role)) {
			best = a
		}
	}
	return best
}

func (r *LoopRuntime) runTask(ctx context.Context, log *slog.Logger, team *Team, task *Task, agent *Agent, rep *strings.Replacer, prior []priorOutput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &ExecutionError{Task: task.Index, Agent: agent.Role, Err: err}
	}

	total := len(team.Tasks)
	r.emit(ctx, Event{Type: EventTaskStarted, Task: task.Index, Total: total, Agent: agent.Role})
	log.Debug("task started", "task", task.Index+1, "agent", agent.Role, "tools", len(agent.Tools))

	start := time.Now()
	out, err := r.runner.RunAgent(ctx,
		agentSystemPrompt(agent, rep),
		taskPrompt(task, rep, contextFor(task, prior)),
		tools.AsAPITools(agent.Tools))
	if err != nil {
		r.emit(ctx, Event{Type: EventTaskFailed, Task: task.Index, Total: total, Agent: agent.Role, Err: err})
		return "", &ExecutionError{Task: task.Index, Agent: agent.Role, Err: err}
	}

	log.Info("task finished", "task", task.Index+1, "agent", agent.Role, "duration", time.Since(start))
	r.emit(ctx, Event{Type: EventTaskFinished, Task: task.Index, Total: total, Agent: agent.Role, Output: out})
	return out, nil
}

// contextFor selects the prior outputs a task sees: those named by its
// context hint, or all of them.
func contextFor(task *Task, prior []priorOutput) []priorOutput {
	if len(task.Context) == 0 {
		return prior
	}
	out := make([]priorOutput, 0, len(task.Context))
	for _, idx := range task.Context {
		if idx >= 0 && idx < len(prior) {
			out = append(out, prior[idx])
		}
	}
	return out
}

// truncate shortens s to at most n bytes plus an ellipsis, never splitting
// a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
