// Package factory assembles a validated team design into a runnable crew,
// binding tool names to the registry's shared instances.
package factory

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ShayCichocki/dyncrew/internal/crew"
	"github.com/ShayCichocki/dyncrew/internal/logging"
	"github.com/ShayCichocki/dyncrew/internal/tools"
	"github.com/ShayCichocki/dyncrew/pkg/models"
)

// ManagerRole is the role of the manager synthesized for hierarchical teams
// that do not name one.
const ManagerRole = "Crew Manager"

// UnknownToolError reports a tool name missing from the registry.
type UnknownToolError = tools.UnknownToolError

// AssemblyError reports any other failure while building a crew.
type AssemblyError struct {
	Field string
	Err   error
}

func (e *AssemblyError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("assemble crew: %v", e.Err)
	}
	return fmt.Sprintf("assemble crew: %s: %v", e.Field, e.Err)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

// Resolver maps tool names to shared tool instances. *tools.Registry
// implements it.
type Resolver interface {
	Resolve(agent string, names []string) ([]tools.Tool, error)
}

// Factory builds crews against a fixed tool registry.
type Factory struct {
	tools  Resolver
	logger *slog.Logger
}

// New creates a Factory.
func New(registry Resolver, logger *slog.Logger) *Factory {
	return &Factory{tools: registry, logger: logging.Component(logger, "factory")}
}

// Build converts a design into a crew. It is all-or-nothing: on any error
// the returned team is nil.
func (f *Factory) Build(spec *models.TeamSpecification) (*crew.Team, error) {
	if spec == nil {
		return nil, &AssemblyError{Err: errors.New("no specification")}
	}
	if len(spec.Agents) == 0 {
		return nil, &AssemblyError{Field: "agents", Err: errors.New("no agents")}
	}
	if len(spec.Tasks) == 0 {
		return nil, &AssemblyError{Field: "tasks", Err: errors.New("no tasks")}
	}

	process, err := models.ParseProcessMode(string(spec.Process))
	if err != nil {
		return nil, &AssemblyError{Field: "process", Err: err}
	}

	agents := make([]*crew.Agent, len(spec.Agents))
	seen := make(map[string]bool, len(spec.Agents))
	for i, as := range spec.Agents {
		if seen[as.Role] {
			return nil, &AssemblyError{Field: fmt.Sprintf("agents[%d].role", i), Err: fmt.Errorf("duplicate role %q", as.Role)}
		}
		seen[as.Role] = true

		bound, err := f.tools.Resolve(as.Role, as.Tools)
		if err != nil {
			f.logger.Warn("tool resolution failed", "agent", as.Role, "error", err)
			return nil, err
		}
		agents[i] = &crew.Agent{
			Role:            as.Role,
			Goal:            as.Goal,
			Backstory:       as.Backstory,
			Tools:           bound,
			AllowDelegation: as.AllowDelegation,
		}
	}

	tasks := make([]*crew.Task, len(spec.Tasks))
	for i, ts := range spec.Tasks {
		idx, ok := spec.ResolveAgent(ts.Agent)
		if !ok {
			return nil, &AssemblyError{Field: fmt.Sprintf("tasks[%d].agent", i), Err: fmt.Errorf("no agent %q", ts.Agent)}
		}
		for _, c := range ts.Context {
			if c < 0 || c >= i {
				return nil, &AssemblyError{Field: fmt.Sprintf("tasks[%d].context", i), Err: fmt.Errorf("task %d is not an earlier task", c)}
			}
		}
		tasks[i] = &crew.Task{
			Index:          i,
			Description:    ts.Description,
			ExpectedOutput: ts.ExpectedOutput,
			Agent:          agents[idx],
			Context:        append([]int(nil), ts.Context...),
		}
	}

	team := &crew.Team{
		ID:      uuid.New().String(),
		Agents:  agents,
		Tasks:   tasks,
		Process: process,
	}

	if process == models.ProcessHierarchical {
		manager, err := f.manager(spec, team)
		if err != nil {
			return nil, err
		}
		team.Manager = manager
	}

	f.logger.Debug("crew assembled",
		"team", team.ID,
		"agents", len(agents),
		"tasks", len(tasks),
		"process", process)
	return team, nil
}

// manager picks the named manager agent, or synthesizes one without tools.
func (f *Factory) manager(spec *models.TeamSpecification, team *crew.Team) (*crew.Agent, error) {
	if spec.Manager != "" {
		a, ok := team.AgentByRole(spec.Manager)
		if !ok {
			return nil, &AssemblyError{Field: "manager", Err: fmt.Errorf("no agent %q", spec.Manager)}
		}
		return a, nil
	}
	return &crew.Agent{
		Role:      ManagerRole,
		Goal:      "Coordinate the team so the request is answered completely and accurately",
		Backstory: "You are an experienced project lead who knows how to get the best out of specialists.",
	}, nil
}
