// Package crew holds the executable form of a team design and the runtime
// that drives it.
package crew

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/dyncrew/internal/tools"
	"github.com/ShayCichocki/dyncrew/pkg/models"
)

// Agent is a runnable agent. Tools are the registry's shared instances.
type Agent struct {
	Role            string
	Goal            string
	Backstory       string
	Tools           []tools.Tool
	AllowDelegation bool
}

// ToolNames returns the names of the agent's tools in order.
func (a *Agent) ToolNames() []string {
	out := make([]string, len(a.Tools))
	for i, t := range a.Tools {
		out[i] = string(t.Name())
	}
	return out
}

// Task is a unit of work bound to the agent that performs it.
type Task struct {
	// Index is the task's position in the team, 0-based.
	Index          int
	Description    string
	ExpectedOutput string
	Agent          *Agent
	// Context names earlier tasks whose output is passed in. Empty means
	// all earlier tasks.
	Context []int
}

// Team is an assembled, ready-to-run crew.
type Team struct {
	ID      string
	Agents  []*Agent
	Tasks   []*Task
	Process models.ProcessMode
	// Manager coordinates a hierarchical team; nil for sequential teams.
	Manager *Agent
	// Request is the user request the team was designed for, if known.
	Request string
}

// AgentByRole returns the team member with the given role.
func (t *Team) AgentByRole(role string) (*Agent, bool) {
	for _, a := range t.Agents {
		if a.Role == role {
			return a, true
		}
	}
	return nil, false
}

// Runtime executes an assembled team and returns its final text.
type Runtime interface {
	Run(ctx context.Context, team *Team, inputs map[string]string) (string, error)
}

// ExecutionError reports a failure while the runtime was executing a task.
// Task is -1 when the failure is not tied to a single task.
type ExecutionError struct {
	Task  int
	Agent string
	Err   error
}

func (e *ExecutionError) Error() string {
	if e.Task < 0 {
		if e.Agent != "" {
			return fmt.Sprintf("crew execution (%s): %v", e.Agent, e.Err)
		}
		return fmt.Sprintf("crew execution: %v", e.Err)
	}
	return fmt.Sprintf("task %d (%s): %v", e.Task+1, e.Agent, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
