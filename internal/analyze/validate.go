package analyze

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/dyncrew/internal/tools"
	"github.com/ShayCichocki/dyncrew/pkg/models"
)

// ToolSet reports which tool names exist.
type ToolSet interface {
	Has(name string) bool
}

// Validate checks a decoded design for missing fields and dangling
// references. A nil known skips the tool-name check. An empty process is
// accepted and means the default mode.
func Validate(spec *models.TeamSpecification, known ToolSet) error {
	if spec == nil {
		return invalid("", "specification is empty")
	}

	if len(spec.Agents) == 0 {
		return invalid("agents", "at least one agent is required")
	}

	roles := make(map[string]int, len(spec.Agents))
	for i, a := range spec.Agents {
		field := fmt.Sprintf("agents[%d]", i)
		if blank(a.Role) {
			return invalid(field+".role", "is required")
		}
		if blank(a.Goal) {
			return invalid(field+".goal", "is required")
		}
		if blank(a.Backstory) {
			return invalid(field+".backstory", "is required")
		}
		if prev, dup := roles[a.Role]; dup {
			return invalid(field+".role", fmt.Sprintf("duplicate role %q (also agents[%d])", a.Role, prev))
		}
		roles[a.Role] = i

		seen := make(map[string]bool, len(a.Tools))
		for j, name := range a.Tools {
			tf := fmt.Sprintf("%s.tools[%d]", field, j)
			if seen[name] {
				return invalid(tf, fmt.Sprintf("tool %q listed twice", name))
			}
			seen[name] = true
			if known != nil && !known.Has(name) {
				return &SpecificationValidationError{
					Field:  tf,
					Reason: fmt.Sprintf("unknown tool %q", name),
					Err:    &tools.UnknownToolError{Tool: name, Agent: a.Role},
				}
			}
		}
	}

	if len(spec.Tasks) == 0 {
		return invalid("tasks", "at least one task is required")
	}

	for i, t := range spec.Tasks {
		field := fmt.Sprintf("tasks[%d]", i)
		if blank(t.Description) {
			return invalid(field+".description", "is required")
		}
		if blank(t.ExpectedOutput) {
			return invalid(field+".expected_output", "is required")
		}
		if t.Agent.IsZero() {
			return invalid(field+".agent", "is required")
		}
		if _, ok := spec.ResolveAgent(t.Agent); !ok {
			return invalid(field+".agent", fmt.Sprintf("no agent %q", t.Agent))
		}
		for j, c := range t.Context {
			if c < 0 || c >= i {
				return invalid(fmt.Sprintf("%s.context[%d]", field, j),
					fmt.Sprintf("task %d is not an earlier task", c))
			}
		}
	}

	if spec.Process != "" && !spec.Process.Valid() {
		return invalid("process", fmt.Sprintf("unknown process %q (want sequential or hierarchical)", spec.Process))
	}

	if spec.Manager != "" {
		if _, ok := roles[spec.Manager]; !ok {
			return invalid("manager", fmt.Sprintf("no agent %q", spec.Manager))
		}
	}

	return nil
}

func invalid(field, reason string) *SpecificationValidationError {
	return &SpecificationValidationError{Field: field, Reason: reason}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
