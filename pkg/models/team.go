package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ProcessMode selects how the execution runtime schedules a team's tasks.
type ProcessMode string

const (
	// ProcessSequential runs tasks one after another in declaration order.
	ProcessSequential ProcessMode = "sequential"
	// ProcessHierarchical lets a manager agent route tasks; order is a priority hint.
	ProcessHierarchical ProcessMode = "hierarchical"
)

// DefaultProcessMode is used when a team design omits the process field.
const DefaultProcessMode = ProcessSequential

// Valid returns true if the mode is a known value.
func (m ProcessMode) Valid() bool {
	switch m {
	case ProcessSequential, ProcessHierarchical:
		return true
	default:
		return false
	}
}

// ParseProcessMode converts a user or model supplied string into a ProcessMode.
// Matching is case-insensitive; an empty string yields DefaultProcessMode.
func ParseProcessMode(s string) (ProcessMode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultProcessMode, nil
	}
	m := ProcessMode(strings.ToLower(s))
	if !m.Valid() {
		return "", fmt.Errorf("unknown process mode %q (want sequential or hierarchical)", s)
	}
	return m, nil
}

// AgentSpec describes one agent in a team design.
type AgentSpec struct {
	// Role is the agent's unique name within the team.
	Role string `json:"role" yaml:"role"`
	// Goal is what the agent is trying to achieve.
	Goal string `json:"goal" yaml:"goal"`
	// Backstory gives the agent its persona.
	Backstory string `json:"backstory" yaml:"backstory"`
	// Tools lists registry tool names, exact case.
	Tools []string `json:"tools" yaml:"tools"`
	// AllowDelegation lets a manager hand this agent's tasks to other agents.
	AllowDelegation bool `json:"allow_delegation,omitempty" yaml:"allow_delegation,omitempty"`
}

// AgentRef points a task at an agent, either by role or by position in the
// agents list.
type AgentRef struct {
	Role  string
	Index int
	// ByIndex is set when the reference was given as a number.
	ByIndex bool
}

// RoleRef returns a reference to the agent with the given role.
func RoleRef(role string) AgentRef {
	return AgentRef{Role: role}
}

// IndexRef returns a reference to the agent at position i.
func IndexRef(i int) AgentRef {
	return AgentRef{Index: i, ByIndex: true}
}

// IsZero reports whether the reference is unset.
func (r AgentRef) IsZero() bool {
	return !r.ByIndex && r.Role == ""
}

// String renders the reference the way it appeared in the design.
func (r AgentRef) String() string {
	if r.ByIndex {
		return "#" + strconv.Itoa(r.Index)
	}
	return r.Role
}

// MarshalJSON writes the reference as a string role or an integer index.
func (r AgentRef) MarshalJSON() ([]byte, error) {
	if r.ByIndex {
		return json.Marshal(r.Index)
	}
	return json.Marshal(r.Role)
}

// UnmarshalJSON accepts either a role string or an integer index.
func (r *AgentRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = AgentRef{}
		return nil
	}
	if data[0] == '"' {
		var role string
		if err := json.Unmarshal(data, &role); err != nil {
			return err
		}
		*r = RoleRef(role)
		return nil
	}
	var idx int
	if err := json.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("agent reference must be a role string or an index: %w", err)
	}
	*r = IndexRef(idx)
	return nil
}

// MarshalYAML writes the reference as a role string or an integer index.
func (r AgentRef) MarshalYAML() (interface{}, error) {
	if r.ByIndex {
		return r.Index, nil
	}
	return r.Role, nil
}

// UnmarshalYAML accepts either a role string or an integer index.
func (r *AgentRef) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var idx int
	if err := unmarshal(&idx); err == nil {
		*r = IndexRef(idx)
		return nil
	}
	var role string
	if err := unmarshal(&role); err != nil {
		return fmt.Errorf("agent reference must be a role string or an index: %w", err)
	}
	*r = RoleRef(role)
	return nil
}

// TaskSpec describes one unit of work and the agent responsible for it.
type TaskSpec struct {
	// Description says what to do; may contain {input} placeholders.
	Description string `json:"description" yaml:"description"`
	// ExpectedOutput describes what a finished task produces.
	ExpectedOutput string `json:"expected_output" yaml:"expected_output"`
	// Agent references the AgentSpec that performs the task.
	Agent AgentRef `json:"agent" yaml:"agent"`
	// Context lists earlier tasks (0-based) whose output this task needs.
	Context []int `json:"context,omitempty" yaml:"context,omitempty"`
}

// UnmarshalJSON decodes a task, accepting the legacy "agent_role" key as an
// alias for "agent".
func (t *TaskSpec) UnmarshalJSON(data []byte) error {
	type plain TaskSpec
	var aux struct {
		plain
		AgentRole *AgentRef `json:"agent_role"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*t = TaskSpec(aux.plain)
	if t.Agent.IsZero() && aux.AgentRole != nil {
		t.Agent = *aux.AgentRole
	}
	return nil
}

// UnmarshalYAML is the YAML counterpart of UnmarshalJSON.
func (t *TaskSpec) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type plain TaskSpec
	var aux struct {
		plain     `yaml:",inline"`
		AgentRole *AgentRef `yaml:"agent_role"`
	}
	if err := unmarshal(&aux); err != nil {
		return err
	}
	*t = TaskSpec(aux.plain)
	if t.Agent.IsZero() && aux.AgentRole != nil {
		t.Agent = *aux.AgentRole
	}
	return nil
}

// TeamSpecification is the parsed and validated team design for one request.
type TeamSpecification struct {
	Agents  []AgentSpec `json:"agents" yaml:"agents"`
	Tasks   []TaskSpec  `json:"tasks" yaml:"tasks"`
	Process ProcessMode `json:"process,omitempty" yaml:"process,omitempty"`
	// Manager optionally names the role that coordinates a hierarchical team.
	Manager string `json:"manager,omitempty" yaml:"manager,omitempty"`
}

// AgentByRole returns the agent with the given role.
func (s *TeamSpecification) AgentByRole(role string) (*AgentSpec, bool) {
	for i := range s.Agents {
		if s.Agents[i].Role == role {
			return &s.Agents[i], true
		}
	}
	return nil, false
}

// ResolveAgent returns the index of the agent a reference points at.
func (s *TeamSpecification) ResolveAgent(ref AgentRef) (int, bool) {
	if ref.ByIndex {
		if ref.Index < 0 || ref.Index >= len(s.Agents) {
			return -1, false
		}
		return ref.Index, true
	}
	for i := range s.Agents {
		if s.Agents[i].Role == ref.Role {
			return i, true
		}
	}
	return -1, false
}

// Clone returns a deep copy of the specification.
func (s *TeamSpecification) Clone() *TeamSpecification {
	if s == nil {
		return nil
	}
	out := &TeamSpecification{
		Agents:  make([]AgentSpec, len(s.Agents)),
		Tasks:   make([]TaskSpec, len(s.Tasks)),
		Process: s.Process,
		Manager: s.Manager,
	}
	for i, a := range s.Agents {
		a.Tools = append([]string(nil), a.Tools...)
		out.Agents[i] = a
	}
	for i, t := range s.Tasks {
		t.Context = append([]int(nil), t.Context...)
		out.Tasks[i] = t
	}
	return out
}
