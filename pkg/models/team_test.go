package models

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestProcessMode_Valid(t *testing.T) {
	tests := []struct {
		name string
		mode ProcessMode
		want bool
	}{
		{"sequential is valid", ProcessSequential, true},
		{"hierarchical is valid", ProcessHierarchical, true},
		{"empty is invalid", ProcessMode(""), false},
		{"consensus is invalid", ProcessMode("consensus"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.mode.Valid(); got != tt.want {
				t.Errorf("ProcessMode(%q).Valid() = %v, want %v", tt.mode, got, tt.want)
			}
		})
	}
}

func TestParseProcessMode(t *testing.T) {
	tests := []struct {
		in      string
		want    ProcessMode
		wantErr bool
	}{
		{"", DefaultProcessMode, false},
		{"sequential", ProcessSequential, false},
		{"Hierarchical", ProcessHierarchical, false},
		{"  SEQUENTIAL ", ProcessSequential, false},
		{"parallel", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProcessMode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseProcessMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseProcessMode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDefaultProcessMode_IsSequential(t *testing.T) {
	if DefaultProcessMode != ProcessSequential {
		t.Errorf("DefaultProcessMode = %q, want %q", DefaultProcessMode, ProcessSequential)
	}
}

func TestAgentRef_UnmarshalJSON(t *testing.T) {
	var byRole AgentRef
	if err := json.Unmarshal([]byte(`"Researcher"`), &byRole); err != nil {
		t.Fatalf("unmarshal role: %v", err)
	}
	if byRole.ByIndex || byRole.Role != "Researcher" {
		t.Errorf("role ref = %+v, want role Researcher", byRole)
	}

	var byIndex AgentRef
	if err := json.Unmarshal([]byte(`1`), &byIndex); err != nil {
		t.Fatalf("unmarshal index: %v", err)
	}
	if !byIndex.ByIndex || byIndex.Index != 1 {
		t.Errorf("index ref = %+v, want index 1", byIndex)
	}

	var bad AgentRef
	if err := json.Unmarshal([]byte(`{"role":"x"}`), &bad); err == nil {
		t.Error("expected error for object agent reference")
	}
}

func TestTaskSpec_AcceptsAgentRoleAlias(t *testing.T) {
	var task TaskSpec
	data := `{"description":"d","expected_output":"o","agent_role":"Writer"}`
	if err := json.Unmarshal([]byte(data), &task); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if task.Agent.Role != "Writer" {
		t.Errorf("Agent = %q, want Writer", task.Agent.Role)
	}
	if task.Description != "d" || task.ExpectedOutput != "o" {
		t.Errorf("task fields not decoded: %+v", task)
	}
}

func TestTaskSpec_AgentTakesPrecedenceOverAlias(t *testing.T) {
	var task TaskSpec
	data := `{"description":"d","expected_output":"o","agent":"Editor","agent_role":"Writer"}`
	if err := json.Unmarshal([]byte(data), &task); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if task.Agent.Role != "Editor" {
		t.Errorf("Agent = %q, want Editor", task.Agent.Role)
	}
}

func TestTaskSpec_YAMLAcceptsAgentRoleAlias(t *testing.T) {
	tests := []struct {
		name string
		data string
		want AgentRef
	}{
		{"alias role", "description: d\nexpected_output: o\nagent_role: Writer\ncontext: [0]\n", RoleRef("Writer")},
		{"alias index", "description: d\nexpected_output: o\nagent_role: 1\ncontext: [0]\n", IndexRef(1)},
		{"agent wins", "description: d\nexpected_output: o\nagent: Editor\nagent_role: Writer\ncontext: [0]\n", RoleRef("Editor")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var task TaskSpec
			if err := yaml.Unmarshal([]byte(tt.data), &task); err != nil {
				t.Fatalf("yaml unmarshal: %v", err)
			}
			if task.Agent != tt.want {
				t.Errorf("Agent = %+v, want %+v", task.Agent, tt.want)
			}
			if task.Description != "d" || task.ExpectedOutput != "o" || len(task.Context) != 1 {
				t.Errorf("task fields not decoded: %+v", task)
			}
		})
	}
}

func TestTeamSpecification_ResolveAgent(t *testing.T) {
	spec := &TeamSpecification{
		Agents: []AgentSpec{{Role: "Researcher"}, {Role: "Writer"}},
	}

	tests := []struct {
		name   string
		ref    AgentRef
		want   int
		wantOK bool
	}{
		{"by role", RoleRef("Writer"), 1, true},
		{"by index", IndexRef(0), 0, true},
		{"role is exact case", RoleRef("writer"), -1, false},
		{"index out of range", IndexRef(2), -1, false},
		{"negative index", IndexRef(-1), -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := spec.ResolveAgent(tt.ref)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ResolveAgent(%v) = (%d, %v), want (%d, %v)", tt.ref, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestTeamSpecification_CloneIsDeep(t *testing.T) {
	spec := &TeamSpecification{
		Agents:  []AgentSpec{{Role: "Researcher", Tools: []string{"ExaSearchTool"}}},
		Tasks:   []TaskSpec{{Description: "find", Agent: RoleRef("Researcher"), Context: []int{0}}},
		Process: ProcessHierarchical,
		Manager: "Researcher",
	}

	clone := spec.Clone()
	clone.Agents[0].Tools[0] = "changed"
	clone.Tasks[0].Context[0] = 9

	if spec.Agents[0].Tools[0] != "ExaSearchTool" {
		t.Error("Clone shares the tools slice with the original")
	}
	if spec.Tasks[0].Context[0] != 0 {
		t.Error("Clone shares the context slice with the original")
	}
	if clone.Process != ProcessHierarchical || clone.Manager != "Researcher" {
		t.Errorf("Clone lost scalar fields: %+v", clone)
	}
}

func TestTeamSpecification_YAMLRoundTrip(t *testing.T) {
	data := `
agents:
  - role: Researcher
    goal: find articles
    backstory: curious
    tools: [ExaSearchTool]
tasks:
  - description: find 3 articles
    expected_output: list of links
    agent: Researcher
  - description: summarize
    expected_output: summary
    agent: 0
process: hierarchical
`
	var spec TeamSpecification
	if err := yaml.Unmarshal([]byte(data), &spec); err != nil {
		t.Fatalf("yaml unmarshal: %v", err)
	}
	if spec.Tasks[0].Agent.Role != "Researcher" {
		t.Errorf("task 0 agent = %v, want Researcher", spec.Tasks[0].Agent)
	}
	if !spec.Tasks[1].Agent.ByIndex || spec.Tasks[1].Agent.Index != 0 {
		t.Errorf("task 1 agent = %+v, want index 0", spec.Tasks[1].Agent)
	}
	if spec.Process != ProcessHierarchical {
		t.Errorf("Process = %q, want hierarchical", spec.Process)
	}
}
