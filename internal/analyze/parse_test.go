package analyze

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/ShayCichocki/dyncrew/pkg/models"
)

func TestParseRepairsWrappedJSON(t *testing.T) {
	want, err := Parse(solarResponse)
	if err != nil {
		t.Fatalf("Parse(plain) error = %v", err)
	}

	tests := []struct {
		name string
		raw  string
	}{
		{"json fence", "```json\n" + solarResponse + "\n```"},
		{"bare fence", "```\n" + solarResponse + "\n```"},
		{"fence with prose", "Here is the team:\n\n```json\n" + solarResponse + "\n```\n\nLet me know!"},
		{"prose only", "Sure! " + solarResponse + " Hope this helps."},
		{"surrounding whitespace", "\n\n  " + solarResponse + "\n"},
		{"placeholder after", solarResponse + "\n\nTasks use {topic} placeholders."},
		{"placeholder before", "Tasks use {topic} placeholders. Here is the team:\n" + solarResponse},
		{"placeholders both sides", "Fill {topic} in:\n" + solarResponse + "\nThen {count} more."},
		{"fence then placeholder", "```json\n" + solarResponse + "\n```\nTasks use {topic}."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Parse() = %+v, want %+v", got, want)
			}
		})
	}
}

func TestParseFailures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"prose", "No JSON here"},
		{"array", `[1, 2, 3]`},
		{"truncated", `{"agents":[{"role":"Researcher"`},
		{"wrong type", `{"agents":"Researcher","tasks":[]}`},
		{"broken inside fence", "```json\n{\"agents\": [,]}\n```"},
		{"two objects", `{"agents":[]} {"tasks":[]}`},
		{"placeholder only", "Use {topic} and {count} here."},
		{"nested object only", `{"agents": "x", "tasks": [{"description": "d"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			var pe *SpecificationParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error = %v, want *SpecificationParseError", err)
			}
			if pe.Raw != tt.raw {
				t.Errorf("Raw = %q, want %q", pe.Raw, tt.raw)
			}
		})
	}
}

func TestParsePreservesCountsAndReferences(t *testing.T) {
	raw := `{
		"agents": [
			{"role": "Data Analyst ", "goal": "crunch", "backstory": "b1", "tools": ["FileReadTool", "ExaSearchTool"], "allow_delegation": true},
			{"role": "editor", "goal": "edit", "backstory": "b2", "tools": []},
			{"role": "Editor", "goal": "approve", "backstory": "b3"}
		],
		"tasks": [
			{"description": "load {dataset}", "expected_output": "table", "agent": "Data Analyst "},
			{"description": "draft", "expected_output": "text", "agent": "editor", "context": [0]},
			{"description": "approve", "expected_output": "ok", "agent": 2, "context": [0, 1]},
			{"description": "legacy", "expected_output": "x", "agent_role": "Editor"}
		],
		"manager": "Editor",
		"future_field": {"ignored": true}
	}`

	spec, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(spec.Agents) != 3 || len(spec.Tasks) != 4 {
		t.Fatalf("got %d agents, %d tasks", len(spec.Agents), len(spec.Tasks))
	}
	if spec.Agents[0].Role != "Data Analyst " {
		t.Errorf("role not preserved verbatim: %q", spec.Agents[0].Role)
	}
	if !reflect.DeepEqual(spec.Agents[0].Tools, []string{"FileReadTool", "ExaSearchTool"}) {
		t.Errorf("tools = %v", spec.Agents[0].Tools)
	}
	if !spec.Agents[0].AllowDelegation {
		t.Error("allow_delegation lost")
	}
	if spec.Tasks[0].Description != "load {dataset}" {
		t.Errorf("description = %q", spec.Tasks[0].Description)
	}
	if spec.Tasks[2].Agent != models.IndexRef(2) {
		t.Errorf("index reference = %+v", spec.Tasks[2].Agent)
	}
	if spec.Tasks[3].Agent != models.RoleRef("Editor") {
		t.Errorf("agent_role alias = %+v", spec.Tasks[3].Agent)
	}
	if !reflect.DeepEqual(spec.Tasks[2].Context, []int{0, 1}) {
		t.Errorf("context = %v", spec.Tasks[2].Context)
	}
	if spec.Manager != "Editor" {
		t.Errorf("manager = %q", spec.Manager)
	}
	if err := Validate(spec, nil); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	spec, err := Parse(solarResponse)
	if err != nil {
		t.Fatal(err)
	}
	data, err := Marshal(spec)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"agent": "Researcher"`) {
		t.Errorf("marshaled output should use the agent key:\n%s", data)
	}
	back, err := Parse(string(data))
	if err != nil {
		t.Fatalf("Parse(Marshal()) error = %v", err)
	}
	if !reflect.DeepEqual(back, spec) {
		t.Errorf("round trip changed the design")
	}
}
