package analyze

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ShayCichocki/dyncrew/internal/api"
	"github.com/ShayCichocki/dyncrew/internal/tools"
	"github.com/ShayCichocki/dyncrew/pkg/models"
)

const solarResponse = `{"agents":[{"role":"Researcher","goal":"find articles","backstory":"...","tools":["ExaSearchTool"]},{"role":"Writer","goal":"summarize","backstory":"...","tools":[]}],"tasks":[{"description":"find 3 articles","expected_output":"list of links","agent":"Researcher"},{"description":"summarize them","expected_output":"short summary","agent":"Writer"}],"process":"sequential"}`

// fakeCompleter returns a canned response and records what it was sent.
type fakeCompleter struct {
	response string
	err      error

	calls  int
	system string
	user   string
}

func (f *fakeCompleter) RunWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	f.system = systemPrompt
	f.user = userPrompt
	return f.response, f.err
}

func testRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	r, err := tools.NewRegistry(
		tools.NewExaSearchTool(tools.ExaConfig{APIKey: "test"}),
		tools.NewWebsiteSearchTool(tools.WebsiteConfig{}),
		tools.NewFileReadTool(t.TempDir()),
	)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestAnalyzeSolarScenario(t *testing.T) {
	fc := &fakeCompleter{response: solarResponse}
	a := New(fc, testRegistry(t), Options{})

	spec, err := a.Analyze(context.Background(), "Summarize three news articles about solar energy", nil)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if fc.calls != 1 {
		t.Errorf("completer called %d times, want 1", fc.calls)
	}
	if len(spec.Agents) != 2 || len(spec.Tasks) != 2 {
		t.Fatalf("got %d agents, %d tasks; want 2, 2", len(spec.Agents), len(spec.Tasks))
	}
	if spec.Process != models.ProcessSequential {
		t.Errorf("Process = %q", spec.Process)
	}
	if spec.Tasks[0].Agent.Role != "Researcher" || spec.Tasks[1].Agent.Role != "Writer" {
		t.Errorf("task bindings = %v, %v", spec.Tasks[0].Agent, spec.Tasks[1].Agent)
	}
	if got := spec.Agents[0].Tools; len(got) != 1 || got[0] != "ExaSearchTool" {
		t.Errorf("Researcher tools = %v", got)
	}
}

func TestAnalyzeRequestContents(t *testing.T) {
	fc := &fakeCompleter{response: solarResponse}
	a := New(fc, testRegistry(t), Options{})

	inputs := map[string]string{"topic": "solar", "audience": "students"}
	if _, err := a.Analyze(context.Background(), "Write a guide", inputs); err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		"- ExaSearchTool (advanced semantic web search)",
		"- FileReadTool (file reading)",
		"- WebsiteSearchTool (website content extraction)",
		"2-5 agents",
	} {
		if !strings.Contains(fc.system, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}

	wantUser := "Design an optimal AI agent team for this goal: Write a guide\n\n" +
		"Inputs (available to tasks as {key} placeholders):\n" +
		"audience: students\n" +
		"topic: solar"
	if fc.user != wantUser {
		t.Errorf("user message =\n%q\nwant\n%q", fc.user, wantUser)
	}
}

func TestAnalyzeSurfacesCompleterErrors(t *testing.T) {
	providerErr := &api.ProviderError{Provider: api.ProviderAnthropic, StatusCode: 429, Message: "rate limited"}
	fc := &fakeCompleter{err: providerErr}
	a := New(fc, testRegistry(t), Options{})

	_, err := a.Analyze(context.Background(), "anything", nil)
	var pe *api.ProviderError
	if !errors.As(err, &pe) || !pe.RateLimited() {
		t.Fatalf("error = %v, want rate-limited *api.ProviderError", err)
	}
	if fc.calls != 1 {
		t.Errorf("completer called %d times; provider errors must not be retried", fc.calls)
	}
}

func TestAnalyzeEmptyPrompt(t *testing.T) {
	fc := &fakeCompleter{response: solarResponse}
	a := New(fc, testRegistry(t), Options{})

	if _, err := a.Analyze(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty prompt")
	}
	if fc.calls != 0 {
		t.Error("model should not be called for an empty prompt")
	}
}

func TestAnalyzeProcessDefaults(t *testing.T) {
	omitted := strings.Replace(solarResponse, `,"process":"sequential"`, "", 1)

	tests := []struct {
		name     string
		response string
		opts     Options
		want     models.ProcessMode
	}{
		{"omitted uses sequential", omitted, Options{}, models.ProcessSequential},
		{"omitted uses configured default", omitted, Options{DefaultProcess: models.ProcessHierarchical}, models.ProcessHierarchical},
		{"case folded", strings.Replace(solarResponse, `"sequential"`, `"Hierarchical"`, 1), Options{}, models.ProcessHierarchical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(&fakeCompleter{response: tt.response}, testRegistry(t), tt.opts)
			spec, err := a.Analyze(context.Background(), "p", nil)
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if spec.Process != tt.want {
				t.Errorf("Process = %q, want %q", spec.Process, tt.want)
			}
		})
	}
}

func TestAnalyzeUnknownProcess(t *testing.T) {
	resp := strings.Replace(solarResponse, `"sequential"`, `"parallel"`, 1)
	a := New(&fakeCompleter{response: resp}, testRegistry(t), Options{})

	_, err := a.Analyze(context.Background(), "p", nil)
	var ve *SpecificationValidationError
	if !errors.As(err, &ve) || ve.Field != "process" {
		t.Fatalf("error = %v, want validation error on process", err)
	}
}

func TestAnalyzeUnknownTool(t *testing.T) {
	resp := strings.Replace(solarResponse, `"ExaSearchTool"`, `"NoSuchTool"`, 1)
	a := New(&fakeCompleter{response: resp}, testRegistry(t), Options{})

	spec, err := a.Analyze(context.Background(), "Summarize three news articles about solar energy", nil)
	if spec != nil {
		t.Error("no specification should be returned on failure")
	}
	var ute *tools.UnknownToolError
	if !errors.As(err, &ute) {
		t.Fatalf("error = %v, want *tools.UnknownToolError", err)
	}
	if ute.Tool != "NoSuchTool" || ute.Agent != "Researcher" {
		t.Errorf("UnknownToolError = %+v", ute)
	}
	var ve *SpecificationValidationError
	if !errors.As(err, &ve) || ve.Field != "agents[0].tools[0]" {
		t.Errorf("validation field = %v", err)
	}
}

func TestAnalyzeUnrepairable(t *testing.T) {
	raw := "I'm sorry, I can't design a team for that."
	a := New(&fakeCompleter{response: raw}, testRegistry(t), Options{})

	_, err := a.Analyze(context.Background(), "p", nil)
	var pe *SpecificationParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *SpecificationParseError", err)
	}
	if pe.Raw != raw {
		t.Errorf("Raw = %q, want original text", pe.Raw)
	}
}
