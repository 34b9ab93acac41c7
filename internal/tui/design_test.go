package tui

import (
	"strings"
	"testing"

	"github.com/ShayCichocki/dyncrew/pkg/models"
)

func TestRenderDesign(t *testing.T) {
	out := RenderDesign(testSpec(), 100)

	for _, want := range []string{
		"Team Design",
		"sequential",
		"Researcher",
		"Writer",
		"ExaSearchTool",
		"none",
		"Tasks (2)",
		"Find three articles",
		"→ Writer",
		"uses output of 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("design output missing %q", want)
		}
	}
}

func TestRenderDesign_Hierarchical(t *testing.T) {
	spec := testSpec()
	spec.Process = models.ProcessHierarchical
	spec.Manager = "Researcher"
	spec.Agents[1].AllowDelegation = true

	out := RenderDesign(spec, 0)
	if !strings.Contains(out, "hierarchical") {
		t.Error("missing process")
	}
	if !strings.Contains(out, "Manager:") {
		t.Error("missing manager line")
	}
	if !strings.Contains(out, "(delegates)") {
		t.Error("missing delegation marker")
	}
}

func TestRenderDesign_DefaultProcess(t *testing.T) {
	spec := testSpec()
	spec.Process = ""

	if !strings.Contains(RenderDesign(spec, 80), string(models.DefaultProcessMode)) {
		t.Error("empty process should render as the default")
	}
}

func TestRenderDesign_Nil(t *testing.T) {
	if !strings.Contains(RenderDesign(nil, 80), "no design") {
		t.Error("nil design should render a placeholder")
	}
}

func TestTruncateLine(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"a longer line of text", 10, "a longe..."},
		{"tiny", 2, "tiny"},
	}
	for _, tt := range tests {
		if got := truncateLine(tt.in, tt.n); got != tt.want {
			t.Errorf("truncateLine(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("  one\ntwo"); got != "one" {
		t.Errorf("got %q", got)
	}
}
