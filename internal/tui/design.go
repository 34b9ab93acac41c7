package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/dyncrew/pkg/models"
)

const defaultDesignWidth = 80

// RenderDesign draws a team design. width is the terminal width; zero or
// less uses 80 columns.
func RenderDesign(spec *models.TeamSpecification, width int) string {
	if spec == nil {
		return dimStyle.Render("(no design)")
	}
	if width <= 0 {
		width = defaultDesignWidth
	}

	var b strings.Builder

	process := spec.Process
	if process == "" {
		process = models.DefaultProcessMode
	}
	b.WriteString(headerStyle.Render("Team Design"))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Process:"))
	b.WriteString(valueStyle.Render(string(process)))
	b.WriteString("\n")
	if spec.Manager != "" {
		b.WriteString(labelStyle.Render("Manager:"))
		b.WriteString(valueStyle.Render(spec.Manager))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	cardWidth := width - 4
	for _, a := range spec.Agents {
		b.WriteString(renderAgentCard(a, a.Role == spec.Manager, cardWidth))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(headerStyle.Render(fmt.Sprintf("Tasks (%d)", len(spec.Tasks))))
	b.WriteString("\n")
	for i, t := range spec.Tasks {
		b.WriteString(renderTaskLine(spec, i, t, width))
	}
	return b.String()
}

func renderAgentCard(a models.AgentSpec, manager bool, width int) string {
	style := cardStyle
	if manager {
		style = managerCardStyle
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(a.Role))
	if a.AllowDelegation {
		b.WriteString(dimStyle.Render("  (delegates)"))
	}
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Goal:"))
	b.WriteString(a.Goal)
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Tools:"))
	if len(a.Tools) == 0 {
		b.WriteString(dimStyle.Render("none"))
	} else {
		names := make([]string, len(a.Tools))
		for i, n := range a.Tools {
			names[i] = toolStyle.Render(n)
		}
		b.WriteString(strings.Join(names, ", "))
	}
	return style.Width(width).Render(b.String())
}

func renderTaskLine(spec *models.TeamSpecification, i int, t models.TaskSpec, width int) string {
	agent := t.Agent.String()
	if idx, ok := spec.ResolveAgent(t.Agent); ok {
		agent = spec.Agents[idx].Role
	}

	line := fmt.Sprintf("%2d. %s", i+1, firstLine(t.Description))
	line = truncateLine(line, width-len(agent)-4)

	var b strings.Builder
	b.WriteString(line)
	b.WriteString("  ")
	b.WriteString(toolStyle.Render("→ " + agent))
	b.WriteString("\n")
	if len(t.Context) > 0 {
		refs := make([]string, len(t.Context))
		for j, c := range t.Context {
			refs[j] = fmt.Sprintf("%d", c+1)
		}
		b.WriteString(dimStyle.Render("    uses output of " + strings.Join(refs, ", ")))
		b.WriteString("\n")
	}
	return b.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// truncateLine shortens s to at most n display columns.
func truncateLine(s string, n int) string {
	if n < 4 || lipgloss.Width(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) > n-3 {
		r = r[:n-3]
	}
	return string(r) + "..."
}
