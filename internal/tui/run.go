package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/dyncrew/internal/crew"
	"github.com/ShayCichocki/dyncrew/internal/system"
	"github.com/ShayCichocki/dyncrew/pkg/models"
)

const maxLogLines = 8

// Phase is the coarse stage a run is in.
type Phase string

const (
	PhaseDesigning    Phase = "designing team"
	PhaseRunning      Phase = "running tasks"
	PhaseSynthesizing Phase = "synthesizing"
	PhaseDone         Phase = "done"
	PhaseFailed       Phase = "failed"
)

// DesignMsg carries the validated design once the analyzer is done.
type DesignMsg struct {
	RunID string
	Spec  *models.TeamSpecification
}

// EventMsg wraps a runtime event.
type EventMsg struct {
	Event crew.Event
}

// DoneMsg ends the run. Result is nil when Err is set.
type DoneMsg struct {
	Result *system.Result
	Err    error
}

type taskRow struct {
	description string
	agent       string
	state       models.TaskStatus
	started     time.Time
	took        time.Duration
}

type logEntry struct {
	at      time.Time
	message string
}

// RunApp is the bubbletea model behind `dyncrew run`.
type RunApp struct {
	prompt  string
	runID   string
	process models.ProcessMode
	phase   Phase
	tasks   []taskRow
	logs    []logEntry
	spinner spinner.Model
	started time.Time
	width   int

	result    *system.Result
	err       error
	cancelled bool

	now func() time.Time
}

// NewRunApp returns a model for a run of prompt.
func NewRunApp(prompt string) *RunApp {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = runningStyle
	return &RunApp{
		prompt:  prompt,
		phase:   PhaseDesigning,
		spinner: s,
		started: time.Now(),
		width:   defaultDesignWidth,
		now:     time.Now,
	}
}

// NewRunProgram returns a program driving a new RunApp. The app pointer is
// the program's model, so its accessors reflect the final state after Run.
func NewRunProgram(prompt string) (*tea.Program, *RunApp) {
	app := NewRunApp(prompt)
	return tea.NewProgram(app), app
}

// Init implements tea.Model.
func (a *RunApp) Init() tea.Cmd {
	return a.spinner.Tick
}

// Update implements tea.Model.
func (a *RunApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if a.phase != PhaseDone && a.phase != PhaseFailed {
				a.cancelled = true
			}
			return a, tea.Quit
		}
	case tea.WindowSizeMsg:
		a.width = msg.Width
	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	case DesignMsg:
		a.applyDesign(msg)
	case EventMsg:
		a.applyEvent(msg.Event)
	case DoneMsg:
		a.result = msg.Result
		a.err = msg.Err
		if msg.Err != nil {
			a.phase = PhaseFailed
			a.log("run failed: %v", msg.Err)
		} else {
			a.phase = PhaseDone
		}
		return a, tea.Quit
	}
	return a, nil
}

func (a *RunApp) applyDesign(msg DesignMsg) {
	a.runID = msg.RunID
	a.phase = PhaseRunning
	if msg.Spec == nil {
		return
	}
	a.process = msg.Spec.Process
	a.tasks = make([]taskRow, len(msg.Spec.Tasks))
	for i, t := range msg.Spec.Tasks {
		agent := t.Agent.String()
		if idx, ok := msg.Spec.ResolveAgent(t.Agent); ok {
			agent = msg.Spec.Agents[idx].Role
		}
		a.tasks[i] = taskRow{description: firstLine(t.Description), agent: agent, state: models.TaskStatusPending}
	}
	a.log("designed %d agents and %d tasks (%s)", len(msg.Spec.Agents), len(msg.Spec.Tasks), a.process)
}

func (a *RunApp) applyEvent(e crew.Event) {
	row := a.row(e.Task)
	switch e.Type {
	case crew.EventTaskStarted:
		if row != nil {
			row.state = models.TaskStatusRunning
			row.agent = e.Agent
			row.started = a.now()
		}
		a.log("task %d started by %s", e.Task+1, e.Agent)
	case crew.EventTaskFinished:
		if row != nil {
			row.state = models.TaskStatusDone
			row.took = a.now().Sub(row.started)
		}
		a.log("task %d finished", e.Task+1)
	case crew.EventTaskFailed:
		if row != nil {
			row.state = models.TaskStatusFailed
		}
		a.log("task %d failed: %v", e.Task+1, e.Err)
	case crew.EventDelegated:
		if row != nil && !row.state.Terminal() {
			row.agent = e.Agent
		}
		a.log("manager routed task %d to %s", e.Task+1, e.Agent)
	case crew.EventSynthesis:
		a.phase = PhaseSynthesizing
		a.log("%s is combining the results", e.Agent)
	}
}

func (a *RunApp) row(i int) *taskRow {
	if i < 0 || i >= len(a.tasks) {
		return nil
	}
	return &a.tasks[i]
}

func (a *RunApp) log(format string, args ...any) {
	a.logs = append(a.logs, logEntry{at: a.now(), message: fmt.Sprintf(format, args...)})
	if len(a.logs) > maxLogLines {
		a.logs = a.logs[len(a.logs)-maxLogLines:]
	}
}

// View implements tea.Model.
func (a *RunApp) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("=== dyncrew ==="))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Request:"))
	b.WriteString(truncateLine(firstLine(a.prompt), a.width-14))
	b.WriteString("\n")
	if a.runID != "" {
		b.WriteString(labelStyle.Render("Run:"))
		b.WriteString(dimStyle.Render(a.runID))
		b.WriteString("\n")
	}
	b.WriteString(labelStyle.Render("Phase:"))
	b.WriteString(a.renderPhase())
	b.WriteString("\n\n")

	if len(a.tasks) > 0 {
		b.WriteString(headerStyle.Render(fmt.Sprintf("Tasks %d/%d", a.completed(), len(a.tasks))))
		b.WriteString("\n")
		for i, t := range a.tasks {
			b.WriteString(a.renderTask(i, t))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	for _, l := range a.logs {
		b.WriteString(dimStyle.Render(l.at.Format("15:04:05")))
		b.WriteString(" ")
		b.WriteString(l.message)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case a.cancelled:
		b.WriteString(errorStyle.Render("Cancelled."))
	case a.phase == PhaseFailed:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", a.err)))
	case a.phase == PhaseDone:
		b.WriteString(doneStyle.Render(fmt.Sprintf("Done in %s.", a.elapsed().Round(time.Second))))
	default:
		b.WriteString(dimStyle.Render("Press q to cancel"))
	}
	b.WriteString("\n")
	return b.String()
}

func (a *RunApp) renderPhase() string {
	switch a.phase {
	case PhaseDone:
		return doneStyle.Render(string(a.phase))
	case PhaseFailed:
		return errorStyle.Render(string(a.phase))
	}
	return a.spinner.View() + " " + valueStyle.Render(string(a.phase))
}

func (a *RunApp) renderTask(i int, t taskRow) string {
	var mark string
	switch t.state {
	case models.TaskStatusRunning:
		mark = a.spinner.View()
	case models.TaskStatusDone:
		mark = doneStyle.Render("✓")
	case models.TaskStatusFailed:
		mark = errorStyle.Render("✗")
	default:
		mark = dimStyle.Render("·")
	}

	agent := toolStyle.Render(t.agent)
	desc := truncateLine(t.description, a.width-lipgloss.Width(t.agent)-12)
	line := fmt.Sprintf("%s %2d. %s  %s", mark, i+1, desc, agent)
	if t.state == models.TaskStatusDone && t.took > 0 {
		line += dimStyle.Render(" " + t.took.Round(100*time.Millisecond).String())
	}
	return line
}

func (a *RunApp) completed() int {
	n := 0
	for _, t := range a.tasks {
		if t.state == models.TaskStatusDone {
			n++
		}
	}
	return n
}

func (a *RunApp) elapsed() time.Duration {
	if a.result != nil && a.result.Duration > 0 {
		return a.result.Duration
	}
	return a.now().Sub(a.started)
}

// Cancelled reports whether the user quit before the run finished.
func (a *RunApp) Cancelled() bool {
	return a.cancelled
}

// Result returns the run result delivered by DoneMsg.
func (a *RunApp) Result() (*system.Result, error) {
	return a.result, a.err
}

// Phase returns the current phase.
func (a *RunApp) Phase() Phase {
	return a.phase
}

// Sender is the part of *tea.Program the forwarder needs.
type Sender interface {
	Send(msg tea.Msg)
}

// Forwarder turns runtime callbacks into program messages.
type Forwarder struct {
	to Sender
}

// NewForwarder returns a forwarder sending to s.
func NewForwarder(s Sender) *Forwarder {
	return &Forwarder{to: s}
}

// Observe is a crew.Observer.
func (f *Forwarder) Observe(e crew.Event) {
	f.to.Send(EventMsg{Event: e})
}

// Design matches system.Config.OnDesign.
func (f *Forwarder) Design(runID string, spec *models.TeamSpecification) {
	f.to.Send(DesignMsg{RunID: runID, Spec: spec})
}
