package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/dyncrew/internal/analyze"
	"github.com/ShayCichocki/dyncrew/internal/crew"
	"github.com/ShayCichocki/dyncrew/internal/system"
	"github.com/ShayCichocki/dyncrew/internal/tui"
	"github.com/ShayCichocki/dyncrew/pkg/models"
)

var (
	runInputs     []string
	runTeamFile   string
	runProcess    string
	runNoTUI      bool
	runShowDesign bool
	runJSON       bool
	runRaw        bool
)

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Design a team for a request and run it",
	Long: `Run designs an agent team for the request, assembles it with the
registered tools, executes its tasks and prints the final answer on stdout.

Inputs given with --input are substituted into {key} placeholders in task
descriptions and are shown to the designer. With --team, the design step is
skipped and the team file (YAML or JSON) is run as written.

When stdout is a terminal, progress is shown in a live view; pass --no-tui
for plain progress lines on stderr.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRequest(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	runCmd.Flags().StringArrayVarP(&runInputs, "input", "i", nil, "Input value as key=value (repeatable)")
	runCmd.Flags().StringVar(&runTeamFile, "team", "", "Run this team design instead of designing one")
	runCmd.Flags().StringVar(&runProcess, "process", "", "Force the process mode: sequential or hierarchical")
	runCmd.Flags().BoolVar(&runNoTUI, "no-tui", false, "Disable the live progress view")
	runCmd.Flags().BoolVar(&runShowDesign, "show-design", false, "Print the team design before the answer")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the result as JSON")
	runCmd.Flags().BoolVar(&runRaw, "raw", false, "Print the answer without markdown rendering")
}

// runPlan is what a run command resolved from its flags.
type runPlan struct {
	prompt  string
	inputs  map[string]string
	spec    *models.TeamSpecification
	process models.ProcessMode
}

func newRunPlan(prompt string) (*runPlan, error) {
	inputs, err := parseInputs(runInputs)
	if err != nil {
		return nil, err
	}
	plan := &runPlan{prompt: prompt, inputs: inputs}

	if runProcess != "" {
		mode, err := models.ParseProcessMode(runProcess)
		if err != nil {
			return nil, err
		}
		plan.process = mode
	}

	if runTeamFile != "" {
		spec, err := loadTeamFile(runTeamFile)
		if err != nil {
			return nil, err
		}
		if plan.process != "" {
			spec.Process = plan.process
		}
		plan.spec = spec
	}
	return plan, nil
}

// execute runs the plan. A forced process on a designed team turns the run
// into design followed by execute-spec.
func (p *runPlan) execute(ctx context.Context, sys *system.System) (*system.Result, error) {
	switch {
	case p.spec != nil:
		return sys.ExecuteSpec(ctx, p.spec, p.prompt, p.inputs)
	case p.process != "":
		spec, err := sys.Design(ctx, p.prompt, p.inputs)
		if err != nil {
			return nil, err
		}
		spec.Process = p.process
		return sys.ExecuteSpec(ctx, spec, p.prompt, p.inputs)
	default:
		return sys.Run(ctx, p.prompt, p.inputs)
	}
}

func runRequest(ctx context.Context, prompt string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	plan, err := newRunPlan(prompt)
	if err != nil {
		return err
	}

	var res *system.Result
	if useTUI() {
		res, err = runWithTUI(ctx, plan)
	} else {
		res, err = runPlain(ctx, plan)
	}
	if err != nil {
		return err
	}
	return printResult(os.Stdout, res)
}

func useTUI() bool {
	if runNoTUI || runJSON {
		return false
	}
	return isTerminal(os.Stdout) && isTerminal(os.Stderr)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns the width of stdout, or zero when it isn't a
// terminal.
func terminalWidth() int {
	if !isTerminal(os.Stdout) {
		return 0
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return w
}

func runWithTUI(ctx context.Context, plan *runPlan) (*system.Result, error) {
	p, view := tui.NewRunProgram(plan.prompt)
	fwd := tui.NewForwarder(p)

	app, err := newApplication(appOptions{LogWriter: io.Discard, OnDesign: fwd.Design})
	if err != nil {
		return nil, err
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		res, err := plan.execute(crew.WithObserver(ctx, fwd.Observe), app.sys)
		p.Send(tui.DoneMsg{Result: res, Err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("progress view: %w", err)
	}
	if view.Cancelled() {
		cancel()
		<-done
		return nil, errors.New("run cancelled")
	}
	<-done
	return view.Result()
}

func runPlain(ctx context.Context, plan *runPlan) (*system.Result, error) {
	app, err := newApplication(appOptions{})
	if err != nil {
		return nil, err
	}
	defer app.Close()

	progress := newProgressPrinter(os.Stderr)
	res, err := plan.execute(crew.WithObserver(ctx, progress.observe), app.sys)
	if err != nil {
		return nil, err
	}
	progress.summary(res)
	return res, nil
}

func printResult(w io.Writer, res *system.Result) error {
	if runJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(newResultJSON(res))
	}
	width := terminalWidth()
	if runShowDesign && res.Spec != nil {
		fmt.Fprintln(os.Stderr, tui.RenderDesign(res.Spec, width))
	}
	out := res.Output
	if !runRaw && width > 0 {
		out = renderMarkdown(out, width)
	}
	_, err := fmt.Fprintln(w, out)
	return err
}

type resultJSON struct {
	RunID     string                    `json:"run_id"`
	Output    string                    `json:"output"`
	Design    *models.TeamSpecification `json:"design,omitempty"`
	TokensIn  int64                     `json:"tokens_in"`
	TokensOut int64                     `json:"tokens_out"`
	APICalls  int                       `json:"api_calls"`
	CostUSD   float64                   `json:"cost_usd"`
	Duration  string                    `json:"duration"`
}

func newResultJSON(res *system.Result) resultJSON {
	return resultJSON{
		RunID:     res.RunID,
		Output:    res.Output,
		Design:    res.Spec,
		TokensIn:  res.TokensIn,
		TokensOut: res.TokensOut,
		APICalls:  res.APICalls,
		CostUSD:   res.CostUSD,
		Duration:  res.Duration.Round(time.Millisecond).String(),
	}
}

// progressPrinter writes one line per runtime event.
type progressPrinter struct {
	w       io.Writer
	started map[int]time.Time
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w, started: make(map[int]time.Time)}
}

func (p *progressPrinter) observe(e crew.Event) {
	step := fmt.Sprintf("[%d/%d]", e.Task+1, e.Total)
	switch e.Type {
	case crew.EventTaskStarted:
		p.started[e.Task] = time.Now()
		fmt.Fprintf(p.w, "%s %s started by %s\n", color.CyanString("▸"), step, e.Agent)
	case crew.EventTaskFinished:
		took := time.Since(p.started[e.Task]).Round(100 * time.Millisecond)
		fmt.Fprintf(p.w, "%s %s finished by %s in %s\n", color.GreenString("✓"), step, e.Agent, took)
	case crew.EventTaskFailed:
		fmt.Fprintf(p.w, "%s %s failed (%s): %v\n", color.RedString("✗"), step, e.Agent, e.Err)
	case crew.EventDelegated:
		fmt.Fprintf(p.w, "%s %s routed to %s\n", color.YellowString("↪"), step, e.Agent)
	case crew.EventSynthesis:
		fmt.Fprintf(p.w, "%s %s is combining the results\n", color.MagentaString("◆"), e.Agent)
	}
}

func (p *progressPrinter) summary(res *system.Result) {
	fmt.Fprintf(p.w, "%s run %s: %d in / %d out tokens, %d calls, ~$%.4f, %s\n\n",
		color.GreenString("done"),
		res.RunID,
		res.TokensIn,
		res.TokensOut,
		res.APICalls,
		res.CostUSD,
		res.Duration.Round(100*time.Millisecond))
}

// parseInputs turns key=value flags into a map. Later keys win.
func parseInputs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid input %q (want key=value)", pair)
		}
		out[key] = value
	}
	return out, nil
}

// loadTeamFile reads a team design from YAML or JSON. JSON goes through the
// same tolerant parser as model output.
func loadTeamFile(path string) (*models.TeamSpecification, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read team file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var spec models.TeamSpecification
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return nil, fmt.Errorf("parse team file %s: %w", path, err)
		}
		return &spec, nil
	default:
		spec, err := analyze.Parse(string(data))
		if err != nil {
			return nil, fmt.Errorf("parse team file %s: %w", path, err)
		}
		return spec, nil
	}
}

// sortedKeys returns the keys of m in order.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
