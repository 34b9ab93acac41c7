package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/dyncrew/internal/analyze"
	"github.com/ShayCichocki/dyncrew/internal/state"
	"github.com/ShayCichocki/dyncrew/internal/tui"
)

var (
	historyLimit     int
	historyJSON      bool
	historyOlderThan time.Duration
)

var errNoHistory = errors.New("no run history recorded (enable it with history.enabled or DYNCREW_HISTORY=true)")

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List past runs or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openExistingHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		if len(args) == 1 {
			return showRun(os.Stdout, db, args[0])
		}
		return listRuns(os.Stdout, db)
	},
}

var historyPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete finished runs older than a given age",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openExistingHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.PurgeOldRuns(historyOlderThan)
		if err != nil {
			return err
		}
		fmt.Printf("%s %d runs deleted\n", color.GreenString("✓"), n)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print as JSON")
	historyPurgeCmd.Flags().DurationVar(&historyOlderThan, "older-than", 30*24*time.Hour, "Age of runs to delete")
	historyCmd.AddCommand(historyPurgeCmd)
}

// openExistingHistory opens the history database without creating it.
func openExistingHistory() (*state.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	path := historyPath(cfg)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, errNoHistory
	}
	return state.OpenAndMigrate(path)
}

func listRuns(w io.Writer, db *state.DB) error {
	runs, err := db.ListRuns(historyLimit)
	if err != nil {
		return err
	}
	if historyJSON {
		return writeJSON(w, runs)
	}
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded yet.")
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("RUN", "KIND", "STATUS", "STARTED", "TOKENS", "COST", "REQUEST").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCell
			}
			return bodyCell
		})
	for _, r := range runs {
		t.Row(
			r.ID,
			string(r.Kind),
			string(r.Status),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprintf("%d/%d", r.TokensIn, r.TokensOut),
			fmt.Sprintf("$%.4f", r.CostUSD),
			oneLine(r.Prompt, 50),
		)
	}
	_, err = fmt.Fprintln(w, t.Render())
	return err
}

func showRun(w io.Writer, db *state.DB, id string) error {
	run, err := db.GetRun(id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %q not found", id)
	}
	if historyJSON {
		return writeJSON(w, run)
	}

	bold := color.New(color.Bold)
	fmt.Fprintf(w, "%s %s\n", bold.Sprint("Run"), run.ID)
	fmt.Fprintf(w, "Kind:     %s\n", run.Kind)
	fmt.Fprintf(w, "Status:   %s\n", statusColor(run.Status))
	fmt.Fprintf(w, "Started:  %s\n", run.StartedAt.Local().Format(time.RFC3339))
	if run.FinishedAt != nil {
		fmt.Fprintf(w, "Took:     %s\n", run.FinishedAt.Sub(run.StartedAt).Round(100*time.Millisecond))
	}
	if run.Process != "" {
		fmt.Fprintf(w, "Process:  %s\n", run.Process)
	}
	fmt.Fprintf(w, "Tokens:   %d in / %d out\n", run.TokensIn, run.TokensOut)
	fmt.Fprintf(w, "Usage:    %d calls, ~$%.4f\n", run.APICalls, run.CostUSD)
	fmt.Fprintf(w, "Request:  %s\n", run.Prompt)
	for _, k := range sortedKeys(run.Inputs) {
		fmt.Fprintf(w, "  %s = %s\n", k, run.Inputs[k])
	}

	if len(run.Design) > 0 {
		if spec, err := analyze.Parse(string(run.Design)); err == nil {
			fmt.Fprintf(w, "\n%s\n", tui.RenderDesign(spec, 0))
		}
	}

	for _, task := range run.Tasks {
		fmt.Fprintf(w, "\n%s task %d by %s\n", statusColor(task.Status), task.Index+1, task.Agent)
		if task.Error != "" {
			fmt.Fprintf(w, "  %s\n", color.RedString(task.Error))
		}
	}

	if run.Error != "" {
		fmt.Fprintf(w, "\n%s %s\n", color.RedString("Error:"), run.Error)
	}
	if run.Result != "" {
		fmt.Fprintf(w, "\n%s\n%s\n", bold.Sprint("Result"), run.Result)
	}
	return nil
}

func statusColor(s state.RunStatus) string {
	switch s {
	case state.RunSucceeded:
		return color.GreenString(string(s))
	case state.RunFailed:
		return color.RedString(string(s))
	default:
		return color.YellowString(string(s))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// oneLine flattens s and cuts it to n runes.
func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
