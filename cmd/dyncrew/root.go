package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	configFile string
	envFile    string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "dyncrew",
	Short: "Design and run an AI agent team for any request",
	Long: `dyncrew turns a plain-language request into a small team of AI agents,
each with a role, a goal and a set of tools, then runs the team's tasks and
prints the final answer.

Examples:
  dyncrew run "Summarize three recent news articles about solar energy"
  dyncrew run -i topic=fusion "Write a briefing on {topic}"
  dyncrew design --format yaml "Compare the top three Go web frameworks"
  dyncrew run --team team.yaml "Review our onboarding docs"`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file to use instead of the user and project files")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Environment file to load (default .env if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(designCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
