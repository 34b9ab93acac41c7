package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/dyncrew/internal/config"
	"github.com/ShayCichocki/dyncrew/internal/tools"
	"github.com/ShayCichocki/dyncrew/pkg/models"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools agents can be given",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// Listing needs no credentials, so the registry is built without keys.
		registry, err := tools.NewRegistry(
			tools.NewExaSearchTool(tools.ExaConfig{}),
			tools.NewWebsiteSearchTool(tools.WebsiteConfig{}),
			tools.NewFileReadTool(cfg.Tools.FileRoot),
		)
		if err != nil {
			return err
		}
		fmt.Println(renderToolTable(registry, cfg))
		return nil
	},
}

var headerCell = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var bodyCell = lipgloss.NewStyle().Padding(0, 1)

// renderToolTable lists every supported tool, marking any the registry lacks.
func renderToolTable(registry *tools.Registry, cfg *config.Config) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("TOOL", "DESCRIPTION", "STATUS").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCell
			}
			return bodyCell
		})
	for _, name := range models.KnownToolNames() {
		tool, ok := registry.Lookup(string(name))
		if !ok {
			t.Row(string(name), "", "not registered")
			continue
		}
		t.Row(string(name), tool.Summary(), toolStatus(name, cfg))
	}
	return t.Render()
}

func toolStatus(name models.ToolName, cfg *config.Config) string {
	switch name {
	case models.ToolExaSearch:
		if config.GetSearchKeySource(cfg) == config.KeySourceNone {
			return "needs EXA_API_KEY"
		}
		return "ready"
	case models.ToolFileRead:
		return "root " + cfg.Tools.FileRoot
	default:
		return "ready"
	}
}
