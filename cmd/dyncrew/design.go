package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/dyncrew/internal/analyze"
	"github.com/ShayCichocki/dyncrew/internal/tui"
	"github.com/ShayCichocki/dyncrew/pkg/models"
)

var (
	designInputs []string
	designFormat string
	designOutput string
)

var designCmd = &cobra.Command{
	Use:   "design <request>",
	Short: "Design a team for a request without running it",
	Long: `Design asks the model for a team design and validates it against the
registered tools. The design can be saved and later run with
"dyncrew run --team <file>".

Formats: text (default), json, yaml.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return designRequest(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	designCmd.Flags().StringArrayVarP(&designInputs, "input", "i", nil, "Input value as key=value (repeatable)")
	designCmd.Flags().StringVarP(&designFormat, "format", "f", "text", "Output format: text, json, yaml")
	designCmd.Flags().StringVarP(&designOutput, "output", "o", "", "Write the design to a file instead of stdout")
}

func designRequest(ctx context.Context, prompt string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	inputs, err := parseInputs(designInputs)
	if err != nil {
		return err
	}

	app, err := newApplication(appOptions{})
	if err != nil {
		return err
	}
	defer app.Close()

	spec, err := app.sys.Design(ctx, prompt, inputs)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if designOutput != "" {
		f, err := os.Create(designOutput)
		if err != nil {
			return fmt.Errorf("create %s: %w", designOutput, err)
		}
		defer f.Close()
		w = f
	}
	return writeDesign(w, spec, designFormat)
}

// writeDesign encodes spec in the named format.
func writeDesign(w io.Writer, spec *models.TeamSpecification, format string) error {
	switch strings.ToLower(format) {
	case "", "text":
		_, err := fmt.Fprintln(w, tui.RenderDesign(spec, 0))
		return err
	case "json":
		data, err := analyze.Marshal(spec)
		if err != nil {
			return err
		}
		_, err = w.Write(append(data, '\n'))
		return err
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(spec); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
	}
}
