// Package analyze turns a natural-language request into a validated team
// design by asking the model for a JSON TeamSpecification.
package analyze

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ShayCichocki/dyncrew/internal/logging"
	"github.com/ShayCichocki/dyncrew/internal/tools"
	"github.com/ShayCichocki/dyncrew/pkg/models"
)

// Completer sends one system+user exchange to the model and returns its text.
// *api.Runner implements it.
type Completer interface {
	RunWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Catalog is the set of tools a design may reference.
type Catalog interface {
	ToolSet
	All() []tools.Tool
}

// Options configures an Analyzer.
type Options struct {
	// DefaultProcess is used when the model omits "process".
	DefaultProcess models.ProcessMode
	Logger         *slog.Logger
}

// Analyzer designs teams with one model call per request.
type Analyzer struct {
	completer      Completer
	catalog        Catalog
	systemPrompt   string
	defaultProcess models.ProcessMode
	logger         *slog.Logger
}

// New creates an Analyzer. The system prompt is rendered once from the
// catalog.
func New(completer Completer, catalog Catalog, opts Options) *Analyzer {
	var entries []toolEntry
	for _, t := range catalog.All() {
		entries = append(entries, toolEntry{Name: string(t.Name()), Summary: t.Summary()})
	}

	mode := opts.DefaultProcess
	if !mode.Valid() {
		mode = models.DefaultProcessMode
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Analyzer{
		completer:      completer,
		catalog:        catalog,
		systemPrompt:   buildSystemPrompt(entries),
		defaultProcess: mode,
		logger:         logging.Component(logger, "analyze"),
	}
}

// Analyze asks the model for a team design and returns it parsed and
// validated. Model call failures are returned unchanged; malformed output is
// a *SpecificationParseError and an inconsistent design a
// *SpecificationValidationError.
func (a *Analyzer) Analyze(ctx context.Context, prompt string, inputs map[string]string) (*models.TeamSpecification, error) {
	if blank(prompt) {
		return nil, errors.New("prompt is empty")
	}

	raw, err := a.completer.RunWithSystem(ctx, a.systemPrompt, buildUserMessage(prompt, inputs))
	if err != nil {
		a.logger.Error("design request failed", "error", err)
		return nil, err
	}
	a.logger.Debug("design response received", "chars", len(raw))

	spec, err := Parse(raw)
	if err != nil {
		a.logger.Warn("design response unparseable", "error", err)
		return nil, err
	}

	if err := a.normalize(spec); err != nil {
		return nil, err
	}
	if err := Validate(spec, a.catalog); err != nil {
		a.logger.Warn("design rejected", "error", err)
		return nil, err
	}

	a.logger.Info("team designed",
		"agents", len(spec.Agents),
		"tasks", len(spec.Tasks),
		"process", spec.Process)
	return spec, nil
}

// normalize settles the process mode: case-folded, or the default when the
// model left it out.
func (a *Analyzer) normalize(spec *models.TeamSpecification) error {
	if spec.Process == "" {
		a.logger.Debug("process omitted, using default", "process", a.defaultProcess)
		spec.Process = a.defaultProcess
		return nil
	}
	mode, err := models.ParseProcessMode(string(spec.Process))
	if err != nil {
		return &SpecificationValidationError{Field: "process", Reason: err.Error(), Err: err}
	}
	spec.Process = mode
	return nil
}
