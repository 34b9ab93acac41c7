package tools

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/ShayCichocki/dyncrew/internal/config"
	"github.com/ShayCichocki/dyncrew/pkg/models"
)

// Registry maps tool names to ready-to-use tool instances. It is built once
// at start-up and never mutated afterwards, so it needs no locking.
type Registry struct {
	tools map[models.ToolName]Tool
	order []models.ToolName
}

// NewRegistry builds a registry from the given tools. Duplicate names are
// rejected.
func NewRegistry(ts ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[models.ToolName]Tool, len(ts))}
	for _, t := range ts {
		name := t.Name()
		if _, dup := r.tools[name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", name)
		}
		r.tools[name] = t
		r.order = append(r.order, name)
	}
	sort.Slice(r.order, func(i, j int) bool { return r.order[i] < r.order[j] })
	return r, nil
}

// Default builds the standard registry from configuration.
func Default(cfg *config.Config) (*Registry, error) {
	searchKey, err := config.GetSearchKey(cfg)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.Timeouts.Request}
	if cfg.Timeouts.Request <= 0 {
		httpClient.Timeout = 2 * time.Minute
	}

	return NewRegistry(
		NewExaSearchTool(ExaConfig{
			APIKey:     searchKey,
			BaseURL:    cfg.Exa.BaseURL,
			NumResults: cfg.Exa.NumResults,
			HTTPClient: httpClient,
		}),
		NewWebsiteSearchTool(WebsiteConfig{
			HTTPClient: httpClient,
			MaxBytes:   cfg.Tools.MaxFetchBytes,
		}),
		NewFileReadTool(cfg.Tools.FileRoot),
	)
}

// Lookup returns the tool registered under an exact-case name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[models.ToolName(name)]
	return t, ok
}

// Has reports whether a tool name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[models.ToolName(name)]
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	for i, n := range r.order {
		out[i] = string(n)
	}
	return out
}

// All returns the registered tools in name order.
func (r *Registry) All() []Tool {
	out := make([]Tool, len(r.order))
	for i, n := range r.order {
		out[i] = r.tools[n]
	}
	return out
}

// Resolve returns the shared instances for the named tools, in order. The
// first unregistered name yields an *UnknownToolError; nothing is dropped or
// substituted.
func (r *Registry) Resolve(agent string, names []string) ([]Tool, error) {
	out := make([]Tool, 0, len(names))
	for _, n := range names {
		t, ok := r.Lookup(n)
		if !ok {
			return nil, &UnknownToolError{Tool: n, Agent: agent, Known: r.Names()}
		}
		out = append(out, t)
	}
	return out, nil
}
