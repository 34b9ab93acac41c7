// Package tools holds the closed set of tools agents can be given and the
// immutable registry that maps tool names to shared instances.
package tools

import (
	"github.com/ShayCichocki/dyncrew/internal/api"
	"github.com/ShayCichocki/dyncrew/pkg/models"
)

// Tool is implemented only by the tool types in this package.
type Tool interface {
	api.Tool
	// Name is the registry name the model uses to request the tool.
	Name() models.ToolName
	// Summary is a one-line description shown in the design prompt.
	Summary() string

	sealed()
}

// AsAPITools converts registry tools for the agent loop.
func AsAPITools(ts []Tool) []api.Tool {
	out := make([]api.Tool, len(ts))
	for i, t := range ts {
		out[i] = t
	}
	return out
}
