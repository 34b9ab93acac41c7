package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
)

// Tool is something the model can call during an agent loop.
type Tool interface {
	// Definition returns the schema advertised to the model.
	Definition() anthropic.ToolParam
	// Execute runs the tool with the model-supplied JSON input.
	Execute(ctx context.Context, input json.RawMessage) ToolResult
}

// ToolResult represents the result of a tool execution.
type ToolResult struct {
	Content string
	IsError bool
	// Err is set when the failure must abort the run (see IsFatal) rather
	// than be reported back to the model.
	Err error
}

// ErrorResult reports a recoverable tool failure to the model.
func ErrorResult(format string, args ...any) ToolResult {
	return ToolResult{Content: fmt.Sprintf(format, args...), IsError: true}
}

// FatalResult wraps a provider or transport failure that ends the run.
func FatalResult(err error) ToolResult {
	return ToolResult{Content: err.Error(), IsError: true, Err: err}
}

func toolParams(tools []Tool) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	params := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		def := t.Definition()
		params = append(params, anthropic.ToolUnionParam{OfTool: &def})
	}
	return params
}
