package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// AgentLoop manages the API call and tool execution cycle for one agent.
type AgentLoop struct {
	client        *Client
	onStream      func(StreamEvent)
	maxIterations int
}

// StreamEvent represents an event during agent execution for streaming to UI.
type StreamEvent struct {
	Type    string // "text", "tool_use", "tool_result", "done", "error"
	Content string
	Tool    string
	Input   json.RawMessage
}

// LoopResult contains the results of an agent loop execution.
type LoopResult struct {
	Output     string
	TokensIn   int64
	TokensOut  int64
	ToolCalls  int
	Iterations int
}

// AgentLoopConfig contains configuration for the agent loop.
type AgentLoopConfig struct {
	Client        *Client
	MaxIterations int // Max API calls before stopping (0 = 25)
}

// NewAgentLoop creates a new agent loop with the given configuration.
func NewAgentLoop(cfg AgentLoopConfig) *AgentLoop {
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = 25
	}

	return &AgentLoop{
		client:        cfg.Client,
		maxIterations: maxIter,
	}
}

// SetStreamHandler sets a callback for streaming events during execution.
func (l *AgentLoop) SetStreamHandler(fn func(StreamEvent)) {
	l.onStream = fn
}

func (l *AgentLoop) emit(event StreamEvent) {
	if l.onStream != nil {
		l.onStream(event)
	}
}

// RunAgent runs one agent to completion and returns its final text.
func (l *AgentLoop) RunAgent(ctx context.Context, systemPrompt, userPrompt string, tools []Tool) (string, error) {
	result, err := l.Run(ctx, systemPrompt, userPrompt, tools)
	if err != nil {
		return "", err
	}
	return result.Output, nil
}

// Run executes the agent loop with the given prompts and tools. The loop ends
// when the model answers without requesting a tool. A tool failure marked
// fatal aborts the loop with that error; other tool failures are returned to
// the model as error results.
func (l *AgentLoop) Run(ctx context.Context, systemPrompt, userPrompt string, tools []Tool) (*LoopResult, error) {
	result := &LoopResult{}

	byName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		byName[t.Definition().Name] = t
	}
	toolDefs := toolParams(tools)

	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
	}

	for result.Iterations < l.maxIterations {
		result.Iterations++

		params := anthropic.MessageNewParams{
			Model:     l.client.Model(),
			MaxTokens: l.client.MaxTokens(),
			Messages:  messages,
			Tools:     toolDefs,
		}
		if systemPrompt != "" {
			params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
		}

		resp, err := l.client.sdk().Messages.New(ctx, params)
		if err != nil {
			l.emit(StreamEvent{Type: "error", Content: err.Error()})
			return result, ClassifyError(ProviderAnthropic, err)
		}

		result.TokensIn += resp.Usage.InputTokens
		result.TokensOut += resp.Usage.OutputTokens
		l.client.Tracker().Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

		var assistantBlocks []anthropic.ContentBlockParamUnion
		var toolResultBlocks []anthropic.ContentBlockParamUnion
		var textOutput strings.Builder

		for _, block := range resp.Content {
			switch variant := block.AsAny().(type) {
			case anthropic.TextBlock:
				textOutput.WriteString(variant.Text)
				l.emit(StreamEvent{Type: "text", Content: variant.Text})
				assistantBlocks = append(assistantBlocks, anthropic.NewTextBlock(variant.Text))

			case anthropic.ToolUseBlock:
				result.ToolCalls++

				l.emit(StreamEvent{Type: "tool_use", Tool: variant.Name, Input: variant.Input})
				assistantBlocks = append(assistantBlocks,
					anthropic.NewToolUseBlock(variant.ID, variant.Input, variant.Name))

				toolResult := l.execute(ctx, byName, variant.Name, variant.Input)
				if toolResult.Err != nil {
					l.emit(StreamEvent{Type: "error", Tool: variant.Name, Content: toolResult.Err.Error()})
					return result, fmt.Errorf("tool %s: %w", variant.Name, toolResult.Err)
				}
				l.emit(StreamEvent{Type: "tool_result", Tool: variant.Name, Content: truncate(toolResult.Content, 500)})

				toolResultBlocks = append(toolResultBlocks,
					anthropic.NewToolResultBlock(variant.ID, toolResult.Content, toolResult.IsError))
			}
		}

		if len(toolResultBlocks) == 0 {
			result.Output = textOutput.String()
			l.emit(StreamEvent{Type: "done"})
			return result, nil
		}

		messages = append(messages,
			anthropic.NewAssistantMessage(assistantBlocks...),
			anthropic.NewUserMessage(toolResultBlocks...))
	}

	return result, fmt.Errorf("max iterations (%d) reached", l.maxIterations)
}

func (l *AgentLoop) execute(ctx context.Context, byName map[string]Tool, name string, input json.RawMessage) ToolResult {
	tool, ok := byName[name]
	if !ok {
		return ErrorResult("Unknown tool: %s", name)
	}
	return tool.Execute(ctx, input)
}
