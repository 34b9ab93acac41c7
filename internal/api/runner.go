package api

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// Runner provides simple text-in/text-out Claude API calls.
// It is used for team design, where no tools are involved.
type Runner struct {
	client *Client
}

// NewRunner creates a new API runner.
func NewRunner(client *Client) *Runner {
	return &Runner{client: client}
}

// RunWithSystem executes a prompt with a system message. The temperature is
// pinned to zero so repeated designs for the same request stay stable.
// Failures are returned as *ProviderError or *TransportError.
func (r *Runner) RunWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       r.client.Model(),
		MaxTokens:   r.client.MaxTokens(),
		Temperature: anthropic.Float(0),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := r.client.sdk().Messages.New(ctx, params)
	if err != nil {
		return "", ClassifyError(ProviderAnthropic, err)
	}

	r.client.Tracker().Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	return textOf(resp.Content), nil
}

func textOf(blocks []anthropic.ContentBlockUnion) string {
	var result strings.Builder
	for _, block := range blocks {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			result.WriteString(variant.Text)
		}
	}
	return result.String()
}
