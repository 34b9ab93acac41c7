package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/dyncrew/internal/api"
	"github.com/ShayCichocki/dyncrew/pkg/models"
)

// ProviderExa names the search provider in typed errors.
const ProviderExa = "exa"

// ExaConfig configures ExaSearchTool.
type ExaConfig struct {
	APIKey     string
	BaseURL    string
	NumResults int
	HTTPClient *http.Client
}

// ExaSearchTool runs neural web search through Exa and returns result
// highlights.
type ExaSearchTool struct {
	apiKey     string
	baseURL    string
	numResults int
	http       *http.Client
}

// NewExaSearchTool creates the Exa search tool.
func NewExaSearchTool(cfg ExaConfig) *ExaSearchTool {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.exa.ai"
	}
	n := cfg.NumResults
	if n <= 0 {
		n = 5
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return &ExaSearchTool{apiKey: cfg.APIKey, baseURL: baseURL, numResults: n, http: hc}
}

func (*ExaSearchTool) sealed() {}

// Name implements Tool.
func (*ExaSearchTool) Name() models.ToolName { return models.ToolExaSearch }

// Summary implements Tool.
func (*ExaSearchTool) Summary() string { return "advanced semantic web search" }

// Definition implements api.Tool.
func (t *ExaSearchTool) Definition() anthropic.ToolParam {
	return anthropic.ToolParam{
		Name:        string(t.Name()),
		Description: anthropic.String("Search the web with Exa's semantic search and return titles, URLs and highlights of the best matches."),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural-language search query",
				},
			},
			Required: []string{"query"},
		},
	}
}

type exaRequest struct {
	Query         string      `json:"query"`
	Type          string      `json:"type"`
	UseAutoprompt bool        `json:"useAutoprompt"`
	NumResults    int         `json:"numResults"`
	Contents      exaContents `json:"contents"`
}

type exaContents struct {
	Highlights bool `json:"highlights"`
}

type exaResponse struct {
	Results []SearchResult `json:"results"`
}

// SearchResult is one Exa search hit.
type SearchResult struct {
	Title      string   `json:"title"`
	URL        string   `json:"url"`
	Highlights []string `json:"highlights"`
}

// Execute implements api.Tool. Provider and network failures are fatal.
func (t *ExaSearchTool) Execute(ctx context.Context, input json.RawMessage) api.ToolResult {
	var params struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return api.ErrorResult("Invalid parameters: %v", err)
	}
	if strings.TrimSpace(params.Query) == "" {
		return api.ErrorResult("query is required")
	}

	results, err := t.Search(ctx, params.Query)
	if err != nil {
		if api.IsFatal(err) {
			return api.FatalResult(err)
		}
		return api.ErrorResult("Search failed: %v", err)
	}
	if len(results) == 0 {
		return api.ToolResult{Content: "No results found."}
	}
	return api.ToolResult{Content: formatExaResults(results)}
}

// Search calls the Exa search endpoint. Errors are *api.ProviderError or
// *api.TransportError.
func (t *ExaSearchTool) Search(ctx context.Context, query string) ([]SearchResult, error) {
	body, err := json.Marshal(exaRequest{
		Query:         query,
		Type:          "neural",
		UseAutoprompt: true,
		NumResults:    t.numResults,
		Contents:      exaContents{Highlights: true},
	})
	if err != nil {
		return nil, fmt.Errorf("encode exa request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build exa request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", t.apiKey)

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, &api.TransportError{Provider: ProviderExa, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &api.TransportError{Provider: ProviderExa, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, api.NewHTTPStatusError(ProviderExa, resp.StatusCode, data)
	}

	var decoded exaResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, &api.ProviderError{Provider: ProviderExa, StatusCode: resp.StatusCode, Message: "malformed search response", Err: err}
	}
	return decoded.Results, nil
}

func formatExaResults(results []SearchResult) string {
	parts := make([]string, 0, len(results)*2)
	for i, r := range results {
		parts = append(parts, fmt.Sprintf("[SOURCE %d]\nTitle: %s\nURL: %s\n", i+1, r.Title, r.URL))
		parts = append(parts, fmt.Sprintf("Highlights:\n%s\n\n", strings.Join(r.Highlights, "")))
	}
	return strings.Join(parts, "\n")
}
