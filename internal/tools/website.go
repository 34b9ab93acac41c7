package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"golang.org/x/net/html"

	"github.com/ShayCichocki/dyncrew/internal/api"
	"github.com/ShayCichocki/dyncrew/pkg/models"
)

const (
	defaultMaxFetchBytes = 2 << 20
	maxWebsiteResult     = 6000
)

// WebsiteConfig configures WebsiteSearchTool.
type WebsiteConfig struct {
	HTTPClient *http.Client
	// MaxBytes caps how much of a page is downloaded.
	MaxBytes int64
}

// WebsiteSearchTool fetches a page and returns the passages of its visible
// text that best match a query.
type WebsiteSearchTool struct {
	http     *http.Client
	maxBytes int64
}

// NewWebsiteSearchTool creates the website search tool.
func NewWebsiteSearchTool(cfg WebsiteConfig) *WebsiteSearchTool {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxFetchBytes
	}
	return &WebsiteSearchTool{http: hc, maxBytes: maxBytes}
}

func (*WebsiteSearchTool) sealed() {}

// Name implements Tool.
func (*WebsiteSearchTool) Name() models.ToolName { return models.ToolWebsiteSearch }

// Summary implements Tool.
func (*WebsiteSearchTool) Summary() string { return "website content extraction" }

// Definition implements api.Tool.
func (t *WebsiteSearchTool) Definition() anthropic.ToolParam {
	return anthropic.ToolParam{
		Name:        string(t.Name()),
		Description: anthropic.String("Fetch a web page and return the passages of its text relevant to a query. Without a query, returns the start of the page text."),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: map[string]interface{}{
				"url": map[string]interface{}{
					"type":        "string",
					"description": "Absolute http(s) URL of the page",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "What to look for on the page (optional)",
				},
			},
			Required: []string{"url"},
		},
	}
}

// Execute implements api.Tool. Fetch failures are reported to the model;
// the page is not a provider the run depends on.
func (t *WebsiteSearchTool) Execute(ctx context.Context, input json.RawMessage) api.ToolResult {
	var params struct {
		URL   string `json:"url"`
		Query string `json:"query"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return api.ErrorResult("Invalid parameters: %v", err)
	}

	u, err := url.Parse(params.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return api.ErrorResult("url must be an absolute http(s) URL, got %q", params.URL)
	}

	passages, err := t.fetchPassages(ctx, u.String())
	if err != nil {
		return api.ErrorResult("Failed to fetch %s: %v", u, err)
	}
	if len(passages) == 0 {
		return api.ToolResult{Content: "Page has no readable text."}
	}

	return api.ToolResult{Content: selectPassages(passages, params.Query, maxWebsiteResult)}
}

func (t *WebsiteSearchTool) fetchPassages(ctx context.Context, pageURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "dyncrew/1 (+website-search)")

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, t.maxBytes)
	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "html") {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, err
		}
		return splitParagraphs(string(data)), nil
	}

	return extractPassages(body)
}

// blockTags end a passage when they close.
var blockTags = map[string]bool{
	"p": true, "li": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "td": true, "th": true, "pre": true, "blockquote": true,
	"div": true, "section": true, "article": true, "dd": true, "dt": true,
}

// skipTags never contribute text.
var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true, "svg": true, "head": true,
}

// extractPassages tokenizes HTML and returns the visible text grouped by
// block element.
func extractPassages(r io.Reader) ([]string, error) {
	z := html.NewTokenizer(r)
	var passages []string
	var cur strings.Builder
	skipDepth := 0

	flush := func() {
		text := strings.Join(strings.Fields(cur.String()), " ")
		if text != "" {
			passages = append(passages, text)
		}
		cur.Reset()
	}

	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				flush()
				return passages, nil
			}
			return nil, z.Err()
		case html.StartTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipTags[tag] {
				skipDepth++
			} else if blockTags[tag] || tag == "br" {
				flush()
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipTags[tag] && skipDepth > 0 {
				skipDepth--
			} else if blockTags[tag] {
				flush()
			}
		case html.TextToken:
			if skipDepth == 0 {
				cur.Write(z.Text())
				cur.WriteByte(' ')
			}
		}
	}
}

func splitParagraphs(s string) []string {
	var out []string
	for _, p := range strings.Split(s, "\n\n") {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// selectPassages returns passages matching the query terms, best first by
// hit count but kept in page order, bounded by limit characters. An empty
// query returns the leading passages.
func selectPassages(passages []string, query string, limit int) string {
	terms := strings.Fields(strings.ToLower(query))

	type scored struct {
		idx   int
		score int
	}
	var picks []scored
	if len(terms) == 0 {
		for i := range passages {
			picks = append(picks, scored{idx: i})
		}
	} else {
		for i, p := range passages {
			lower := strings.ToLower(p)
			score := 0
			for _, term := range terms {
				score += strings.Count(lower, term)
			}
			if score > 0 {
				picks = append(picks, scored{idx: i, score: score})
			}
		}
		if len(picks) == 0 {
			return fmt.Sprintf("No passages matching %q.", query)
		}
		sort.SliceStable(picks, func(i, j int) bool { return picks[i].score > picks[j].score })
	}

	var chosen []int
	total := 0
	for _, p := range picks {
		n := len(passages[p.idx])
		if total+n > limit && len(chosen) > 0 {
			break
		}
		chosen = append(chosen, p.idx)
		total += n
	}
	sort.Ints(chosen)

	parts := make([]string, len(chosen))
	for i, idx := range chosen {
		parts[i] = passages[idx]
	}
	return truncateText(strings.Join(parts, "\n\n"), limit)
}

func truncateText(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "\n... (truncated)"
}
