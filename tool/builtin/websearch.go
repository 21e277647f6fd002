package builtin

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hojin-sohn/echo/core"
	"github.com/hojin-sohn/echo/tool"
)

const duckDuckGoEndpoint = "https://api.duckduckgo.com/"

// webSearchArgs is the argument container for the web_search tool.
type webSearchArgs struct {
	Query string `json:"query" description:"Search query"`
}

// duckDuckGoResponse is the subset of the instant-answer payload we surface.
type duckDuckGoResponse struct {
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	Answer        string `json:"Answer"`
	Definition    string `json:"Definition"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

// WebSearchOptions configures the web_search tool.
type WebSearchOptions struct {
	// HTTPClient performs the search requests. Defaults to a client with a
	// 10 second timeout.
	HTTPClient *http.Client
	// Endpoint is the instant-answer API base URL. Overridden in tests.
	Endpoint string
	// MaxResults caps the related topics included in the output.
	MaxResults int
}

// NewWebSearchTool returns a tool that queries the DuckDuckGo instant-answer
// API. The tool is blocking: it crosses the network and honors context
// cancellation through the HTTP request.
func NewWebSearchTool(optFns ...func(o *WebSearchOptions)) *tool.FunctionTool {
	opts := WebSearchOptions{
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Endpoint:   duckDuckGoEndpoint,
		MaxResults: 5,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return tool.NewFunctionToolFromStruct(
		"web_search",
		"Useful for searching the internet for current events or facts.",
		webSearchArgs{},
		func(toolCtx *core.ToolContext, args map[string]any) (string, error) {
			query, _ := args["query"].(string)
			if strings.TrimSpace(query) == "" {
				return "", fmt.Errorf("query cannot be empty")
			}
			return search(toolCtx, opts, query)
		},
		tool.WithBlocking(),
	)
}

func search(toolCtx *core.ToolContext, opts WebSearchOptions, query string) (string, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	req, err := http.NewRequestWithContext(toolCtx.Context(), http.MethodGet, opts.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build search request: %w", err)
	}

	resp, err := opts.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search request failed: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read search response: %w", err)
	}

	var ddg duckDuckGoResponse
	if err := json.Unmarshal(body, &ddg); err != nil {
		return "", fmt.Errorf("decode search response: %w", err)
	}

	return formatResults(ddg, opts.MaxResults, query), nil
}

// formatResults flattens the instant-answer payload into the plain text the
// model consumes: direct answer first, then abstract, then related topics.
func formatResults(ddg duckDuckGoResponse, maxResults int, query string) string {
	var sections []string

	if ddg.Answer != "" {
		sections = append(sections, ddg.Answer)
	}
	if ddg.AbstractText != "" {
		s := ddg.AbstractText
		if ddg.AbstractURL != "" {
			s += " (" + ddg.AbstractURL + ")"
		}
		sections = append(sections, s)
	}
	if ddg.Definition != "" {
		sections = append(sections, ddg.Definition)
	}

	count := 0
	for _, topic := range ddg.RelatedTopics {
		if topic.Text == "" || count >= maxResults {
			continue
		}
		s := "- " + topic.Text
		if topic.FirstURL != "" {
			s += " (" + topic.FirstURL + ")"
		}
		sections = append(sections, s)
		count++
	}

	if len(sections) == 0 {
		return fmt.Sprintf("No results found for %q.", query)
	}
	return strings.Join(sections, "\n")
}
