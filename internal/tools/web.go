package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// webTimeout bounds a single fetch
const webTimeout = 30 * time.Second

// webMaxBody caps how much of a response body we read
const webMaxBody = 512 * 1024

// WebTool fetches pages and runs web searches
type WebTool struct {
	client    *http.Client
	searchURL string
}

// NewWebTool creates a web tool with a default HTTP client
func NewWebTool() *WebTool {
	return &WebTool{
		client:    &http.Client{Timeout: webTimeout},
		searchURL: "https://html.duckduckgo.com/html/",
	}
}

func (t *WebTool) Name() string { return "web" }

func (t *WebTool) Description() string {
	return "Fetch a URL as readable text, or search the web. Use action \"fetch\" with a url, or action \"search\" with a query."
}

func (t *WebTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {"type": "string", "enum": ["fetch", "search"]},
			"url": {"type": "string", "description": "URL to fetch"},
			"query": {"type": "string", "description": "Search query"}
		},
		"required": ["action"]
	}`)
}

func (t *WebTool) Execute(ctx context.Context, input json.RawMessage, ec *ExecContext) (*ToolResult, error) {
	var args struct {
		Action string `json:"action"`
		URL    string `json:"url"`
		Query  string `json:"query"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return Errorf("invalid web input: %v", err), nil
	}

	switch args.Action {
	case "fetch":
		if args.URL == "" {
			return Errorf("fetch requires a url"), nil
		}
		return t.fetch(ctx, args.URL)
	case "search":
		if args.Query == "" {
			return Errorf("search requires a query"), nil
		}
		return t.search(ctx, args.Query)
	default:
		return Errorf("unknown web action %q", args.Action), nil
	}
}

func (t *WebTool) fetch(ctx context.Context, rawURL string) (*ToolResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Errorf("fetch %s: %v", rawURL, err), nil
	}
	req.Header.Set("User-Agent", "lumen-agent/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return Errorf("fetch %s: %v", rawURL, err), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, webMaxBody))
	if err != nil {
		return Errorf("fetch %s: %v", rawURL, err), nil
	}
	if resp.StatusCode >= 400 {
		return Errorf("fetch %s: HTTP %d", rawURL, resp.StatusCode), nil
	}

	text := string(body)
	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		text = stripHTML(text)
	}
	return &ToolResult{Content: text}, nil
}

func (t *WebTool) search(ctx context.Context, query string) (*ToolResult, error) {
	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.searchURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Errorf("search: %v", err), nil
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "lumen-agent/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return Errorf("search: %v", err), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, webMaxBody))
	if err != nil {
		return Errorf("search: %v", err), nil
	}

	results := parseSearchResults(string(body), 8)
	if len(results) == 0 {
		return &ToolResult{Content: "no results for " + query}, nil
	}
	return &ToolResult{Content: strings.Join(results, "\n")}, nil
}

var (
	resultLinkRe = regexp.MustCompile(`<a[^>]+class="result__a"[^>]*href="([^"]+)"[^>]*>(.*?)</a>`)
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	spaceRe      = regexp.MustCompile(`[ \t]*\n[ \t\n]*`)
)

// parseSearchResults pulls result titles and links out of the search page
func parseSearchResults(html string, limit int) []string {
	matches := resultLinkRe.FindAllStringSubmatch(html, limit)
	out := make([]string, 0, len(matches))
	for i, m := range matches {
		title := strings.TrimSpace(tagRe.ReplaceAllString(m[2], ""))
		link := m[1]
		if u, err := url.Parse(link); err == nil {
			// the search page wraps targets in a redirect
			if target := u.Query().Get("uddg"); target != "" {
				link = target
			}
		}
		out = append(out, fmt.Sprintf("%d. %s\n   %s", i+1, title, link))
	}
	return out
}

// stripHTML reduces a page to readable text
func stripHTML(html string) string {
	for _, block := range []string{"script", "style", "noscript"} {
		re := regexp.MustCompile(`(?is)<` + block + `[^>]*>.*?</` + block + `>`)
		html = re.ReplaceAllString(html, "")
	}
	text := tagRe.ReplaceAllString(html, " ")
	text = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'", "&nbsp;", " ").Replace(text)
	text = spaceRe.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}
