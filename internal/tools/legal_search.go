package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"
	"golang.org/x/time/rate"
)

const (
	// LegalSearchToolName is the name the model uses to call the case-law search.
	LegalSearchToolName = "indian_kanoon_search"

	// DefaultLegalSearchURL is the Indian Kanoon API base.
	DefaultLegalSearchURL = "https://api.indiankanoon.org"

	missingKeyMessage = "INDIAN_KANOON_API_KEY not found in environment variables."
	noDocsMessage     = "No documents found for the given query."
)

// SearchParams are the query parameters of one search call.
// Dates use the DD-MM-YYYY format; DocTypes is comma separated
// (e.g. "supremecourt,judgments,laws").
type SearchParams struct {
	Query    string `json:"query"`
	DocTypes string `json:"doctypes,omitempty"`
	FromDate string `json:"fromdate,omitempty"`
	ToDate   string `json:"todate,omitempty"`
	PageNum  int    `json:"pagenum,omitempty"`
}

// SearchResponse represents a response from the search API
type SearchResponse struct {
	Docs []SearchDoc `json:"docs"`
	// Error carries a failure text instead of results.
	Error string `json:"error,omitempty"`
}

// SearchDoc represents a single search result
type SearchDoc struct {
	TID       int    `json:"tid,omitempty"`
	Title     string `json:"title"`
	DocSource string `json:"docsource"`
	Headline  string `json:"headline"`
}

// LegalSearchClient talks to an Indian-Kanoon-compatible search API.
type LegalSearchClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// LegalSearchOption configures a LegalSearchClient.
type LegalSearchOption func(*LegalSearchClient)

// WithRateLimit paces outgoing requests to perSecond with a burst of one.
// A non-positive value disables pacing.
func WithRateLimit(perSecond float64) LegalSearchOption {
	return func(c *LegalSearchClient) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithTimeout sets the HTTP timeout of the client.
func WithTimeout(d time.Duration) LegalSearchOption {
	return func(c *LegalSearchClient) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewLegalSearchClient creates a new search client
func NewLegalSearchClient(apiKey, baseURL string, opts ...LegalSearchOption) *LegalSearchClient {
	if baseURL == "" {
		baseURL = DefaultLegalSearchURL
	}
	c := &LegalSearchClient{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(2), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search performs one search call. Configuration and transport problems are
// reported in SearchResponse.Error; the returned error is non-nil only when
// ctx is done.
func (c *LegalSearchClient) Search(ctx context.Context, params SearchParams) (*SearchResponse, error) {
	if c.apiKey == "" {
		return &SearchResponse{Error: missingKeyMessage}, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return &SearchResponse{Error: fmt.Sprintf("API request failed: %v", err)}, nil
	}

	resp, err := c.do(ctx, params)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return &SearchResponse{Error: fmt.Sprintf("API request failed: %v", err)}, nil
	}
	return resp, nil
}

func (c *LegalSearchClient) do(ctx context.Context, params SearchParams) (*SearchResponse, error) {
	form := url.Values{}
	form.Set("formInput", params.Query)
	form.Set("pagenum", strconv.Itoa(params.PageNum))
	if params.DocTypes != "" {
		form.Set("doctypes", params.DocTypes)
	}
	if params.FromDate != "" {
		form.Set("fromdate", params.FromDate)
	}
	if params.ToDate != "" {
		form.Set("todate", params.ToDate)
	}

	endpoint := c.baseURL + "/search/?" + form.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%d %s: %s", resp.StatusCode, http.StatusText(resp.StatusCode), strings.TrimSpace(string(body)))
	}

	var out SearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &out, nil
}

// FormatResults renders a search response for the model.
func FormatResults(resp *SearchResponse) string {
	if resp == nil {
		return noDocsMessage
	}
	if resp.Error != "" {
		return resp.Error
	}
	if len(resp.Docs) == 0 {
		return noDocsMessage
	}

	blocks := make([]string, 0, len(resp.Docs))
	for _, doc := range resp.Docs {
		blocks = append(blocks, fmt.Sprintf("Title: %s\nSource: %s\nSummary: %s\n---",
			orDefault(doc.Title, "No Title"),
			orDefault(doc.DocSource, "Unknown Source"),
			orDefault(doc.Headline, "No Description"),
		))
	}
	return strings.Join(blocks, "\n\n")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// LegalSearchTool exposes LegalSearchClient to the model.
type LegalSearchTool struct {
	client *LegalSearchClient
}

func NewLegalSearchTool(client *LegalSearchClient) *LegalSearchTool {
	return &LegalSearchTool{client: client}
}

func (t *LegalSearchTool) Name() string {
	return LegalSearchToolName
}

func (t *LegalSearchTool) Description() string {
	return `Searches Indian legal statutes, judgments, and laws using the Indian Kanoon API.
Use this tool when you need real-time legislative cross-referencing or specific Indian legal cases.`
}

func (t *LegalSearchTool) Parameters() json.RawMessage {
	return mustSchema(jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"query": {
				Type:        jsonschema.String,
				Description: "The search query.",
			},
			"doctypes": {
				Type:        jsonschema.String,
				Description: "Comma-separated document types, e.g. 'supremecourt,judgments,laws'.",
			},
			"fromdate": {
				Type:        jsonschema.String,
				Description: "Minimum publication date in DD-MM-YYYY format.",
			},
			"todate": {
				Type:        jsonschema.String,
				Description: "Maximum publication date in DD-MM-YYYY format.",
			},
		},
		Required: []string{"query"},
	})
}

func (t *LegalSearchTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var params SearchParams
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return ToolResult{
				Content: fmt.Sprintf("Failed to parse search arguments: %v", err),
				IsError: true,
			}, nil
		}
	}
	// Page selection is not exposed to the model.
	params.PageNum = 0

	resp, err := t.client.Search(ctx, params)
	if err != nil {
		return ToolResult{}, err
	}
	return ToolResult{
		Content: FormatResults(resp),
		IsError: resp.Error != "",
	}, nil
}
