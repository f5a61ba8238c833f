package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

// ErrNoChoices is returned when the provider answers without any choice.
var ErrNoChoices = errors.New("no choices in response")

// ErrMalformedToolCall is returned when tool call arguments are not a JSON object.
var ErrMalformedToolCall = errors.New("malformed tool call arguments")

// Client is an OpenAI-compatible chat and embedding client.
// Thread-safe for concurrent use.
type Client struct {
	config     *Config
	api        *openai.Client
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new LLM client with the given configuration
//
// Example:
//
//	client, err := llm.NewClient(&llm.Config{APIKey: key, APIURL: url, Model: "openai/gpt-4o", MaxTokens: 2000, Timeout: 60})
//	if err != nil {
//		log.Fatal(err)
//	}
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	httpClient := &http.Client{
		Timeout: config.timeout(),
		Transport: &headerTransport{
			headers: config.GetHeaders(),
			next:    http.DefaultTransport,
		},
	}

	apiConfig := openai.DefaultConfig(config.APIKey)
	apiConfig.BaseURL = strings.TrimRight(config.APIURL, "/")
	apiConfig.HTTPClient = httpClient

	return &Client{
		config:     config,
		api:        openai.NewClientWithConfig(apiConfig),
		httpClient: httpClient,
		baseURL:    apiConfig.BaseURL,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.config.Model
}

// Chat sends one chat completion request and returns the assistant message.
// Tool calls without a provider id get a synthetic one so that tool results
// can always be correlated.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*Message, error) {
	apiReq := openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Messages:    toAPIMessages(req.Messages),
		MaxTokens:   c.getMaxTokens(req),
		Temperature: c.getTemperature(req),
	}

	if len(req.Tools) > 0 {
		apiReq.Tools = toAPITools(req.Tools)
	}

	if req.ResponseSchema != nil {
		apiReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.ResponseSchema.Name,
				Schema: req.ResponseSchema.Schema,
				Strict: req.ResponseSchema.Strict,
			},
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	msg, err := fromAPIMessage(resp.Choices[0].Message)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Embed returns one embedding per input, in input order.
func (c *Client) Embed(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: inputs,
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(inputs))
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float32, len(data))
	for i, d := range data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// getMaxTokens returns the max tokens to use for the request
func (c *Client) getMaxTokens(req ChatRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return c.config.MaxTokens
}

// getTemperature returns the temperature to use for the request.
// go-openai drops a zero temperature from the payload, so zero is sent as
// the smallest positive float32 instead.
func (c *Client) getTemperature(req ChatRequest) float32 {
	t := c.config.Temperature
	if req.Temperature != nil && *req.Temperature >= 0 && *req.Temperature <= 2 {
		t = *req.Temperature
	}
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

func toAPIMessages(messages []Message) []openai.ChatCompletionMessage {
	ret := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		apiMsg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		for _, tc := range m.ToolCalls {
			args := "{}"
			if len(tc.Arguments) > 0 {
				if raw, err := json.Marshal(tc.Arguments); err == nil {
					args = string(raw)
				}
			}
			apiMsg.ToolCalls = append(apiMsg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: args,
				},
			})
		}
		ret = append(ret, apiMsg)
	}
	return ret
}

func toAPITools(defs []ToolDefinition) []openai.Tool {
	ret := make([]openai.Tool, 0, len(defs))
	for _, d := range defs {
		ret = append(ret, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Function.Name,
				Description: d.Function.Description,
				Parameters:  d.Function.Parameters,
			},
		})
	}
	return ret
}

func fromAPIMessage(m openai.ChatCompletionMessage) (Message, error) {
	msg := Message{
		Role:    RoleAssistant,
		Content: m.Content,
	}
	for _, tc := range m.ToolCalls {
		args := map[string]any{}
		if raw := strings.TrimSpace(tc.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return Message{}, fmt.Errorf("%w for %q: %v", ErrMalformedToolCall, tc.Function.Name, err)
			}
		}
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID:        id,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return msg, nil
}

type headerTransport struct {
	headers map[string]string
	next    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) == 0 {
		return t.next.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}
	return t.next.RoundTrip(clone)
}
