// Package llm provides completion-service client implementations.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"
)

// GroqClient is a Client implementation using the Groq OpenAI-compatible API.
type GroqClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	model      string
}

// GroqOption configures the Groq client.
type GroqOption func(*GroqClient)

// WithAPIKey sets the API key.
func WithAPIKey(key string) GroqOption {
	return func(g *GroqClient) {
		g.apiKey = key
	}
}

// WithModel sets the default model.
func WithModel(model string) GroqOption {
	return func(g *GroqClient) {
		g.model = model
	}
}

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) GroqOption {
	return func(g *GroqClient) {
		g.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) GroqOption {
	return func(g *GroqClient) {
		g.httpClient = client
	}
}

// Default Groq configuration values
const (
	DefaultGroqTimeout = 5 * time.Minute
	DefaultGroqModel   = "llama3-70b-8192"
	DefaultGroqBaseURL = "https://api.groq.com/openai/v1"
)

// NewGroq creates a new Groq completion client.
func NewGroq(opts ...GroqOption) *GroqClient {
	g := &GroqClient{
		apiKey:  os.Getenv("GROQ_API_KEY"),
		baseURL: DefaultGroqBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultGroqTimeout,
		},
		model: DefaultGroqModel,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// chatRequest is the API request format.
type chatRequest struct {
	Model       string     `json:"model"`
	Messages    []chatMsg  `json:"messages"`
	Temperature *float64   `json:"temperature,omitempty"`
	MaxTokens   int        `json:"max_tokens,omitempty"`
	Tools       []chatTool `json:"tools,omitempty"`
	Stream      bool       `json:"stream,omitempty"`
}

type chatMsg struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type chatToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// chatResponse is the API response format.
type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int     `json:"index"`
		Message      chatMsg `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// chatChunk is a single streaming chunk.
type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// ValidateKey makes a minimal API call to verify the API key is valid.
func (g *GroqClient) ValidateKey(ctx context.Context) error {
	if g.apiKey == "" {
		return fmt.Errorf("API key is empty")
	}

	req := &Request{
		Model:     g.model,
		MaxTokens: 1,
		Messages:  []Message{{Role: RoleUser, Content: "hi"}},
	}

	if _, err := g.Generate(ctx, req); err != nil {
		return fmt.Errorf("could not reach Groq API: %w", err)
	}
	return nil
}

// Generate sends a request and returns the complete response.
func (g *GroqClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	resp, err := g.doRequest(ctx, g.buildRequest(req, false))
	if err != nil {
		return nil, err
	}

	return g.parseResponse(resp, time.Since(start))
}

// GenerateStream sends a request and returns a channel of streaming events.
func (g *GroqClient) GenerateStream(ctx context.Context, req *Request) (<-chan StreamEvent, error) {
	body := g.buildRequest(req, true)

	eventCh := make(chan StreamEvent, 100)

	go func() {
		defer close(eventCh)

		const maxRetries = 5
		for attempt := 0; attempt <= maxRetries; attempt++ {
			httpReq, err := g.createHTTPRequest(ctx, body)
			if err != nil {
				eventCh <- StreamEvent{Type: StreamEventError, Error: err}
				return
			}

			httpResp, err := g.httpClient.Do(httpReq)
			if err != nil {
				eventCh <- StreamEvent{Type: StreamEventError, Error: err}
				return
			}

			if httpResp.StatusCode == http.StatusOK {
				g.parseSSE(httpResp.Body, eventCh)
				httpResp.Body.Close()
				return
			}

			respBody, _ := io.ReadAll(httpResp.Body)

			// Retry on 429 (rate limit) and 503 (overloaded).
			if (httpResp.StatusCode == 429 || httpResp.StatusCode == 503) && attempt < maxRetries {
				wait := retryAfterDelay(httpResp, attempt)
				slog.Warn("API rate limited (stream), retrying", "status", httpResp.StatusCode, "attempt", attempt+1, "wait", wait)
				httpResp.Body.Close()
				select {
				case <-time.After(wait):
					continue
				case <-ctx.Done():
					eventCh <- StreamEvent{Type: StreamEventError, Error: ctx.Err()}
					return
				}
			}

			httpResp.Body.Close()
			eventCh <- StreamEvent{
				Type:  StreamEventError,
				Error: fmt.Errorf("API error %d: %s", httpResp.StatusCode, string(respBody)),
			}
			return
		}

		eventCh <- StreamEvent{Type: StreamEventError, Error: fmt.Errorf("max retries exceeded")}
	}()

	return eventCh, nil
}

func (g *GroqClient) buildRequest(req *Request, stream bool) *chatRequest {
	out := &chatRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
	if out.Model == "" {
		out.Model = g.model
	}

	for _, msg := range req.Messages {
		cm := chatMsg{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			args, _ := json.Marshal(tc.Arguments)
			ctc := chatToolCall{ID: tc.ID, Type: "function"}
			ctc.Function.Name = tc.Name
			ctc.Function.Arguments = string(args)
			cm.ToolCalls = append(cm.ToolCalls, ctc)
		}
		out.Messages = append(out.Messages, cm)
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, chatTool{
			Type: "function",
			Function: chatFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}

	return out
}

func (g *GroqClient) createHTTPRequest(ctx context.Context, req *chatRequest) (*http.Request, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	return httpReq, nil
}

func (g *GroqClient) doRequest(ctx context.Context, req *chatRequest) (*chatResponse, error) {
	const maxRetries = 5

	for attempt := 0; attempt <= maxRetries; attempt++ {
		httpReq, err := g.createHTTPRequest(ctx, req)
		if err != nil {
			return nil, err
		}

		httpResp, err := g.httpClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("http request: %w", err)
		}

		body, err := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		if httpResp.StatusCode == http.StatusOK {
			var resp chatResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return nil, fmt.Errorf("unmarshal response: %w", err)
			}
			if len(resp.Choices) == 0 {
				return nil, fmt.Errorf("malformed response: no choices")
			}
			return &resp, nil
		}

		// Retry on 429 (rate limit) and 503 (overloaded).
		if (httpResp.StatusCode == 429 || httpResp.StatusCode == 503) && attempt < maxRetries {
			wait := retryAfterDelay(httpResp, attempt)
			slog.Warn("API rate limited, retrying", "status", httpResp.StatusCode, "attempt", attempt+1, "wait", wait)
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		return nil, fmt.Errorf("API error %d: %s", httpResp.StatusCode, string(body))
	}

	return nil, fmt.Errorf("max retries exceeded")
}

// retryAfterDelay returns how long to wait before retrying a rate-limited request.
// It respects the retry-after header if present, otherwise uses exponential backoff.
func retryAfterDelay(resp *http.Response, attempt int) time.Duration {
	if ra := resp.Header.Get("retry-after"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	// Exponential backoff: 5s, 10s, 20s, 40s, 60s
	wait := time.Duration(5<<uint(attempt)) * time.Second
	if wait > 60*time.Second {
		wait = 60 * time.Second
	}
	return wait
}

func (g *GroqClient) parseResponse(resp *chatResponse, latency time.Duration) (*Response, error) {
	choice := resp.Choices[0]

	result := &Response{
		Content:      choice.Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		LatencyMs:    latency.Milliseconds(),
	}

	switch choice.FinishReason {
	case "stop":
		result.StopReason = StopReasonEnd
	case "tool_calls":
		result.StopReason = StopReasonToolUse
	case "length":
		result.StopReason = StopReasonLength
	case "content_filter":
		result.StopReason = StopReasonFiltered
	}

	for _, tc := range choice.Message.ToolCalls {
		call := ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: make(map[string]any),
		}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &call.Arguments); err != nil {
				return nil, fmt.Errorf("malformed tool call arguments for %s: %w", call.Name, err)
			}
		}
		result.ToolCalls = append(result.ToolCalls, call)
	}

	return result, nil
}

func (g *GroqClient) parseSSE(reader io.Reader, eventCh chan<- StreamEvent) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	// Tool call fragments are accumulated by index and flushed at stream end.
	type partialCall struct {
		id   string
		name string
		args string
	}
	calls := make(map[int]*partialCall)
	outputTokens := 0

	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 6 || line[:6] != "data: " {
			continue
		}
		data := line[6:]
		if data == "[DONE]" {
			break
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			eventCh <- StreamEvent{Type: StreamEventError, Error: fmt.Errorf("malformed stream chunk: %w", err)}
			return
		}

		if chunk.Usage != nil {
			outputTokens = chunk.Usage.CompletionTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta

		if delta.Content != "" {
			eventCh <- StreamEvent{Type: StreamEventContentDelta, Delta: delta.Content}
		}

		for _, tc := range delta.ToolCalls {
			pc, ok := calls[tc.Index]
			if !ok {
				pc = &partialCall{}
				calls[tc.Index] = pc
			}
			if tc.ID != "" {
				pc.id = tc.ID
			}
			if tc.Function.Name != "" {
				pc.name = tc.Function.Name
				eventCh <- StreamEvent{Type: StreamEventToolStart, ToolCall: &ToolCall{
					ID:        pc.id,
					Name:      pc.name,
					Arguments: make(map[string]any),
				}}
			}
			if tc.Function.Arguments != "" {
				pc.args += tc.Function.Arguments
				eventCh <- StreamEvent{Type: StreamEventToolDelta, Delta: tc.Function.Arguments}
			}
		}
	}

	// Emit completed tool calls in index order.
	for i := 0; i < len(calls); i++ {
		pc, ok := calls[i]
		if !ok {
			continue
		}
		args := make(map[string]any)
		if pc.args != "" {
			json.Unmarshal([]byte(pc.args), &args)
		}
		eventCh <- StreamEvent{Type: StreamEventMessageEnd, ToolCall: &ToolCall{
			ID:        pc.id,
			Name:      pc.name,
			Arguments: args,
		}, OutputTokens: outputTokens}
	}

	if len(calls) == 0 {
		eventCh <- StreamEvent{Type: StreamEventMessageEnd, OutputTokens: outputTokens}
	}
}
