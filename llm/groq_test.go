package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "llama3-70b-8192" {
			t.Errorf("model = %q", req.Model)
		}
		if req.Temperature == nil || *req.Temperature != 0.3 {
			t.Errorf("temperature not forwarded")
		}

		fmt.Fprint(w, `{
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "hello there"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 4}
		}`)
	}))
	defer server.Close()

	client := NewGroq(WithAPIKey("test-key"), WithBaseURL(server.URL))

	temp := 0.3
	resp, err := client.Generate(context.Background(), &Request{
		Temperature: temp2ptr(temp),
		Messages:    []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if resp.Content != "hello there" {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.StopReason != StopReasonEnd {
		t.Errorf("stop reason = %q", resp.StopReason)
	}
	if resp.InputTokens != 12 || resp.OutputTokens != 4 {
		t.Errorf("tokens = %d/%d", resp.InputTokens, resp.OutputTokens)
	}
}

func temp2ptr(f float64) *float64 { return &f }

func TestGenerateToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Tools) != 1 || req.Tools[0].Function.Name != "lookup_order" {
			t.Errorf("tools not forwarded: %+v", req.Tools)
		}

		fmt.Fprint(w, `{
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "",
				"tool_calls": [{"id": "call_1", "type": "function",
					"function": {"name": "lookup_order", "arguments": "{\"order_id\": \"A42\"}"}}]},
				"finish_reason": "tool_calls"}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 9}
		}`)
	}))
	defer server.Close()

	client := NewGroq(WithAPIKey("k"), WithBaseURL(server.URL))

	resp, err := client.Generate(context.Background(), &Request{
		Messages: []Message{{Role: RoleUser, Content: "where is my order"}},
		Tools: []ToolSchema{{
			Name:        "lookup_order",
			Description: "Look up an order",
			InputSchema: map[string]any{"type": "object"},
		}},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if resp.StopReason != StopReasonToolUse {
		t.Errorf("stop reason = %q", resp.StopReason)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("got %d tool calls", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.ID != "call_1" || tc.Name != "lookup_order" {
		t.Errorf("tool call = %+v", tc)
	}
	if tc.Arguments["order_id"] != "A42" {
		t.Errorf("arguments = %v", tc.Arguments)
	}
}

func TestGenerateMalformedToolArguments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "",
				"tool_calls": [{"id": "call_1", "type": "function",
					"function": {"name": "x", "arguments": "{not json"}}]},
				"finish_reason": "tool_calls"}],
			"usage": {}
		}`)
	}))
	defer server.Close()

	client := NewGroq(WithAPIKey("k"), WithBaseURL(server.URL))
	_, err := client.Generate(context.Background(), &Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err == nil {
		t.Fatal("expected error for malformed tool arguments")
	}
}

func TestGenerateRetryOn429(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("retry-after", "0")
			w.WriteHeader(429)
			fmt.Fprint(w, `{"error": {"message": "rate limited"}}`)
			return
		}
		fmt.Fprint(w, `{
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "ok"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 1, "completion_tokens": 1}
		}`)
	}))
	defer server.Close()

	client := NewGroq(WithAPIKey("k"), WithBaseURL(server.URL))
	resp, err := client.Generate(context.Background(), &Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("content = %q", resp.Content)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestGenerateSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(400)
		fmt.Fprint(w, `{"error": {"message": "bad request"}}`)
	}))
	defer server.Close()

	client := NewGroq(WithAPIKey("k"), WithBaseURL(server.URL))
	_, err := client.Generate(context.Background(), &Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestGenerateStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			t.Error("stream flag not set")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}],\"usage\":{\"completion_tokens\":2}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewGroq(WithAPIKey("k"), WithBaseURL(server.URL))
	events, err := client.GenerateStream(context.Background(), &Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}

	var text string
	var ended bool
	for ev := range events {
		switch ev.Type {
		case StreamEventContentDelta:
			text += ev.Delta
		case StreamEventMessageEnd:
			ended = true
			if ev.OutputTokens != 2 {
				t.Errorf("output tokens = %d", ev.OutputTokens)
			}
		case StreamEventError:
			t.Fatalf("stream error: %v", ev.Error)
		}
	}

	if text != "Hello" {
		t.Errorf("text = %q", text)
	}
	if !ended {
		t.Error("no message end event")
	}
}

func TestGenerateStreamToolCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"id\":\"call_9\",\"function\":{\"name\":\"search\",\"arguments\":\"\"}}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"function\":{\"arguments\":\"{\\\"q\\\":\"}}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"function\":{\"arguments\":\"\\\"go\\\"}\"}}]}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewGroq(WithAPIKey("k"), WithBaseURL(server.URL))
	events, err := client.GenerateStream(context.Background(), &Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}

	var started *ToolCall
	var final *ToolCall
	for ev := range events {
		switch ev.Type {
		case StreamEventToolStart:
			started = ev.ToolCall
		case StreamEventMessageEnd:
			final = ev.ToolCall
		case StreamEventError:
			t.Fatalf("stream error: %v", ev.Error)
		}
	}

	if started == nil || started.Name != "search" {
		t.Fatalf("tool start = %+v", started)
	}
	if final == nil || final.ID != "call_9" {
		t.Fatalf("final tool call = %+v", final)
	}
	if final.Arguments["q"] != "go" {
		t.Errorf("arguments = %v", final.Arguments)
	}
}

type failingClient struct {
	err error
}

func (f *failingClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &Response{Content: "ok"}, nil
}

func (f *failingClient) GenerateStream(ctx context.Context, req *Request) (<-chan StreamEvent, error) {
	ch := make(chan StreamEvent)
	close(ch)
	return ch, nil
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	backend := &failingClient{err: errors.New("backend down")}
	client := NewBreakerClient(backend, BreakerConfig{
		Name:        "test",
		MaxFailures: 3,
		CoolDown:    time.Minute,
	})

	req := &Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}}

	for i := 0; i < 3; i++ {
		if _, err := client.Generate(context.Background(), req); err == nil {
			t.Fatal("expected failure")
		}
	}

	// Circuit is now open; the backend must not be reached even if healthy.
	backend.err = nil
	_, err := client.Generate(context.Background(), req)
	if err == nil {
		t.Fatal("expected open-circuit error")
	}

	if _, err := client.GenerateStream(context.Background(), req); err == nil {
		t.Fatal("expected open-circuit error for stream")
	}
}

func TestBreakerPassesThrough(t *testing.T) {
	client := NewBreakerClient(&failingClient{}, DefaultBreakerConfig())

	resp, err := client.Generate(context.Background(), &Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("content = %q", resp.Content)
	}
}
