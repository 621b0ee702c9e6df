package team

import (
	"context"
	"sync"

	"github.com/everydev1618/goteam/llm"
)

// mockClient is a scripted completion backend for tests. Each call is
// answered by the handler; requests are recorded for inspection.
type mockClient struct {
	handler func(req *llm.Request) (*llm.Response, error)

	mu       sync.Mutex
	requests []*llm.Request
}

func newMockClient(handler func(req *llm.Request) (*llm.Response, error)) *mockClient {
	return &mockClient{handler: handler}
}

// replyWith returns a client that always answers with the same text.
func replyWith(text string) *mockClient {
	return newMockClient(func(req *llm.Request) (*llm.Response, error) {
		return &llm.Response{Content: text, StopReason: llm.StopReasonEnd}, nil
	})
}

func (m *mockClient) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	return m.handler(req)
}

func (m *mockClient) GenerateStream(ctx context.Context, req *llm.Request) (<-chan llm.StreamEvent, error) {
	resp, err := m.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	ch := make(chan llm.StreamEvent, len(resp.Content)+len(resp.ToolCalls)+1)
	// One event per rune keeps chunking deterministic.
	for _, r := range resp.Content {
		ch <- llm.StreamEvent{Type: llm.StreamEventContentDelta, Delta: string(r)}
	}
	if len(resp.ToolCalls) > 0 {
		for i := range resp.ToolCalls {
			ch <- llm.StreamEvent{Type: llm.StreamEventMessageEnd, ToolCall: &resp.ToolCalls[i]}
		}
	} else {
		ch <- llm.StreamEvent{Type: llm.StreamEventMessageEnd}
	}
	close(ch)
	return ch, nil
}

func (m *mockClient) requestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *mockClient) recordedRequests() []*llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*llm.Request(nil), m.requests...)
}

func (m *mockClient) lastRequest() *llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}
