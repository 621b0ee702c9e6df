package team

import (
	"context"
	"errors"
	"testing"

	"github.com/everydev1618/goteam/llm"
	"github.com/everydev1618/goteam/tools"
)

func TestRespond(t *testing.T) {
	client := replyWith("hello from the agent")
	inst := NewInstance(validTemplate(), client, nil)

	reply, err := inst.Respond(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply != "hello from the agent" {
		t.Errorf("reply = %q", reply)
	}

	history := inst.History()
	if len(history) != 2 {
		t.Fatalf("history length = %d", len(history))
	}
	if history[0].Role != MessageRoleUser || history[0].Content != "hi" {
		t.Errorf("history[0] = %+v", history[0])
	}
	if history[1].Role != MessageRoleAgent || history[1].Content != "hello from the agent" {
		t.Errorf("history[1] = %+v", history[1])
	}
	if history[1].Origin != "translator" {
		t.Errorf("origin = %q", history[1].Origin)
	}
}

func TestRespondUsesTemplateConfig(t *testing.T) {
	client := replyWith("ok")

	tmpl := validTemplate()
	tmpl.Temperature = 0.3
	tmpl.MaxTokens = 2048
	inst := NewInstance(tmpl, client, nil)

	if _, err := inst.Respond(context.Background(), "hi"); err != nil {
		t.Fatal(err)
	}

	req := client.lastRequest()
	if req.Temperature == nil || *req.Temperature != 0.3 {
		t.Errorf("temperature = %v", req.Temperature)
	}
	if req.MaxTokens != 2048 {
		t.Errorf("max tokens = %d", req.MaxTokens)
	}
	if req.Messages[0].Role != llm.RoleSystem || req.Messages[0].Content != tmpl.Instructions {
		t.Errorf("system message = %+v", req.Messages[0])
	}
}

func TestRespondErrorLeavesHistoryUnchanged(t *testing.T) {
	client := newMockClient(func(req *llm.Request) (*llm.Response, error) {
		return nil, errors.New("backend down")
	})
	inst := NewInstance(validTemplate(), client, nil)

	if _, err := inst.Respond(context.Background(), "hi"); err == nil {
		t.Fatal("expected error")
	}
	if len(inst.History()) != 0 {
		t.Error("failed exchange must not enter history")
	}
	if inst.Status() != StatusAvailable {
		t.Errorf("status = %q", inst.Status())
	}
}

func TestRespondToolLoop(t *testing.T) {
	catalog := tools.NewCatalog()
	catalog.Register("lookup_order", tools.ToolDef{
		Description: "Look up an order",
		Fn: func(ctx context.Context, params map[string]any) (string, error) {
			return "order " + params["order_id"].(string) + " has shipped", nil
		},
		Params: map[string]tools.ParamDef{
			"order_id": {Type: "string", Required: true},
		},
	})

	calls := 0
	client := newMockClient(func(req *llm.Request) (*llm.Response, error) {
		calls++
		if calls == 1 {
			if len(req.Tools) != 1 || req.Tools[0].Name != "lookup_order" {
				t.Errorf("tool schemas not forwarded: %+v", req.Tools)
			}
			return &llm.Response{
				ToolCalls: []llm.ToolCall{{
					ID:        "call_1",
					Name:      "lookup_order",
					Arguments: map[string]any{"order_id": "A42"},
				}},
				StopReason: llm.StopReasonToolUse,
			}, nil
		}

		// Second round must carry the tool result back.
		last := req.Messages[len(req.Messages)-1]
		if last.Role != llm.RoleTool || last.ToolCallID != "call_1" {
			t.Errorf("tool result message = %+v", last)
		}
		return &llm.Response{Content: "Your order A42 has shipped.", StopReason: llm.StopReasonEnd}, nil
	})

	tmpl := validTemplate()
	tmpl.Tools = []string{"lookup_order"}
	inst := NewInstance(tmpl, client, catalog)

	reply, err := inst.Respond(context.Background(), "where is my order A42?")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply != "Your order A42 has shipped." {
		t.Errorf("reply = %q", reply)
	}
	if calls != 2 {
		t.Errorf("completion calls = %d", calls)
	}
}

func TestRespondToolLoopExceeded(t *testing.T) {
	catalog := tools.NewCatalog()
	catalog.Register("spin", tools.ToolDef{
		Description: "always called again",
		Fn: func(ctx context.Context, params map[string]any) (string, error) {
			return "again", nil
		},
	})

	client := newMockClient(func(req *llm.Request) (*llm.Response, error) {
		return &llm.Response{
			ToolCalls:  []llm.ToolCall{{ID: "c", Name: "spin", Arguments: map[string]any{}}},
			StopReason: llm.StopReasonToolUse,
		}, nil
	})

	tmpl := validTemplate()
	tmpl.Tools = []string{"spin"}
	inst := NewInstance(tmpl, client, catalog)

	_, err := inst.Respond(context.Background(), "go")
	if !errors.Is(err, ErrToolLoopExceeded) {
		t.Fatalf("err = %v", err)
	}
	if len(inst.History()) != 0 {
		t.Error("aborted exchange must not enter history")
	}
}

func TestRespondStream(t *testing.T) {
	client := replyWith("chunked reply")
	inst := NewInstance(validTemplate(), client, nil)

	stream, err := inst.RespondStream(context.Background(), "hi")
	if err != nil {
		t.Fatalf("RespondStream: %v", err)
	}

	var got string
	for chunk := range stream.Chunks() {
		got += chunk
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if got != "chunked reply" {
		t.Errorf("streamed = %q", got)
	}
	if stream.Response() != "chunked reply" {
		t.Errorf("Response() = %q", stream.Response())
	}

	history := inst.History()
	if len(history) != 2 || history[1].Content != "chunked reply" {
		t.Errorf("history = %+v", history)
	}
}

func TestRespondStreamCancelLeavesHistoryUnchanged(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := replyWith("never delivered")
	inst := NewInstance(validTemplate(), client, nil)

	stream, err := inst.RespondStream(ctx, "hi")
	if err != nil {
		t.Fatalf("RespondStream: %v", err)
	}

	for range stream.Chunks() {
	}
	if stream.Err() == nil {
		t.Fatal("expected cancellation error")
	}

	if len(inst.History()) != 0 {
		t.Error("cancelled stream must not enter history")
	}
	if inst.Status() != StatusAvailable {
		t.Errorf("status = %q", inst.Status())
	}
}

func TestTemplateBoundByValue(t *testing.T) {
	r := NewRegistry(nil)
	tmpl := validTemplate()
	r.Register(tmpl)

	client := replyWith("ok")
	bound, _ := r.Get("translator")
	inst := NewInstance(bound, client, nil)

	// Superseding the template does not touch the live instance.
	updated := validTemplate()
	updated.Instructions = "completely different"
	r.Register(updated)

	if inst.Template().Instructions != tmpl.Instructions {
		t.Error("instance template changed after re-registration")
	}
}

func TestInstanceIDsUnique(t *testing.T) {
	client := replyWith("ok")
	a := NewInstance(validTemplate(), client, nil)
	b := NewInstance(validTemplate(), client, nil)

	if a.ID() == b.ID() {
		t.Error("instance IDs collide")
	}
	if a.ID() == "" {
		t.Error("empty instance ID")
	}
}
