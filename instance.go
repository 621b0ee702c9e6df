package team

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/everydev1618/goteam/llm"
	"github.com/everydev1618/goteam/tools"
)

// DefaultMaxToolIterations bounds the tool call loop per response.
const DefaultMaxToolIterations = 8

// MessageRole identifies who produced a history message.
type MessageRole string

const (
	MessageRoleUser   MessageRole = "user"
	MessageRoleAgent  MessageRole = "agent"
	MessageRoleSystem MessageRole = "system"
)

// Message is one entry in an instance's conversation history.
type Message struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Origin    string      `json:"origin"` // template or role name of the producer
	Timestamp time.Time   `json:"timestamp"`
}

// InstanceStatus reports whether an instance can take work.
type InstanceStatus string

const (
	StatusAvailable InstanceStatus = "available"
	StatusBusy      InstanceStatus = "busy"
)

// Instance is a live agent created from a template. The template is bound
// by value at creation time: later registry changes do not affect it.
// History is append-only and only grows by completed exchanges.
type Instance struct {
	id       string
	template AgentTemplate
	client   llm.Client
	catalog  *tools.Catalog

	history []Message
	busy    bool
	maxIter int
	mu      sync.RWMutex

	// respondMu serializes Respond/RespondStream so history stays ordered.
	respondMu sync.Mutex
}

// NewInstance creates an agent instance bound to a copy of the template.
// The catalog is filtered down to the template's tool names.
func NewInstance(tmpl AgentTemplate, client llm.Client, catalog *tools.Catalog) *Instance {
	var filtered *tools.Catalog
	if catalog != nil && len(tmpl.Tools) > 0 {
		filtered = catalog.Filter(tmpl.Tools...)
	}

	return &Instance{
		id:       uuid.New().String(),
		template: tmpl.clone(),
		client:   client,
		catalog:  filtered,
		maxIter:  DefaultMaxToolIterations,
	}
}

// ID returns the unique instance identifier.
func (a *Instance) ID() string {
	return a.id
}

// Template returns a copy of the bound template.
func (a *Instance) Template() AgentTemplate {
	return a.template.clone()
}

// Status reports available or busy.
func (a *Instance) Status() InstanceStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.busy {
		return StatusBusy
	}
	return StatusAvailable
}

// History returns a copy of the conversation history.
func (a *Instance) History() []Message {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]Message(nil), a.history...)
}

// Respond sends a message to the agent and returns its reply. The exchange
// is appended to history only after the reply fully succeeds; a failed or
// cancelled call leaves history unchanged.
func (a *Instance) Respond(ctx context.Context, message string) (string, error) {
	a.respondMu.Lock()
	defer a.respondMu.Unlock()

	a.setBusy(true)
	defer a.setBusy(false)

	reply, err := a.complete(ctx, message, nil)
	if err != nil {
		return "", err
	}

	a.commit(message, reply)
	return reply, nil
}

// RespondStream sends a message and streams the reply as text fragments.
// The exchange is committed to history only when the stream completes;
// cancelling mid-stream leaves history unchanged.
func (a *Instance) RespondStream(ctx context.Context, message string) (*Stream, error) {
	a.respondMu.Lock()
	a.setBusy(true)

	stream := newStream()

	go func() {
		defer a.respondMu.Unlock()
		defer a.setBusy(false)

		reply, err := a.complete(ctx, message, stream.push)
		if err != nil {
			stream.finish(err)
			return
		}

		a.commit(message, reply)
		stream.finish(nil)
	}()

	return stream, nil
}

// complete runs the completion loop, executing tool calls until the model
// returns a final text reply. onDelta, when non-nil, receives text fragments
// as they arrive.
func (a *Instance) complete(ctx context.Context, message string, onDelta func(string)) (string, error) {
	messages := a.buildMessages(message)

	var schemas []llm.ToolSchema
	if a.catalog != nil {
		schemas = a.catalog.Schema()
	}

	temp := a.template.Temperature
	req := &llm.Request{
		Model:       a.template.Model,
		Temperature: &temp,
		MaxTokens:   a.template.MaxTokens,
		Tools:       schemas,
	}

	for iteration := 0; ; iteration++ {
		if iteration >= a.maxIter {
			return "", fmt.Errorf("agent %s: %w", a.template.Name, ErrToolLoopExceeded)
		}

		req.Messages = messages

		var content string
		var calls []llm.ToolCall
		var err error
		if onDelta != nil {
			content, calls, err = a.generateStreaming(ctx, req, onDelta)
		} else {
			var resp *llm.Response
			resp, err = a.client.Generate(ctx, req)
			if err == nil {
				content, calls = resp.Content, resp.ToolCalls
			}
		}
		if err != nil {
			return "", err
		}

		if len(calls) == 0 {
			return content, nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   content,
			ToolCalls: calls,
		})

		for _, call := range calls {
			result, err := a.executeTool(ctx, call)
			if err != nil {
				// The model sees tool failures and can recover or explain.
				result = fmt.Sprintf("error: %v", err)
			}
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}
}

// generateStreaming consumes a stream of events, forwarding text fragments
// and collecting any tool calls.
func (a *Instance) generateStreaming(ctx context.Context, req *llm.Request, onDelta func(string)) (string, []llm.ToolCall, error) {
	events, err := a.client.GenerateStream(ctx, req)
	if err != nil {
		return "", nil, err
	}

	var content string
	var calls []llm.ToolCall
	for ev := range events {
		switch ev.Type {
		case llm.StreamEventContentDelta:
			content += ev.Delta
			onDelta(ev.Delta)
		case llm.StreamEventMessageEnd:
			if ev.ToolCall != nil {
				calls = append(calls, *ev.ToolCall)
			}
		case llm.StreamEventError:
			return "", nil, ev.Error
		}
	}

	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	return content, calls, nil
}

func (a *Instance) executeTool(ctx context.Context, call llm.ToolCall) (string, error) {
	if a.catalog == nil {
		return "", fmt.Errorf("tool %s: no tools available", call.Name)
	}

	slog.Debug("tool call", "agent", a.template.Name, "tool", call.Name)
	result, err := a.catalog.Execute(ctx, call.Name, call.Arguments)
	if err != nil {
		slog.Warn("tool call failed", "agent", a.template.Name, "tool", call.Name, "error", err)
	}
	return result, err
}

// buildMessages assembles system prompt + committed history + new message.
func (a *Instance) buildMessages(message string) []llm.Message {
	a.mu.RLock()
	defer a.mu.RUnlock()

	messages := make([]llm.Message, 0, len(a.history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: a.template.Instructions})
	for _, m := range a.history {
		role := llm.RoleUser
		if m.Role == MessageRoleAgent {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: message})
	return messages
}

// commit appends a completed exchange to history in one step.
func (a *Instance) commit(userMessage, reply string) {
	now := time.Now()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history,
		Message{Role: MessageRoleUser, Content: userMessage, Timestamp: now},
		Message{Role: MessageRoleAgent, Content: reply, Origin: a.template.Name, Timestamp: now},
	)
}

func (a *Instance) setBusy(busy bool) {
	a.mu.Lock()
	a.busy = busy
	a.mu.Unlock()
}

// MarshalJSON serializes the instance's public state.
func (a *Instance) MarshalJSON() ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	status := StatusAvailable
	if a.busy {
		status = StatusBusy
	}
	return json.Marshal(map[string]any{
		"id":       a.id,
		"template": a.template,
		"status":   status,
		"messages": len(a.history),
	})
}
