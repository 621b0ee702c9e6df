package llm

import "context"

// Client is the interface for completion-service backends.
type Client interface {
	// Generate sends a request and returns the complete response.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// GenerateStream sends a request and returns a channel of streaming events.
	GenerateStream(ctx context.Context, req *Request) (<-chan StreamEvent, error)
}

// Request is a single completion-service call.
type Request struct {
	// Model is the model identifier (e.g. "llama3-70b-8192")
	Model string

	// Temperature for generation (0.0-2.0, nil = backend default)
	Temperature *float64

	// MaxTokens limits response length (0 = backend default)
	MaxTokens int

	// Messages is the conversation to complete
	Messages []Message

	// Tools the model may call
	Tools []ToolSchema
}

// Message represents a conversation message.
type Message struct {
	Role    Role
	Content string

	// ToolCalls carries tool invocations on assistant messages.
	ToolCalls []ToolCall

	// ToolCallID links a tool-result message to the call it answers.
	ToolCallID string
}

// Role identifies the message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Response is the response from a completion call.
type Response struct {
	// Content is the text response
	Content string

	// ToolCalls are any tool calls the model wants to make
	ToolCalls []ToolCall

	// Token counts
	InputTokens  int
	OutputTokens int

	// Latency in milliseconds
	LatencyMs int64

	// StopReason indicates why generation stopped
	StopReason StopReason
}

// ToolCall represents a tool call from the model.
type ToolCall struct {
	// ID is the unique identifier for this tool call
	ID string

	// Name is the tool being called
	Name string

	// Arguments are the parameters passed to the tool
	Arguments map[string]any
}

// StopReason indicates why the model stopped generating.
type StopReason string

const (
	StopReasonEnd      StopReason = "stop"
	StopReasonToolUse  StopReason = "tool_calls"
	StopReasonLength   StopReason = "length"
	StopReasonFiltered StopReason = "content_filter"
)

// StreamEvent is an event from streaming generation.
type StreamEvent struct {
	// Type of event
	Type StreamEventType

	// Delta is new content for ContentDelta events
	Delta string

	// ToolCall for ToolStart events
	ToolCall *ToolCall

	// Error if something went wrong
	Error error

	// OutputTokens after message end
	OutputTokens int
}

// StreamEventType categorizes stream events.
type StreamEventType string

const (
	StreamEventContentDelta StreamEventType = "content_delta"
	StreamEventToolStart    StreamEventType = "tool_start"
	StreamEventToolDelta    StreamEventType = "tool_delta"
	StreamEventMessageEnd   StreamEventType = "message_end"
	StreamEventError        StreamEventType = "error"
)

// ToolSchema describes a tool for the model.
type ToolSchema struct {
	// Name of the tool
	Name string `json:"name"`

	// Description of what the tool does
	Description string `json:"description"`

	// InputSchema is the JSON Schema for parameters
	InputSchema map[string]any `json:"input_schema"`
}
