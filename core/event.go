package core

import "github.com/google/uuid"

// EventType identifies a stream event emitted while a turn executes.
type EventType string

const (
	// EventThought carries assistant text produced alongside tool calls.
	EventThought EventType = "thought"
	// EventToolCall announces a tool dispatch before it runs.
	EventToolCall EventType = "tool_call"
	// EventToolResult carries the outcome of a dispatched tool call.
	EventToolResult EventType = "tool_result"
	// EventResponse carries the final (or error-shaped) answer of a turn.
	EventResponse EventType = "response"
)

// ToolCallPayload is the payload of an EventToolCall event.
type ToolCallPayload struct {
	ToolName string         `json:"toolName"`
	ToolArgs map[string]any `json:"toolArgs"`
}

// ToolResultPayload is the payload of an EventToolResult event.
type ToolResultPayload struct {
	ToolName string `json:"toolName"`
	Result   string `json:"result"`
	IsError  bool   `json:"isError,omitempty"`
}

// Callback receives stream events during a turn. Events for one turn are
// delivered in emission order. Callbacks run with fire-and-forget semantics:
// panics are swallowed and never affect loop progress, so implementations
// must not rely on the loop observing their failures.
type Callback func(eventType EventType, payload any)

// NewID generates a new unique identifier for turns and tool calls that
// need correlation outside the model-supplied call IDs.
func NewID() string { return uuid.NewString() }
