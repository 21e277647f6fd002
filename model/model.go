package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hojin-sohn/echo/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the
// model. Parameters is a JSON Schema object (draft agnostic, minimal subset
// expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request captures the normalized model input produced by the gateway.
type Request struct {
	Contents []core.Content   `json:"contents"` // Conversation history, system message first
	Tools    []ToolDefinition `json:"tools,omitempty"`
	Stream   bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"` // Indicates if this is a partial response
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required to drive generation. Retry and
// per-call timeout policy live behind this boundary, not in front of it.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Scripted responses are consumed in FIFO order; when the script is empty a
// canned echo of the last user text is produced.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	script    []Response
	responses map[string]string
	calls     int
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Enqueue appends a scripted response consumed before any canned completion.
func (m *MockModel) Enqueue(resp Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, resp)
}

// EnqueueToolCalls is a convenience scripting an assistant reply that
// requests the given function calls, optionally with thought text.
func (m *MockModel) EnqueueToolCalls(thought string, calls ...core.FunctionCall) {
	parts := []core.Part{}
	if thought != "" {
		parts = append(parts, core.TextPart{Text: thought})
	}
	for _, fc := range calls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
	}
	m.Enqueue(Response{
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: "tool_calls",
	})
}

// EnqueueFinal is a convenience scripting a plain final text reply.
func (m *MockModel) EnqueueFinal(text string) {
	m.Enqueue(Response{
		Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: text}}},
		FinishReason: "stop",
	})
}

// Calls reports how many times Generate has been invoked.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Generate implements Model; pops a scripted response or echoes the last
// user text.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if err := ctx.Err(); err != nil {
			errCh <- err
			return
		}

		m.mu.Lock()
		m.calls++
		if len(m.script) > 0 {
			next := m.script[0]
			m.script = m.script[1:]
			m.mu.Unlock()
			respCh <- next
			return
		}
		m.mu.Unlock()

		if len(req.Contents) == 0 {
			errCh <- fmt.Errorf("no contents provided")
			return
		}
		inputText := req.Contents[len(req.Contents)-1].Text()

		m.mu.Lock()
		full := m.responses[inputText]
		m.mu.Unlock()
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", inputText)
		}
		respCh <- Response{
			Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: full}}},
			FinishReason: "stop",
		}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
