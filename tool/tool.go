// Package tool implements the tool calling subsystem: the Tool interface for
// invocable capabilities, a FunctionTool adapter with schema validated
// arguments and consistent error handling, and the immutable Catalog the
// loop resolves model-issued calls against.
package tool

import (
	"fmt"

	"github.com/hojin-sohn/echo/core"
)

// Tool defines the interface for capabilities the model may invoke.
//
// Two variants exist behind this interface: synchronous tools that complete
// without leaving the process (Blocking reports false) and I/O-bound tools
// that may suspend on network or subprocess activity (Blocking reports
// true). Both expose a name, a description for model guidance, a JSON schema
// for their arguments, and an invocation function.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Return errors rather than panicking
//   - Be safe for concurrent use
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case
	// recommended). Catalog lookups are case-insensitive.
	Name() string

	// Description returns a human-readable description of what this tool
	// does, provided to the model to guide tool selection.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Blocking reports whether invocation may suspend on I/O. Purely
	// computational tools return false; network or subprocess backed tools
	// return true and must honor ToolContext cancellation.
	Blocking() bool

	// Call executes the tool with structured arguments and returns the
	// textual result handed back to the model.
	Call(toolCtx *core.ToolContext, args map[string]any) (string, error)
}

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`    // Name of the tool that failed
	Message string `json:"message"` // Error message
	Code    string `json:"code"`    // Error code for categorization
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}
