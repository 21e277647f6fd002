package tool

import (
	"fmt"
	"time"

	"github.com/hojin-sohn/echo/core"
	"github.com/hojin-sohn/echo/internal/util"
)

// FunctionTool is a generic adapter that exposes a plain Go function as an
// Echo tool.
//
// Responsibilities:
//   - Holds a lightweight JSON-Schema-like parameter specification
//   - Validates model supplied arguments against that schema before execution
//   - Invokes the wrapped function with a *core.ToolContext giving access to
//     the request context, the function call ID and logging
//   - Normalizes error handling so callers receive *ToolError with
//     consistent codes:
//     VALIDATION_ERROR  -> schema / argument mismatch
//     EXECUTION_ERROR   -> underlying function returned an error (non-ToolError)
//     (custom codes preserved if the function returns *ToolError directly)
//
// A FunctionTool has no internal mutable state after construction and is
// safe for concurrent use by multiple goroutines.
type FunctionTool struct {
	// Tool identifier (snake_case recommended)
	name string
	// Human-readable description shown to models
	description string
	// JSON schema describing accepted arguments
	parameters map[string]any
	// Whether invocation may suspend on I/O
	blocking bool
	// User supplied implementation
	fn func(toolCtx *core.ToolContext, args map[string]any) (string, error)
}

// FunctionToolOption customizes a FunctionTool at construction.
type FunctionToolOption func(*FunctionTool)

// WithBlocking marks the tool as I/O-bound. Blocking tools are expected to
// honor ToolContext cancellation.
func WithBlocking() FunctionToolOption {
	return func(t *FunctionTool) { t.blocking = true }
}

// NewFunctionTool constructs a FunctionTool from explicit schema and function.
//
// Example:
//
//	sumTool := NewFunctionTool(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    "required": []string{"a", "b"},
//	  },
//	  func(tc *core.ToolContext, args map[string]any) (string, error) {
//	    return fmt.Sprintf("%v", args["a"].(float64)+args["b"].(float64)), nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (string, error),
	opts ...FunctionToolOption,
) *FunctionTool {
	t := &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// NewFunctionToolFromStruct derives the parameter schema from a struct using
// reflection. It is a convenience for simple argument containers and
// produces a schema equivalent to util.CreateSchema(structType).
//
// Example:
//
//	type SearchArgs struct {
//	  Query string `json:"query" description:"Search query"`
//	}
//
//	searchTool := NewFunctionToolFromStruct(
//	  "web_search",
//	  "Search the internet",
//	  SearchArgs{},
//	  searchFn,
//	)
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (string, error),
	opts ...FunctionToolOption,
) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn, opts...)
}

// Name returns the unique tool name used in function call declarations and routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the (minimal) JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Blocking reports whether invocation may suspend on I/O.
func (t *FunctionTool) Blocking() bool { return t.blocking }

// Call validates the provided args against the declared schema then invokes
// the underlying function. Validation or execution failures are wrapped (or
// passed through) as *ToolError for uniform downstream handling.
//
// Error Semantics:
//
//	*ToolError (returned directly)  -> forwarded unchanged
//	validation failure              -> *ToolError{Code: "VALIDATION_ERROR"}
//	other error                     -> *ToolError{Code: "EXECUTION_ERROR"}
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (string, error) {
	logger := toolCtx.Logger()
	start := time.Now()

	logger.Debug("tool.call.start", "tool", t.name, "fc_id", toolCtx.FunctionCallID())

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())

		return "", &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    "VALIDATION_ERROR",
		}
	}

	result, err := t.fn(toolCtx, args)
	if err != nil {
		if toolErr, ok := err.(*ToolError); ok { // Already a ToolError -> just log and forward
			logger.Error("tool.call.error", "tool", t.name, "error", toolErr.Message)
			return "", toolErr
		}

		logger.Error("tool.call.error", "tool", t.name, "error", err.Error())

		return "", &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    "EXECUTION_ERROR",
		}
	}

	logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}
