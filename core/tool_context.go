package core

import (
	"context"

	"github.com/hojin-sohn/echo/logging"
)

// ToolContext provides a constrained surface for tool implementations
// invoked by the loop. It scopes an invocation to the surrounding request
// context, the model-supplied call identifier, and a structured logger.
// Tools must not retain the context beyond the call.
type ToolContext struct {
	ctx    context.Context
	callID string
	logger logging.Logger
}

// NewToolContext constructs a tool context bound to a request context and a
// unique function call identifier.
func NewToolContext(ctx context.Context, callID string, logger logging.Logger) *ToolContext {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &ToolContext{ctx: ctx, callID: callID, logger: logger}
}

// Context returns the context associated with the tool invocation. It is
// cancelled when the surrounding request is cancelled; blocking tools should
// honor it cooperatively.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// FunctionCallID returns the call identifier correlating the model request
// with this execution.
func (tc *ToolContext) FunctionCallID() string { return tc.callID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }
