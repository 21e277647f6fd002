// Package agent implements the bounded agentic loop: invoke the model,
// dispatch the tool calls it requests, feed results back into history, and
// repeat until the model answers or the iteration budget runs out.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hojin-sohn/echo/core"
	"github.com/hojin-sohn/echo/gateway"
	"github.com/hojin-sohn/echo/logging"
	"github.com/hojin-sohn/echo/model"
	"github.com/hojin-sohn/echo/provider"
	"github.com/hojin-sohn/echo/tool"
)

// DefaultMaxIterations bounds model invocations per user turn. The limit is
// a safety valve against runaway tool-calling loops, not an error condition.
const DefaultMaxIterations = 15

// DefaultSystemPrompt seeds the conversation when no prompt is configured.
const DefaultSystemPrompt = "You are Echo, a helpful assistant. Use the tools at your disposal to answer the user's questions."

// maxIterationsText is the fixed terminal response when the budget is spent.
const maxIterationsText = "Max iterations reached without a final answer."

// toolUseOutputLimit caps the output captured per tool use on the Response.
const toolUseOutputLimit = 1000

// Options configures an Agent.
type Options struct {
	SystemPrompt  string
	MaxIterations int
	Logger        logging.Logger
}

// ToolUse records one dispatched tool call within a turn.
type ToolUse struct {
	Name   string         `json:"name"`
	Args   map[string]any `json:"args"`
	Output string         `json:"output"`
}

// Response is the well-formed outcome of one turn. Callers always receive
// either a final answer or an error-shaped response, never a raw failure.
type Response struct {
	Text     string    `json:"text"`
	Error    string    `json:"error,omitempty"`
	ToolUses []ToolUse `json:"toolUses,omitempty"`
}

// RunOptions configure a single turn.
type RunOptions struct {
	// Image attaches an inline image reference (data URI) to the user message.
	Image string
	// Callback receives stream events in emission order.
	Callback core.Callback
}

// WithImage attaches an image reference to the user message.
func WithImage(dataURI string) func(o *RunOptions) {
	return func(o *RunOptions) { o.Image = dataURI }
}

// WithCallback registers a stream event callback for the turn.
func WithCallback(cb core.Callback) func(o *RunOptions) {
	return func(o *RunOptions) { o.Callback = cb }
}

// Agent drives the conversation loop. One Agent owns one conversation
// history; turns are processed by a single cooperative task, while the
// provider set may be reconciled concurrently. Each loop iteration works
// against one immutable catalog snapshot and picks up a newer one on the
// next iteration.
type Agent struct {
	history       *core.History
	gw            *gateway.Gateway
	providers     *provider.Manager
	maxIterations int
	logger        logging.Logger
}

// New constructs an Agent around a model and a provider manager.
func New(llm model.Model, providers *provider.Manager, optFns ...func(o *Options)) *Agent {
	opts := Options{
		SystemPrompt:  DefaultSystemPrompt,
		MaxIterations: DefaultMaxIterations,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Agent{
		history:       core.NewHistory(opts.SystemPrompt),
		gw:            gateway.New(llm, func(o *gateway.Options) { o.Logger = opts.Logger }),
		providers:     providers,
		maxIterations: opts.MaxIterations,
		logger:        opts.Logger,
	}
}

// Reset clears the conversation history back to the system message.
func (a *Agent) Reset() {
	a.history.Reset()
	a.logger.Info("agent.session.reset")
}

// SetSystemPrompt replaces the system message for subsequent turns.
func (a *Agent) SetSystemPrompt(text string) {
	a.history.SetSystemPrompt(text)
}

// History exposes the conversation history (for introspection and tests).
func (a *Agent) History() *core.History { return a.history }

// Run processes one user turn. It appends the user message, then alternates
// model invocation and sequential tool dispatch until the model produces a
// final answer or the iteration budget is exhausted.
//
// Failure shaping follows a fixed policy: an unknown tool or a failing tool
// becomes a tool-result message so the model can self-correct; a model
// failure ends the turn with an error-shaped response. Only a broken loop
// invariant is returned as a hard error.
func (a *Agent) Run(ctx context.Context, query string, optFns ...func(o *RunOptions)) (*Response, error) {
	var opts RunOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	userMsg := core.NewUserContent(query)
	if opts.Image != "" {
		userMsg = core.NewUserImageContent(query, opts.Image)
	}
	if err := a.history.Append(userMsg); err != nil {
		return nil, err
	}

	a.logger.Info("agent.turn.start", "query_len", len(query), "has_image", opts.Image != "")

	var toolUses []ToolUse
	for i := 0; i < a.maxIterations; i++ {
		catalog := a.snapshotCatalog()

		reply, err := a.gw.Invoke(ctx, a.history.Contents(), catalog)
		if err != nil {
			a.logger.Error("agent.invoke.error", "iteration", i+1, "error", err.Error())
			return a.finishError(opts.Callback, err, toolUses), nil
		}

		if err := a.history.Append(reply.Content); err != nil {
			return nil, err
		}

		if reply.Kind == gateway.ReplyFinal {
			resp := &Response{Text: reply.Text, ToolUses: toolUses}
			a.emit(opts.Callback, core.EventResponse, resp)
			a.logger.Info("agent.turn.done", "iterations", i+1, "tool_uses", len(toolUses))
			return resp, nil
		}

		a.emit(opts.Callback, core.EventThought, reply.Text)

		for _, fc := range reply.Calls {
			use, err := a.dispatch(ctx, catalog, fc, opts.Callback)
			if err != nil {
				return nil, err
			}
			if use != nil {
				toolUses = append(toolUses, *use)
			}
		}
	}

	a.logger.Warn("agent.turn.max_iterations", "max", a.maxIterations)
	resp := &Response{Text: maxIterationsText, ToolUses: toolUses}
	a.emit(opts.Callback, core.EventResponse, resp)
	return resp, nil
}

// snapshotCatalog returns the catalog for this iteration: the provider
// manager's current snapshot, or an empty one when no manager is wired.
func (a *Agent) snapshotCatalog() *tool.Catalog {
	if a.providers == nil {
		return tool.BuildCatalog(nil)
	}
	return a.providers.Catalog()
}

// dispatch resolves and executes one tool call, appends the tool-result
// message, and emits the corresponding events. Every failure mode ends in a
// well-formed tool-result; the only error returned is a history invariant
// violation.
func (a *Agent) dispatch(ctx context.Context, catalog *tool.Catalog, fc core.FunctionCall, cb core.Callback) (*ToolUse, error) {
	args, argsErr := parseArgs(fc.Arguments)

	a.emit(cb, core.EventToolCall, core.ToolCallPayload{ToolName: fc.Name, ToolArgs: args})

	handle, found := catalog.Resolve(fc.Name)

	var output string
	var isError bool
	switch {
	case !found:
		output = fmt.Sprintf("Error: Tool %s not found", fc.Name)
		isError = true
		a.logger.Warn("agent.tool.not_found", "tool", fc.Name)
	case argsErr != nil:
		output = fmt.Sprintf("Error: %v", argsErr)
		isError = true
	default:
		result, err := a.invoke(ctx, handle, fc, args)
		if err != nil {
			output = fmt.Sprintf("Error: %v", err)
			isError = true
		} else {
			output = result
		}
	}

	if err := a.history.Append(core.NewToolResultContent(fc.ID, fc.Name, output, isError)); err != nil {
		return nil, err
	}
	a.emit(cb, core.EventToolResult, core.ToolResultPayload{ToolName: fc.Name, Result: output, IsError: isError})

	if !found {
		return nil, nil
	}
	return &ToolUse{Name: fc.Name, Args: args, Output: truncate(output, toolUseOutputLimit)}, nil
}

// invoke runs the tool with panic isolation so a misbehaving tool can never
// crash the host process.
func (a *Agent) invoke(ctx context.Context, handle tool.Tool, fc core.FunctionCall, args map[string]any) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("agent.tool.panic", "tool", fc.Name, "recover", r)
			err = fmt.Errorf("tool %s panicked: %v", fc.Name, r)
		}
	}()

	toolCtx := core.NewToolContext(ctx, fc.ID, a.logger)
	return handle.Call(toolCtx, args)
}

// finishError shapes a model failure into the terminal error response.
func (a *Agent) finishError(cb core.Callback, err error, toolUses []ToolUse) *Response {
	resp := &Response{
		Text:     fmt.Sprintf("Error: %v", err),
		Error:    err.Error(),
		ToolUses: toolUses,
	}
	a.emit(cb, core.EventResponse, resp)
	return resp
}

// emit delivers one stream event with fire-and-forget semantics: events are
// delivered in order from the loop task and a panicking callback never
// affects loop progress.
func (a *Agent) emit(cb core.Callback, eventType core.EventType, payload any) {
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("agent.callback.panic", "event", string(eventType), "recover", r)
		}
	}()
	cb(eventType, payload)
}

// parseArgs decodes the model-supplied argument payload. An empty payload
// is an empty bag; malformed JSON is reported to the model as a tool error.
func parseArgs(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{}, fmt.Errorf("failed to unmarshal args: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// truncate limits captured tool output without touching what the model sees.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
