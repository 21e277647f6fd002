package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hojin-sohn/echo/core"
	"github.com/hojin-sohn/echo/logging"
	"github.com/hojin-sohn/echo/tool"
)

const (
	clientName    = "echo"
	clientVersion = "0.1.0"
)

// State is the lifecycle state of one provider connection.
type State string

const (
	// StateConnecting is the transient state while startup is in flight.
	StateConnecting State = "connecting"
	// StateConnected means the provider initialized and contributed tools.
	StateConnected State = "connected"
	// StateError means startup failed; resources have been released.
	StateError State = "error"
)

// Status is the per-name reconciliation outcome reported to callers.
type Status struct {
	State State  `json:"status"`
	Error string `json:"error,omitempty"`
}

// Connection owns one live provider process: its resource stack and the
// tools it contributed. Connections are exclusively owned by the Manager.
type Connection struct {
	name  string
	tools []tool.Tool
	stack *resourceStack
	state State
}

// Name returns the provider name this connection was registered under.
func (c *Connection) Name() string { return c.name }

// Tools returns the tools the provider contributed at initialization.
func (c *Connection) Tools() []tool.Tool { return c.tools }

// State returns the connection lifecycle state.
func (c *Connection) State() State { return c.state }

// mcpSession is the transport surface a proxy tool depends on.
type mcpSession interface {
	CallTool(ctx context.Context, params *mcpsdk.CallToolParams) (*mcpsdk.CallToolResult, error)
	Close() error
}

// dialFunc starts one provider and returns its contributed tools plus the
// resource stack releasing everything the attempt acquired. On error the
// returned stack (if any) still owns whatever was partially acquired and
// must be closed by the caller. Overridden in tests.
type dialFunc func(ctx context.Context, name string, cfg Config, logger logging.Logger) ([]tool.Tool, *resourceStack, error)

// dialStdio launches the provider process and connects over stdio using the
// MCP SDK. The context bounds initialization only; the process itself lives
// until the resource stack is closed.
func dialStdio(ctx context.Context, name string, cfg Config, logger logging.Logger) ([]tool.Tool, *resourceStack, error) {
	stack := newResourceStack()

	command := strings.TrimSpace(cfg.Command)
	if resolved, err := exec.LookPath(command); err == nil {
		command = resolved
	}

	// #nosec G204 -- command is validated against the allow-list before dial
	cmd := exec.Command(command, cfg.Args...)
	cmd.Env = mergedEnv(cfg.Env)
	stack.Push("process", func() error {
		if cmd.Process == nil {
			return nil
		}
		return cmd.Process.Kill()
	})

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: clientName, Version: clientVersion}, nil)
	transport := &mcpsdk.CommandTransport{Command: cmd}

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, stack, fmt.Errorf("connect %s: %w", name, err)
	}
	stack.Push("session", session.Close)

	var tools []tool.Tool
	for t, err := range session.Tools(ctx, nil) {
		if err != nil {
			return nil, stack, fmt.Errorf("list tools for %s: %w", name, err)
		}
		tools = append(tools, newProxyTool(name, t.Name, t.Description, schemaToMap(t.InputSchema), session, logger))
	}

	return tools, stack, nil
}

// mergedEnv layers config overrides on top of the parent environment.
func mergedEnv(overrides map[string]string) []string {
	if len(overrides) == 0 {
		return os.Environ()
	}
	env := os.Environ()
	for k, v := range overrides {
		env = append(env, k+"="+v)
	}
	return env
}

// schemaToMap converts an SDK input schema into the plain map shape the
// tool catalog carries. A nil schema becomes an empty object schema.
func schemaToMap(s *jsonschema.Schema) map[string]any {
	empty := map[string]any{"type": "object", "properties": map[string]any{}}
	if s == nil {
		return empty
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return empty
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return empty
	}
	return m
}

// proxyTool exposes one provider-contributed tool through the tool.Tool
// interface, forwarding invocations over the transport session. Argument
// validation is left to the provider, which owns the authoritative schema.
type proxyTool struct {
	provider    string
	name        string
	description string
	parameters  map[string]any
	session     mcpSession
	logger      logging.Logger
}

func newProxyTool(provider, name, description string, parameters map[string]any, session mcpSession, logger logging.Logger) *proxyTool {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &proxyTool{
		provider:    provider,
		name:        name,
		description: description,
		parameters:  parameters,
		session:     session,
		logger:      logger,
	}
}

// Name returns the tool name as announced by the provider.
func (t *proxyTool) Name() string { return t.name }

// Description returns the provider-supplied description.
func (t *proxyTool) Description() string { return t.description }

// Parameters returns the provider-supplied argument schema.
func (t *proxyTool) Parameters() map[string]any { return t.parameters }

// Blocking reports true: every invocation crosses a process boundary.
func (t *proxyTool) Blocking() bool { return true }

// Call forwards the invocation to the provider process and flattens the
// textual result. A result flagged as an error by the provider is returned
// as an error so the loop folds it into the tool-result message.
func (t *proxyTool) Call(toolCtx *core.ToolContext, args map[string]any) (string, error) {
	t.logger.Debug("provider.tool.call", "provider", t.provider, "tool", t.name, "fc_id", toolCtx.FunctionCallID())

	result, err := t.session.CallTool(toolCtx.Context(), &mcpsdk.CallToolParams{
		Name:      t.name,
		Arguments: args,
	})
	if err != nil {
		return "", tool.NewToolError(t.name, err.Error(), "PROVIDER_ERROR")
	}

	text := flattenContent(result.Content)
	if result.IsError {
		if text == "" {
			text = "provider reported an error"
		}
		return "", tool.NewToolError(t.name, text, "EXECUTION_ERROR")
	}
	return text, nil
}

// flattenContent joins the textual content blocks of a tool result.
func flattenContent(blocks []mcpsdk.Content) string {
	var parts []string
	for _, b := range blocks {
		if tc, ok := b.(*mcpsdk.TextContent); ok && tc.Text != "" {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
