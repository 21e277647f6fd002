package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hojin-sohn/echo/core"
	"github.com/hojin-sohn/echo/logging"
	"github.com/hojin-sohn/echo/tool"
)

// fakeSession scripts CallTool outcomes for proxy tool tests.
type fakeSession struct {
	result   *mcpsdk.CallToolResult
	err      error
	lastName string
	lastArgs any
}

func (s *fakeSession) CallTool(_ context.Context, params *mcpsdk.CallToolParams) (*mcpsdk.CallToolResult, error) {
	s.lastName = params.Name
	s.lastArgs = params.Arguments
	return s.result, s.err
}

func (s *fakeSession) Close() error { return nil }

func proxyToolContext() *core.ToolContext {
	return core.NewToolContext(context.Background(), "fc-proxy", logging.NoOpLogger{})
}

// -------------------- Proxy Tool Tests --------------------

func TestProxyTool_ForwardsCall(t *testing.T) {
	session := &fakeSession{
		result: &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{
				&mcpsdk.TextContent{Text: "line one"},
				&mcpsdk.TextContent{Text: "line two"},
			},
		},
	}
	pt := newProxyTool("fs", "fs_read", "Read a file", map[string]any{"type": "object"}, session, nil)

	result, err := pt.Call(proxyToolContext(), map[string]any{"path": "/tmp/x"})
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", result)
	assert.Equal(t, "fs_read", session.lastName)
	assert.Equal(t, map[string]any{"path": "/tmp/x"}, session.lastArgs)
	assert.True(t, pt.Blocking())
}

func TestProxyTool_ProviderReportedError(t *testing.T) {
	session := &fakeSession{
		result: &mcpsdk.CallToolResult{
			IsError: true,
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "file not found"}},
		},
	}
	pt := newProxyTool("fs", "fs_read", "Read a file", nil, session, nil)

	_, err := pt.Call(proxyToolContext(), map[string]any{})
	require.Error(t, err)
	var toolErr *tool.ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
	assert.Contains(t, toolErr.Message, "file not found")
}

func TestProxyTool_TransportError(t *testing.T) {
	session := &fakeSession{err: errors.New("pipe closed")}
	pt := newProxyTool("fs", "fs_read", "Read a file", nil, session, nil)

	_, err := pt.Call(proxyToolContext(), map[string]any{})
	require.Error(t, err)
	var toolErr *tool.ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "PROVIDER_ERROR", toolErr.Code)
}

// -------------------- Schema Conversion Tests --------------------

func TestSchemaToMap(t *testing.T) {
	m := schemaToMap(nil)
	assert.Equal(t, "object", m["type"])

	schema := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"path": {Type: "string", Description: "File path"},
		},
		Required: []string{"path"},
	}
	m = schemaToMap(schema)
	assert.Equal(t, "object", m["type"])
	props, ok := m["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "path")
}
