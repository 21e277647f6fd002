package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hojin-sohn/echo/core"
	"github.com/hojin-sohn/echo/model"
	"github.com/hojin-sohn/echo/provider"
	"github.com/hojin-sohn/echo/tool"
)

// erroringModel always fails generation.
type erroringModel struct{ err error }

func (m *erroringModel) Generate(context.Context, model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response)
	errCh := make(chan error, 1)
	close(respCh)
	errCh <- m.err
	close(errCh)
	return respCh, errCh
}

func (m *erroringModel) Info() model.Info { return model.Info{Name: "erroring", Provider: "test"} }

// recordedEvent captures one callback delivery.
type recordedEvent struct {
	Type    core.EventType
	Payload any
}

type eventRecorder struct {
	events []recordedEvent
}

func (r *eventRecorder) callback(eventType core.EventType, payload any) {
	r.events = append(r.events, recordedEvent{Type: eventType, Payload: payload})
}

func (r *eventRecorder) types() []core.EventType {
	out := make([]core.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func staticTool(name, result string) tool.Tool {
	return tool.NewFunctionTool(name, "static test tool",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ *core.ToolContext, _ map[string]any) (string, error) { return result, nil })
}

func failingTool(name string, err error) tool.Tool {
	return tool.NewFunctionTool(name, "failing test tool",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ *core.ToolContext, _ map[string]any) (string, error) { return "", err })
}

func panickingTool(name string) tool.Tool {
	return tool.NewFunctionTool(name, "panicking test tool",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ *core.ToolContext, _ map[string]any) (string, error) { panic("tool exploded") })
}

func managerWith(builtins ...tool.Tool) *provider.Manager {
	return provider.NewManager(func(o *provider.ManagerOptions) {
		o.Builtins = builtins
	})
}

// -------------------- Loop Tests --------------------

func TestAgent_DirectFinalAnswer(t *testing.T) {
	mock := model.NewMockModel("mock", "test")
	mock.EnqueueFinal("the answer is 42")

	a := New(mock, managerWith())
	resp, err := a.Run(context.Background(), "what is the answer?")

	require.NoError(t, err)
	assert.Equal(t, "the answer is 42", resp.Text)
	assert.Empty(t, resp.Error)
	assert.Empty(t, resp.ToolUses)
	assert.Equal(t, 1, mock.Calls())

	// system + user + assistant
	assert.Equal(t, 3, a.History().Len())
}

func TestAgent_ToolCallThenFinal(t *testing.T) {
	mock := model.NewMockModel("mock", "test")
	mock.EnqueueToolCalls("checking the clock", core.FunctionCall{ID: "fc1", Name: "clock", Arguments: "{}"})
	mock.EnqueueFinal("it is noon")

	a := New(mock, managerWith(staticTool("clock", "12:00")))
	resp, err := a.Run(context.Background(), "what time is it?")

	require.NoError(t, err)
	assert.Equal(t, "it is noon", resp.Text)
	assert.Equal(t, 2, mock.Calls())

	require.Len(t, resp.ToolUses, 1)
	assert.Equal(t, "clock", resp.ToolUses[0].Name)
	assert.Equal(t, "12:00", resp.ToolUses[0].Output)

	// Tool result fed back as a tool message
	contents := a.History().Contents()
	var toolMsgs []core.Content
	for _, c := range contents {
		if c.Role == "tool" {
			toolMsgs = append(toolMsgs, c)
		}
	}
	require.Len(t, toolMsgs, 1)
	frs := toolMsgs[0].GetFunctionResponses()
	require.Len(t, frs, 1)
	assert.Equal(t, "fc1", frs[0].ID)
	assert.Equal(t, "12:00", frs[0].Content)
	assert.False(t, frs[0].IsError)
}

func TestAgent_SequentialBatchDispatch(t *testing.T) {
	mock := model.NewMockModel("mock", "test")
	mock.EnqueueToolCalls("",
		core.FunctionCall{ID: "fc1", Name: "first", Arguments: "{}"},
		core.FunctionCall{ID: "fc2", Name: "second", Arguments: "{}"},
	)
	mock.EnqueueFinal("done")

	var order []string
	record := func(name string) tool.Tool {
		return tool.NewFunctionTool(name, "ordered test tool",
			map[string]any{"type": "object", "properties": map[string]any{}},
			func(_ *core.ToolContext, _ map[string]any) (string, error) {
				order = append(order, name)
				return name, nil
			})
	}

	a := New(mock, managerWith(record("first"), record("second")))
	_, err := a.Run(context.Background(), "run both")

	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestAgent_UnknownToolSynthesizesError(t *testing.T) {
	mock := model.NewMockModel("mock", "test")
	mock.EnqueueToolCalls("", core.FunctionCall{ID: "fc1", Name: "foo", Arguments: "{}"})
	mock.EnqueueFinal("sorry, no such tool")

	rec := &eventRecorder{}
	a := New(mock, managerWith())
	resp, err := a.Run(context.Background(), "use foo", WithCallback(rec.callback))

	require.NoError(t, err)
	assert.Equal(t, "sorry, no such tool", resp.Text)
	// Unknown tools are not recorded as tool uses
	assert.Empty(t, resp.ToolUses)

	var result core.ToolResultPayload
	for _, e := range rec.events {
		if e.Type == core.EventToolResult {
			result = e.Payload.(core.ToolResultPayload)
		}
	}
	assert.Equal(t, "Error: Tool foo not found", result.Result)
	assert.True(t, result.IsError)
}

func TestAgent_FailingToolFeedsErrorBack(t *testing.T) {
	mock := model.NewMockModel("mock", "test")
	mock.EnqueueToolCalls("", core.FunctionCall{ID: "fc1", Name: "flaky", Arguments: "{}"})
	mock.EnqueueFinal("recovered")

	a := New(mock, managerWith(failingTool("flaky", errors.New("disk on fire"))))
	resp, err := a.Run(context.Background(), "try it")

	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Text)
	require.Len(t, resp.ToolUses, 1)
	assert.Contains(t, resp.ToolUses[0].Output, "Error:")
	assert.Contains(t, resp.ToolUses[0].Output, "disk on fire")
}

func TestAgent_ToolPanicIsIsolated(t *testing.T) {
	mock := model.NewMockModel("mock", "test")
	mock.EnqueueToolCalls("", core.FunctionCall{ID: "fc1", Name: "bomb", Arguments: "{}"})
	mock.EnqueueFinal("survived")

	a := New(mock, managerWith(panickingTool("bomb")))
	resp, err := a.Run(context.Background(), "detonate")

	require.NoError(t, err)
	assert.Equal(t, "survived", resp.Text)
	require.Len(t, resp.ToolUses, 1)
	assert.Contains(t, resp.ToolUses[0].Output, "panicked")
}

func TestAgent_MalformedArguments(t *testing.T) {
	mock := model.NewMockModel("mock", "test")
	mock.EnqueueToolCalls("", core.FunctionCall{ID: "fc1", Name: "clock", Arguments: "{not json"})
	mock.EnqueueFinal("ok")

	a := New(mock, managerWith(staticTool("clock", "12:00")))
	resp, err := a.Run(context.Background(), "what time?")

	require.NoError(t, err)
	require.Len(t, resp.ToolUses, 1)
	assert.Contains(t, resp.ToolUses[0].Output, "Error:")
}

func TestAgent_MaxIterations(t *testing.T) {
	mock := model.NewMockModel("mock", "test")
	mock.EnqueueToolCalls("", core.FunctionCall{ID: "fc1", Name: "clock", Arguments: "{}"})
	mock.EnqueueToolCalls("", core.FunctionCall{ID: "fc2", Name: "clock", Arguments: "{}"})
	mock.EnqueueToolCalls("", core.FunctionCall{ID: "fc3", Name: "clock", Arguments: "{}"})

	a := New(mock, managerWith(staticTool("clock", "12:00")), func(o *Options) {
		o.MaxIterations = 2
	})
	resp, err := a.Run(context.Background(), "loop forever")

	require.NoError(t, err)
	assert.Equal(t, maxIterationsText, resp.Text)
	assert.Equal(t, 2, mock.Calls())
	assert.Len(t, resp.ToolUses, 2)
}

func TestAgent_ModelErrorShapesResponse(t *testing.T) {
	rec := &eventRecorder{}
	a := New(&erroringModel{err: errors.New("quota exceeded")}, managerWith())

	resp, err := a.Run(context.Background(), "hello", WithCallback(rec.callback))

	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Error:")
	assert.Contains(t, resp.Error, "quota exceeded")
	assert.Equal(t, []core.EventType{core.EventResponse}, rec.types())
}

// -------------------- Event Stream Tests --------------------

func TestAgent_EventOrder(t *testing.T) {
	mock := model.NewMockModel("mock", "test")
	mock.EnqueueToolCalls("let me check", core.FunctionCall{ID: "fc1", Name: "clock", Arguments: "{}"})
	mock.EnqueueFinal("noon")

	rec := &eventRecorder{}
	a := New(mock, managerWith(staticTool("clock", "12:00")))
	_, err := a.Run(context.Background(), "time?", WithCallback(rec.callback))

	require.NoError(t, err)
	assert.Equal(t, []core.EventType{
		core.EventThought,
		core.EventToolCall,
		core.EventToolResult,
		core.EventResponse,
	}, rec.types())

	call := rec.events[1].Payload.(core.ToolCallPayload)
	assert.Equal(t, "clock", call.ToolName)
	result := rec.events[2].Payload.(core.ToolResultPayload)
	assert.Equal(t, "12:00", result.Result)
}

func TestAgent_CallbackPanicDoesNotStopLoop(t *testing.T) {
	mock := model.NewMockModel("mock", "test")
	mock.EnqueueToolCalls("", core.FunctionCall{ID: "fc1", Name: "clock", Arguments: "{}"})
	mock.EnqueueFinal("noon")

	a := New(mock, managerWith(staticTool("clock", "12:00")))
	resp, err := a.Run(context.Background(), "time?", WithCallback(func(core.EventType, any) {
		panic("subscriber bug")
	}))

	require.NoError(t, err)
	assert.Equal(t, "noon", resp.Text)
}

func TestAgent_NoCallbackIsFine(t *testing.T) {
	mock := model.NewMockModel("mock", "test")
	mock.EnqueueFinal("quiet")

	a := New(mock, managerWith())
	resp, err := a.Run(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, "quiet", resp.Text)
}

// -------------------- Session Tests --------------------

func TestAgent_WithImage(t *testing.T) {
	mock := model.NewMockModel("mock", "test")
	mock.EnqueueFinal("a cat")

	a := New(mock, managerWith())
	_, err := a.Run(context.Background(), "what is this?", WithImage("data:image/png;base64,AAA="))

	require.NoError(t, err)
	contents := a.History().Contents()
	require.GreaterOrEqual(t, len(contents), 2)
	assert.Len(t, contents[1].Parts, 2)
}

func TestAgent_ResetKeepsSystemPrompt(t *testing.T) {
	mock := model.NewMockModel("mock", "test")
	mock.EnqueueFinal("hi")

	a := New(mock, managerWith(), func(o *Options) { o.SystemPrompt = "be terse" })
	_, err := a.Run(context.Background(), "hello")
	require.NoError(t, err)

	a.Reset()

	assert.Equal(t, 1, a.History().Len())
	assert.Equal(t, "be terse", a.History().SystemPrompt())
}

func TestAgent_SetSystemPrompt(t *testing.T) {
	mock := model.NewMockModel("mock", "test")
	a := New(mock, managerWith())

	a.SetSystemPrompt("new rules")

	assert.Equal(t, "new rules", a.History().SystemPrompt())
}

func TestParseArgs(t *testing.T) {
	args, err := parseArgs("")
	assert.NoError(t, err)
	assert.NotNil(t, args)

	args, err = parseArgs(`{"a": 1}`)
	assert.NoError(t, err)
	assert.Equal(t, 1.0, args["a"])

	args, err = parseArgs("null")
	assert.NoError(t, err)
	assert.NotNil(t, args)

	_, err = parseArgs("{broken")
	assert.Error(t, err)
}
