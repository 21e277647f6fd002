package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hojin-sohn/echo/core"
	"github.com/hojin-sohn/echo/logging"
	"github.com/hojin-sohn/echo/tool"
)

// fakeDialer scripts provider startup outcomes and records resource release
// per provider name.
type fakeDialer struct {
	mu       sync.Mutex
	starts   map[string]int
	released map[string]bool
	tools    map[string][]string // provider name -> contributed tool names
	failures map[string]error
	hang     map[string]bool
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		starts:   map[string]int{},
		released: map[string]bool{},
		tools:    map[string][]string{},
		failures: map[string]error{},
		hang:     map[string]bool{},
	}
}

func (d *fakeDialer) dial(ctx context.Context, name string, _ Config, _ logging.Logger) ([]tool.Tool, *resourceStack, error) {
	d.mu.Lock()
	d.starts[name]++
	d.released[name] = false
	hang := d.hang[name]
	failure := d.failures[name]
	toolNames := d.tools[name]
	d.mu.Unlock()

	stack := newResourceStack()
	stack.Push("process", func() error {
		d.mu.Lock()
		d.released[name] = true
		d.mu.Unlock()
		return nil
	})

	if hang {
		<-ctx.Done()
		return nil, stack, fmt.Errorf("connect %s: %w", name, ctx.Err())
	}
	if failure != nil {
		return nil, stack, failure
	}

	tools := make([]tool.Tool, 0, len(toolNames))
	for _, tn := range toolNames {
		tn := tn
		tools = append(tools, tool.NewFunctionTool(tn, "fake provider tool",
			map[string]any{"type": "object", "properties": map[string]any{}},
			func(_ *core.ToolContext, _ map[string]any) (string, error) { return tn, nil }))
	}
	return tools, stack, nil
}

func (d *fakeDialer) startCount(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.starts[name]
}

func (d *fakeDialer) isReleased(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released[name]
}

func newTestManager(d *fakeDialer, builtins ...tool.Tool) *Manager {
	m := NewManager(func(o *ManagerOptions) {
		o.Builtins = builtins
		o.InitTimeout = 50 * time.Millisecond
	})
	m.dial = d.dial
	return m
}

func builtinTool(name string) tool.Tool {
	return tool.NewFunctionTool(name, "builtin",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ *core.ToolContext, _ map[string]any) (string, error) { return name, nil })
}

// -------------------- Reconcile Tests --------------------

func TestManager_InitialCatalogBuiltinsOnly(t *testing.T) {
	m := newTestManager(newFakeDialer(), builtinTool("pwd"))

	catalog := m.Catalog()
	assert.Equal(t, []string{"pwd"}, catalog.Names())
}

func TestManager_ReconcileStartsRequestedProviders(t *testing.T) {
	d := newFakeDialer()
	d.tools["fs"] = []string{"fs_read", "fs_write"}
	m := newTestManager(d, builtinTool("pwd"))

	results := m.Reconcile(context.Background(), map[string]Config{
		"fs": {Command: "npx", Args: []string{"server-fs"}},
	})

	require.Contains(t, results, "fs")
	assert.Equal(t, StateConnected, results["fs"].State)
	assert.Equal(t, []string{"pwd", "fs_read", "fs_write"}, m.Catalog().Names())
}

func TestManager_ReconcileIsIdempotent(t *testing.T) {
	d := newFakeDialer()
	d.tools["fs"] = []string{"fs_read"}
	m := newTestManager(d)

	requested := map[string]Config{"fs": {Command: "npx"}}
	m.Reconcile(context.Background(), requested)
	before := m.Catalog()

	results := m.Reconcile(context.Background(), requested)

	// No process churn, no catalog swap
	assert.Equal(t, 1, d.startCount("fs"))
	assert.Equal(t, StateConnected, results["fs"].State)
	assert.Same(t, before, m.Catalog())
}

func TestManager_ReconcileNoRestartOnConfigChange(t *testing.T) {
	d := newFakeDialer()
	m := newTestManager(d)

	m.Reconcile(context.Background(), map[string]Config{"fs": {Command: "npx", Args: []string{"v1"}}})
	m.Reconcile(context.Background(), map[string]Config{"fs": {Command: "npx", Args: []string{"v2"}}})

	// Diff is by name equality only
	assert.Equal(t, 1, d.startCount("fs"))
}

func TestManager_ReconcileRemovesAndReleases(t *testing.T) {
	d := newFakeDialer()
	d.tools["fs"] = []string{"fs_read"}
	m := newTestManager(d, builtinTool("pwd"))

	m.Reconcile(context.Background(), map[string]Config{"fs": {Command: "npx"}})
	assert.Contains(t, m.Catalog().Names(), "fs_read")

	results := m.Reconcile(context.Background(), map[string]Config{})

	assert.Empty(t, results)
	assert.True(t, d.isReleased("fs"))
	assert.Equal(t, []string{"pwd"}, m.Catalog().Names())
}

func TestManager_FailedStartReleasesEverything(t *testing.T) {
	d := newFakeDialer()
	d.failures["broken"] = errors.New("handshake refused")
	m := newTestManager(d)

	results := m.Reconcile(context.Background(), map[string]Config{"broken": {Command: "npx"}})

	assert.Equal(t, StateError, results["broken"].State)
	assert.Contains(t, results["broken"].Error, "handshake refused")
	assert.True(t, d.isReleased("broken"))
	assert.Empty(t, m.Statuses())
}

func TestManager_InitTimeout(t *testing.T) {
	d := newFakeDialer()
	d.hang["slow"] = true
	m := newTestManager(d)

	start := time.Now()
	results := m.Reconcile(context.Background(), map[string]Config{"slow": {Command: "npx"}})

	assert.Equal(t, StateError, results["slow"].State)
	assert.True(t, d.isReleased("slow"))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestManager_PerNameFailureIsolation(t *testing.T) {
	d := newFakeDialer()
	d.tools["good"] = []string{"good_tool"}
	d.failures["bad"] = errors.New("boom")
	m := newTestManager(d)

	results := m.Reconcile(context.Background(), map[string]Config{
		"good": {Command: "npx"},
		"bad":  {Command: "npx"},
	})

	assert.Equal(t, StateConnected, results["good"].State)
	assert.Equal(t, StateError, results["bad"].State)
	assert.Contains(t, m.Catalog().Names(), "good_tool")
}

func TestManager_InvalidEntryRejectedIndividually(t *testing.T) {
	d := newFakeDialer()
	d.tools["good"] = []string{"good_tool"}
	m := newTestManager(d)

	results := m.Reconcile(context.Background(), map[string]Config{
		"good": {Command: "npx"},
		"bad":  {Command: ""},
	})

	assert.Equal(t, StateConnected, results["good"].State)
	assert.Equal(t, StateError, results["bad"].State)
	assert.Equal(t, 0, d.startCount("bad"))
}

func TestManager_InvalidEntryKeepsLiveProviderRunning(t *testing.T) {
	d := newFakeDialer()
	d.tools["fs"] = []string{"fs_read"}
	m := newTestManager(d)

	m.Reconcile(context.Background(), map[string]Config{"fs": {Command: "npx"}})

	// Same name, now invalid: entry is rejected but the live provider stays
	results := m.Reconcile(context.Background(), map[string]Config{"fs": {Command: "./evil"}})

	assert.Equal(t, StateError, results["fs"].State)
	assert.False(t, d.isReleased("fs"))
	assert.Contains(t, m.Catalog().Names(), "fs_read")
}

func TestManager_ProviderToolShadowsBuiltin(t *testing.T) {
	d := newFakeDialer()
	d.tools["fs"] = []string{"pwd"}
	m := newTestManager(d, builtinTool("pwd"))

	m.Reconcile(context.Background(), map[string]Config{"fs": {Command: "npx"}})

	catalog := m.Catalog()
	assert.Equal(t, 1, catalog.Len())
	shadowed, ok := catalog.Resolve("pwd")
	require.True(t, ok)
	assert.Equal(t, "fake provider tool", shadowed.Description())
}

func TestManager_CatalogSnapshotSurvivesSwap(t *testing.T) {
	d := newFakeDialer()
	d.tools["fs"] = []string{"fs_read"}
	m := newTestManager(d)

	m.Reconcile(context.Background(), map[string]Config{"fs": {Command: "npx"}})
	snapshot := m.Catalog()

	m.Reconcile(context.Background(), map[string]Config{})

	// The old snapshot still resolves the removed provider's tool
	_, ok := snapshot.Resolve("fs_read")
	assert.True(t, ok)
	_, ok = m.Catalog().Resolve("fs_read")
	assert.False(t, ok)
}

func TestManager_ShutdownAll(t *testing.T) {
	d := newFakeDialer()
	d.tools["a"] = []string{"a_tool"}
	d.tools["b"] = []string{"b_tool"}
	m := newTestManager(d, builtinTool("pwd"))

	m.Reconcile(context.Background(), map[string]Config{
		"a": {Command: "npx"},
		"b": {Command: "npx"},
	})

	m.ShutdownAll()

	assert.True(t, d.isReleased("a"))
	assert.True(t, d.isReleased("b"))
	assert.Empty(t, m.Statuses())
	assert.Equal(t, []string{"pwd"}, m.Catalog().Names())
}

// -------------------- Resource Stack Tests --------------------

func TestResourceStack_LIFOAndIdempotent(t *testing.T) {
	var order []string
	s := newResourceStack()
	s.Push("first", func() error { order = append(order, "first"); return nil })
	s.Push("second", func() error { order = append(order, "second"); return nil })

	s.Close(nil)
	s.Close(nil)

	assert.Equal(t, []string{"second", "first"}, order)
}

func TestResourceStack_FailingReleaseDoesNotBlockOthers(t *testing.T) {
	var released bool
	s := newResourceStack()
	s.Push("inner", func() error { released = true; return nil })
	s.Push("outer", func() error { return errors.New("close failed") })

	s.Close(logging.NoOpLogger{})

	assert.True(t, released)
}
