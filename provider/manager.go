package provider

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hojin-sohn/echo/logging"
	"github.com/hojin-sohn/echo/tool"
)

// DefaultInitTimeout bounds provider initialization (launch, handshake,
// tool discovery). A provider that cannot come up in this window is torn
// down and reported as an error.
const DefaultInitTimeout = 10 * time.Second

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// Builtins are the fixed tools every catalog starts from.
	Builtins []tool.Tool
	// InitTimeout bounds a single provider startup attempt.
	InitTimeout time.Duration
	// Logger receives lifecycle diagnostics.
	Logger logging.Logger
}

// Manager owns every live provider connection. It diffs requested
// configurations against the live set by name, drives starts and stops with
// per-name isolation, and publishes immutable catalog snapshots.
//
// Reconciliation cycles are serialized by an internal mutex; catalog reads
// are lock-free (atomic snapshot-and-swap) so an in-flight conversation
// never observes a half-updated tool set.
type Manager struct {
	mu    sync.Mutex
	live  map[string]*Connection
	order []string // registration order, drives catalog merge order

	builtins    []tool.Tool
	catalog     atomic.Pointer[tool.Catalog]
	dial        dialFunc
	initTimeout time.Duration
	logger      logging.Logger
}

// NewManager constructs a Manager with the given built-in tools. The initial
// catalog contains built-ins only.
func NewManager(optFns ...func(o *ManagerOptions)) *Manager {
	opts := ManagerOptions{
		InitTimeout: DefaultInitTimeout,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	m := &Manager{
		live:        map[string]*Connection{},
		builtins:    opts.Builtins,
		dial:        dialStdio,
		initTimeout: opts.InitTimeout,
		logger:      opts.Logger,
	}
	m.catalog.Store(m.rebuildLocked())
	return m
}

// Catalog returns the current immutable tool catalog snapshot. The snapshot
// stays valid for the caller even if a reconciliation swaps in a newer one;
// the next loop iteration picks up the replacement.
func (m *Manager) Catalog() *tool.Catalog {
	return m.catalog.Load()
}

// Statuses reports every live provider as connected.
func (m *Manager) Statuses() map[string]Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Status, len(m.live))
	for name := range m.live {
		out[name] = Status{State: StateConnected}
	}
	return out
}

// Reconcile moves the live provider set toward the requested one and reports
// a per-name outcome. The diff is computed by name equality only: a provider
// whose name is already live is never restarted, even if its command or
// arguments changed.
//
// Failures are isolated per name. A provider that cannot stop cleanly is
// logged and skipped; a provider that cannot start is torn down completely
// (no orphaned process, no dangling handle) and reported with its reason.
// Invalid entries are rejected individually before any process is spawned;
// an invalid entry that names a live provider leaves that provider running.
//
// Calling Reconcile twice with the same requested set performs no process
// churn the second time, and the catalog is rebuilt only when the live set
// actually changed.
func (m *Manager) Reconcile(ctx context.Context, requested map[string]Config) map[string]Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	results := make(map[string]Status, len(requested))
	valid := make(map[string]Config, len(requested))
	for name, cfg := range requested {
		if err := cfg.Validate(); err != nil {
			cfgErr := &ConfigError{Name: name, Reason: err.Error()}
			m.logger.Warn("provider.config.rejected", "provider", name, "error", err.Error())
			results[name] = Status{State: StateError, Error: cfgErr.Error()}
			continue
		}
		valid[name] = cfg
	}

	var toRemove, toAdd []string
	for name := range m.live {
		if _, ok := requested[name]; !ok {
			toRemove = append(toRemove, name)
		}
	}
	for name := range valid {
		if _, ok := m.live[name]; !ok {
			toAdd = append(toAdd, name)
		}
	}
	slices.Sort(toRemove)
	slices.Sort(toAdd)

	for _, name := range toRemove {
		m.logger.Info("provider.stop", "provider", name)
		m.removeLocked(name)
	}

	for _, name := range toAdd {
		m.logger.Info("provider.start", "provider", name)
		conn, err := m.startLocked(ctx, name, valid[name])
		if err != nil {
			m.logger.Error("provider.start.failed", "provider", name, "error", err.Error())
			results[name] = Status{State: StateError, Error: err.Error()}
			continue
		}
		m.live[name] = conn
		m.order = append(m.order, name)
		results[name] = Status{State: StateConnected}
	}

	changed := false
	for _, name := range toAdd {
		if _, ok := m.live[name]; ok {
			changed = true
		}
	}
	changed = changed || len(toRemove) > 0

	// Already-live providers whose names are still requested.
	for name := range valid {
		if _, reported := results[name]; !reported {
			results[name] = Status{State: StateConnected}
		}
	}

	if changed {
		m.catalog.Store(m.rebuildLocked())
	} else {
		m.logger.Debug("provider.reconcile.unchanged")
	}

	return results
}

// ShutdownAll releases every live connection unconditionally and reverts the
// catalog to built-ins only. Used at process exit or explicit reset.
func (m *Manager) ShutdownAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, name := range m.order {
		if conn, ok := m.live[name]; ok {
			conn.stack.Close(m.logger)
		}
	}
	m.live = map[string]*Connection{}
	m.order = nil
	m.catalog.Store(m.rebuildLocked())
	m.logger.Info("provider.shutdown.all")
}

// startLocked runs one bounded startup attempt. On any failure the partial
// resource stack is fully released before returning.
func (m *Manager) startLocked(ctx context.Context, name string, cfg Config) (*Connection, error) {
	initCtx, cancel := context.WithTimeout(ctx, m.initTimeout)
	defer cancel()

	tools, stack, err := m.dial(initCtx, name, cfg, m.logger)
	if err != nil {
		if stack != nil {
			stack.Close(m.logger)
		}
		return nil, err
	}

	return &Connection{
		name:  name,
		tools: tools,
		stack: stack,
		state: StateConnected,
	}, nil
}

// removeLocked releases one connection and forgets it. A failing release is
// logged inside the stack and never blocks reconciliation of the others.
func (m *Manager) removeLocked(name string) {
	conn, ok := m.live[name]
	if !ok {
		return
	}
	delete(m.live, name)
	if i := slices.Index(m.order, name); i >= 0 {
		m.order = slices.Delete(m.order, i, i+1)
	}
	conn.stack.Close(m.logger)
	conn.state = StateError
}

// rebuildLocked merges built-ins with provider contributions in registration
// order. Later contributions win name collisions, so a provider tool can
// shadow a built-in or an earlier provider's tool of the same name.
func (m *Manager) rebuildLocked() *tool.Catalog {
	contributions := make([][]tool.Tool, 0, len(m.order))
	for _, name := range m.order {
		if conn, ok := m.live[name]; ok {
			contributions = append(contributions, conn.tools)
		}
	}
	return tool.BuildCatalog(m.builtins, contributions...)
}
