// Package echo provides a high-level façade over the agentic loop, the tool
// catalog and the provider lifecycle manager. Most applications interact with
// this package by:
//  1. Creating an Echo via New() with a model and optional built-in tools
//  2. Reconfiguring external tool providers at any time via Reconcile
//  3. Running conversation turns via Run, optionally with a stream callback
//
// The façade delegates the loop to agent.Agent and provider lifecycle to
// provider.Manager while keeping setup and usage ergonomics concise. All
// defaults are safe for local development; production deployments typically
// supply a structured logger and tuned timeouts.
package echo

import (
	"context"
	"time"

	"github.com/hojin-sohn/echo/agent"
	"github.com/hojin-sohn/echo/logging"
	"github.com/hojin-sohn/echo/model"
	"github.com/hojin-sohn/echo/provider"
	"github.com/hojin-sohn/echo/tool"
)

// Options configures the Echo instance.
type Options struct {
	// SystemPrompt seeds the conversation. Defaults to agent.DefaultSystemPrompt.
	SystemPrompt string

	// MaxIterations bounds model invocations per turn. Defaults to
	// agent.DefaultMaxIterations.
	MaxIterations int

	// Builtins are the fixed tools available regardless of providers.
	Builtins []tool.Tool

	// ProviderInitTimeout bounds one provider startup attempt. Defaults to
	// provider.DefaultInitTimeout.
	ProviderInitTimeout time.Duration

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Echo is the high-level façade aggregating the loop and provider manager.
type Echo struct {
	agent     *agent.Agent
	providers *provider.Manager
}

// New creates a new Echo instance around the given model with optional
// overrides.
func New(llm model.Model, optFns ...func(o *Options)) *Echo {
	opts := Options{
		SystemPrompt:        agent.DefaultSystemPrompt,
		MaxIterations:       agent.DefaultMaxIterations,
		ProviderInitTimeout: provider.DefaultInitTimeout,
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	providers := provider.NewManager(func(o *provider.ManagerOptions) {
		o.Builtins = opts.Builtins
		o.InitTimeout = opts.ProviderInitTimeout
		o.Logger = opts.Logger
	})

	a := agent.New(llm, providers, func(o *agent.Options) {
		o.SystemPrompt = opts.SystemPrompt
		o.MaxIterations = opts.MaxIterations
		o.Logger = opts.Logger
	})

	return &Echo{agent: a, providers: providers}
}

// Run processes one user turn and returns a well-formed response.
func (e *Echo) Run(ctx context.Context, query string, optFns ...func(o *agent.RunOptions)) (*agent.Response, error) {
	return e.agent.Run(ctx, query, optFns...)
}

// Reconcile moves the live provider set toward the requested one and reports
// a per-name outcome. See provider.Manager.Reconcile.
func (e *Echo) Reconcile(ctx context.Context, requested map[string]provider.Config) map[string]provider.Status {
	return e.providers.Reconcile(ctx, requested)
}

// ReconcileJSON decodes an mcpServers configuration document and reconciles
// against it.
func (e *Echo) ReconcileJSON(ctx context.Context, data []byte) (map[string]provider.Status, error) {
	requested, err := provider.ParseConfig(data)
	if err != nil {
		return nil, err
	}
	return e.providers.Reconcile(ctx, requested), nil
}

// Tools returns the names in the current catalog snapshot, merge order.
func (e *Echo) Tools() []string {
	return e.providers.Catalog().Names()
}

// Reset clears the conversation back to the system message. Providers are
// unaffected.
func (e *Echo) Reset() {
	e.agent.Reset()
}

// SetSystemPrompt replaces the system message for subsequent turns.
func (e *Echo) SetSystemPrompt(text string) {
	e.agent.SetSystemPrompt(text)
}

// Shutdown releases every provider connection. The instance remains usable
// with built-in tools only.
func (e *Echo) Shutdown() {
	e.providers.ShutdownAll()
}
