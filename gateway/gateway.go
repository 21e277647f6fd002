// Package gateway wraps the model boundary: it attaches the tool signatures
// of a catalog snapshot to the outbound request and classifies the reply as
// either a final answer or a batch of tool calls. It performs no retries;
// retry and per-call timeout policy belong to the model implementation.
package gateway

import (
	"context"
	"fmt"

	"github.com/hojin-sohn/echo/core"
	"github.com/hojin-sohn/echo/logging"
	"github.com/hojin-sohn/echo/model"
	"github.com/hojin-sohn/echo/tool"
)

// ReplyKind discriminates the two shapes a model reply can take.
type ReplyKind int

const (
	// ReplyFinal is a terminal text answer.
	ReplyFinal ReplyKind = iota
	// ReplyToolCalls requests tool executions before the model can answer.
	ReplyToolCalls
)

// Reply is the classified outcome of one model invocation.
type Reply struct {
	Kind ReplyKind
	// Text holds the final answer for ReplyFinal, or accompanying thought
	// text for ReplyToolCalls (may be empty).
	Text string
	// Calls are the requested tool invocations, in model emission order.
	Calls []core.FunctionCall
	// Content is the raw assistant message, ready to append to history.
	Content core.Content
}

// Options configures a Gateway.
type Options struct {
	Logger logging.Logger
}

// Gateway adapts a model.Model into the single call the loop depends on.
type Gateway struct {
	llm    model.Model
	logger logging.Logger
}

// New constructs a Gateway around the given model.
func New(llm model.Model, optFns ...func(o *Options)) *Gateway {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Gateway{llm: llm, logger: opts.Logger}
}

// Info exposes the underlying model metadata.
func (g *Gateway) Info() model.Info { return g.llm.Info() }

// Invoke sends the history plus the catalog's tool definitions to the model
// and classifies the reply. Partial (streaming) chunks are drained; only the
// final chunk determines the outcome.
func (g *Gateway) Invoke(ctx context.Context, history []core.Content, catalog *tool.Catalog) (*Reply, error) {
	req := model.Request{Contents: history}
	if catalog != nil && catalog.Len() > 0 {
		req.Tools = catalog.Definitions()
	}

	g.logger.Debug("gateway.invoke", "model", g.llm.Info().Name, "messages", len(history), "tools", len(req.Tools))

	respCh, errCh := g.llm.Generate(ctx, req)

	var final *model.Response
	for resp := range respCh {
		if resp.Partial {
			continue
		}
		r := resp
		final = &r
	}
	if err := <-errCh; err != nil {
		return nil, fmt.Errorf("model invocation failed: %w", err)
	}
	if final == nil {
		return nil, fmt.Errorf("model produced no final response")
	}

	calls := final.Content.GetFunctionCalls()
	reply := &Reply{
		Text:    final.Content.Text(),
		Calls:   calls,
		Content: final.Content,
	}
	if len(calls) > 0 {
		reply.Kind = ReplyToolCalls
	} else {
		reply.Kind = ReplyFinal
	}
	return reply, nil
}
