package core

import (
	"fmt"
	"sync"
)

// History is the ordered message sequence for one conversation. It enforces
// the structural invariants the loop relies on:
//
//   - The first message is always the current system message.
//   - Messages are append-only between explicit resets.
//   - A tool-result message must answer a pending assistant-issued call ID,
//     and each call ID is answered at most once.
//
// History is safe for concurrent use; the loop appends from a single task
// while the system prompt may be refreshed from another.
type History struct {
	mu       sync.Mutex
	contents []Content
	pending  map[string]string // call ID -> tool name, awaiting a result
}

// NewHistory creates a history seeded with the given system message.
func NewHistory(systemPrompt string) *History {
	return &History{
		contents: []Content{NewSystemContent(systemPrompt)},
		pending:  map[string]string{},
	}
}

// SetSystemPrompt replaces the system message in place. Position zero is
// preserved so in-flight snapshots stay well-formed.
func (h *History) SetSystemPrompt(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.contents[0] = NewSystemContent(text)
}

// SystemPrompt returns the current system message text.
func (h *History) SystemPrompt() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.contents[0].Text()
}

// Append adds a message to the sequence. Assistant messages register their
// function calls as pending; tool messages must answer a pending call.
func (h *History) Append(c Content) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.Role == "system" {
		return fmt.Errorf("history: system message may only be set via SetSystemPrompt")
	}

	for _, fr := range c.GetFunctionResponses() {
		name, ok := h.pending[fr.ID]
		if !ok {
			return fmt.Errorf("history: tool result %q does not answer a pending call", fr.ID)
		}
		if name != fr.Name {
			return fmt.Errorf("history: tool result %q names %q, call was for %q", fr.ID, fr.Name, name)
		}
		delete(h.pending, fr.ID)
	}

	if c.Role == "assistant" {
		for _, fc := range c.GetFunctionCalls() {
			if _, dup := h.pending[fc.ID]; dup {
				return fmt.Errorf("history: duplicate call id %q", fc.ID)
			}
			h.pending[fc.ID] = fc.Name
		}
	}

	h.contents = append(h.contents, c)
	return nil
}

// Contents returns a snapshot copy of the sequence. The snapshot is safe to
// hand to a model adapter while the history keeps growing.
func (h *History) Contents() []Content {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Content, len(h.contents))
	copy(out, h.contents)
	return out
}

// Len returns the number of messages including the system message.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.contents)
}

// Reset clears the conversation back to just the current system message.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.contents = h.contents[:1]
	h.pending = map[string]string{}
}
