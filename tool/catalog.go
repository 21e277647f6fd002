package tool

import (
	"strings"

	"github.com/hojin-sohn/echo/model"
)

// Catalog is an immutable point-in-time mapping from lowercased tool name to
// handle, merged from the built-in set and the contributions of attached
// providers. A catalog is valid for the lifetime of one model invocation;
// callers that need a live view must build a new one.
//
// Merge semantics are deterministic: built-ins first, then each contribution
// slice in order. On a name collision the later registration overwrites the
// earlier one, so a provider tool can shadow a built-in of the same name.
type Catalog struct {
	order   []string        // merged registration order, lowercased, no duplicates
	handles map[string]Tool // lowercased name -> winning handle
}

// BuildCatalog merges built-ins and provider contributions into a catalog.
// Later contributions win name collisions.
func BuildCatalog(builtins []Tool, contributions ...[]Tool) *Catalog {
	c := &Catalog{handles: map[string]Tool{}}
	c.add(builtins)
	for _, tools := range contributions {
		c.add(tools)
	}
	return c
}

func (c *Catalog) add(tools []Tool) {
	for _, t := range tools {
		name := strings.ToLower(t.Name())
		if _, exists := c.handles[name]; !exists {
			c.order = append(c.order, name)
		}
		c.handles[name] = t
	}
}

// Resolve looks a tool up by name, case-insensitively.
func (c *Catalog) Resolve(name string) (Tool, bool) {
	t, ok := c.handles[strings.ToLower(name)]
	return t, ok
}

// Names returns the tool names in merge order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of distinct tools in the catalog.
func (c *Catalog) Len() int { return len(c.handles) }

// Definitions converts the catalog into the declarative tool list attached
// to an outbound model request, preserving merge order.
func (c *Catalog) Definitions() []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(c.order))
	for _, name := range c.order {
		t := c.handles[name]
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// Equal reports structural equality with another catalog: the same names in
// the same order mapped to the same handles. Rebuilding with an unchanged
// provider set yields an equal catalog.
func (c *Catalog) Equal(other *Catalog) bool {
	if other == nil || len(c.order) != len(other.order) {
		return false
	}
	for i, name := range c.order {
		if other.order[i] != name {
			return false
		}
		if c.handles[name] != other.handles[name] {
			return false
		}
	}
	return true
}
