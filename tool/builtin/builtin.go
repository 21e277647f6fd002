// Package builtin provides the fixed tool set available to the agent
// regardless of which external providers are connected: clock, web search
// and a small local filesystem surface. Every tool here is a FunctionTool,
// so argument validation and error shaping come for free.
package builtin

import "github.com/hojin-sohn/echo/tool"

// All returns the default built-in tool set in registration order.
func All() []tool.Tool {
	return []tool.Tool{
		NewCurrentDateTimeTool(),
		NewWebSearchTool(),
		NewPwdTool(),
		NewReadFileTool(),
		NewListDirectoryTool(),
		NewOpenApplicationTool(),
	}
}
