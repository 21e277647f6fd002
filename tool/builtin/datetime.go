package builtin

import (
	"time"

	"github.com/hojin-sohn/echo/core"
	"github.com/hojin-sohn/echo/tool"
)

// NewCurrentDateTimeTool returns a tool reporting the current local date and
// time, formatted as "2006-01-02 15:04:05".
func NewCurrentDateTimeTool() *tool.FunctionTool {
	return tool.NewFunctionTool(
		"get_current_date_time",
		"Returns the current local date and time.",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		func(_ *core.ToolContext, _ map[string]any) (string, error) {
			return time.Now().Format("2006-01-02 15:04:05"), nil
		},
	)
}
