package builtin

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/hojin-sohn/echo/core"
	"github.com/hojin-sohn/echo/tool"
)

type openApplicationArgs struct {
	AppName string `json:"app_name" description:"Name of the application to open"`
}

// NewOpenApplicationTool returns a tool that launches a desktop application
// by name using the platform launcher (open on macOS, xdg-open on Linux,
// cmd start on Windows). The launcher itself decides how to resolve the
// name; unknown platforms are reported as unsupported.
func NewOpenApplicationTool() *tool.FunctionTool {
	return tool.NewFunctionToolFromStruct(
		"open_application",
		"Opens a specified application on the system.",
		openApplicationArgs{},
		func(toolCtx *core.ToolContext, args map[string]any) (string, error) {
			appName, _ := args["app_name"].(string)
			return openApplication(toolCtx, appName)
		},
		tool.WithBlocking(),
	)
}

func openApplication(toolCtx *core.ToolContext, appName string) (string, error) {
	if strings.TrimSpace(appName) == "" {
		return "", fmt.Errorf("app_name cannot be empty")
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(toolCtx.Context(), "open", "-a", appName)
	case "linux":
		cmd = exec.CommandContext(toolCtx.Context(), "xdg-open", appName)
	case "windows":
		cmd = exec.CommandContext(toolCtx.Context(), "cmd", "/C", "start", "", appName)
	default:
		return fmt.Sprintf("Unsupported operating system: %s", runtime.GOOS), nil
	}

	if out, err := cmd.CombinedOutput(); err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("failed to open %s: %s", appName, msg)
	}
	return fmt.Sprintf("Opened %s", appName), nil
}
