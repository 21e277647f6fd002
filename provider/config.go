package provider

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"slices"
	"strings"
)

// allowedCommands are bare launcher names accepted without further checks.
// Anything else must be an existing, resolvable executable.
var allowedCommands = []string{"npx", "node", "python", "python3", "uvx", "cargo", "bun"}

// Config describes how to launch one provider process. Name uniqueness is
// enforced by the map shape it arrives in; the zero value is invalid.
type Config struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// ConfigError rejects a single provider entry before any process is spawned.
// Other entries in the same reconfiguration batch are unaffected.
type ConfigError struct {
	Name   string // Provider entry name
	Reason string // Why the entry was rejected
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid provider config %q: %s", e.Name, e.Reason)
}

// Validate checks the launch command before any process is spawned:
//   - the command must be non-empty
//   - absolute paths must not contain traversal sequences
//   - relative paths are rejected
//   - bare names outside the allow-list must resolve to an executable
func (c Config) Validate() error {
	cmd := strings.TrimSpace(c.Command)
	if cmd == "" {
		return fmt.Errorf("command cannot be empty")
	}
	if strings.HasPrefix(cmd, "/") {
		if strings.Contains(cmd, "..") {
			return fmt.Errorf("path traversal not allowed in command")
		}
		return nil
	}
	if strings.Contains(cmd, "/") {
		return fmt.Errorf("relative command path not allowed: %s", cmd)
	}
	if slices.Contains(allowedCommands, cmd) {
		return nil
	}
	if _, err := exec.LookPath(cmd); err != nil {
		return fmt.Errorf("command %q is not allow-listed and not resolvable: %v", cmd, err)
	}
	return nil
}

// configFile is the on-the-wire reconfiguration shape.
type configFile struct {
	MCPServers map[string]Config `json:"mcpServers"`
}

// ParseConfig decodes a reconfiguration document of the form
//
//	{"mcpServers": {"<name>": {"command": ..., "args": [...], "env": {...}}}}
//
// An empty document is valid and clears all providers. Entry names must be
// non-blank; per-entry command validation happens later, during Reconcile,
// so one bad entry never rejects its siblings.
func ParseConfig(data []byte) (map[string]Config, error) {
	var f configFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid provider config: %w", err)
	}
	for name := range f.MCPServers {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid provider config: server name cannot be empty")
		}
	}
	if f.MCPServers == nil {
		return map[string]Config{}, nil
	}
	return f.MCPServers, nil
}
