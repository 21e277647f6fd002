package builtin

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hojin-sohn/echo/core"
	"github.com/hojin-sohn/echo/tool"
)

// readFileLimit caps how much of a file is returned to the model.
const readFileLimit = 64 * 1024

// listDirectoryMaxDepth bounds directory tree rendering.
const listDirectoryMaxDepth = 3

type readFileArgs struct {
	Path string `json:"path" description:"Path of the file to read"`
}

type listDirectoryArgs struct {
	Path string `json:"path" description:"Path of the directory to list"`
}

// NewPwdTool returns a tool reporting the process working directory.
func NewPwdTool() *tool.FunctionTool {
	return tool.NewFunctionTool(
		"pwd",
		"Returns the current working directory.",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		func(_ *core.ToolContext, _ map[string]any) (string, error) {
			wd, err := os.Getwd()
			if err != nil {
				return "", fmt.Errorf("get working directory: %w", err)
			}
			return wd, nil
		},
	)
}

// NewReadFileTool returns a tool that reads a text file's content. Binary
// files and files above the size cap are rejected with a readable message
// the model can act on.
func NewReadFileTool() *tool.FunctionTool {
	return tool.NewFunctionToolFromStruct(
		"read_file",
		"Reads the content of a file based on its type.",
		readFileArgs{},
		func(_ *core.ToolContext, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			return readFile(path)
		},
		tool.WithBlocking(),
	)
}

// NewListDirectoryTool returns a tool rendering a bounded directory tree.
func NewListDirectoryTool() *tool.FunctionTool {
	return tool.NewFunctionToolFromStruct(
		"list_directory",
		"Lists the directory tree of a given path.",
		listDirectoryArgs{},
		func(_ *core.ToolContext, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			return listDirectory(path)
		},
		tool.WithBlocking(),
	)
}

func readFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory, not a file", path)
	}

	f, err := os.Open(path) // #nosec G304 -- path is user supplied by design
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, readFileLimit+1))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	truncated := false
	if len(data) > readFileLimit {
		data = data[:readFileLimit]
		truncated = true
	}
	if !utf8.Valid(data) {
		return fmt.Sprintf("Unsupported file type or error reading file: %s", path), nil
	}

	content := string(data)
	if truncated {
		content += "\n... [truncated]"
	}
	return content, nil
}

func listDirectory(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", path)
	}

	var b strings.Builder
	b.WriteString(filepath.Clean(path) + "\n")
	if err := writeTree(&b, path, "", 1); err != nil {
		return "", err
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// writeTree renders one directory level with box-drawing connectors,
// recursing up to listDirectoryMaxDepth.
func writeTree(b *strings.Builder, dir, prefix string, depth int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for i, entry := range entries {
		connector := "├── "
		childPrefix := prefix + "│   "
		if i == len(entries)-1 {
			connector = "└── "
			childPrefix = prefix + "    "
		}
		b.WriteString(prefix + connector + entry.Name() + "\n")

		if entry.IsDir() {
			if depth >= listDirectoryMaxDepth {
				b.WriteString(childPrefix + "...\n")
				continue
			}
			if err := writeTree(b, filepath.Join(dir, entry.Name()), childPrefix, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}
