package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/dyncrew/internal/api"
	"github.com/ShayCichocki/dyncrew/pkg/models"
)

// defaultMaxReadBytes caps how much of one file is returned to the model.
const defaultMaxReadBytes = 1 << 20

// FileReadTool reads files below a root directory.
type FileReadTool struct {
	root string
	// realRoot is root with symlinks resolved.
	realRoot string
	maxBytes int64
}

// NewFileReadTool creates a file reader confined to root.
func NewFileReadTool(root string) *FileReadTool {
	if root == "" {
		root = "."
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	realRoot := root
	if r, err := filepath.EvalSymlinks(root); err == nil {
		realRoot = r
	}
	return &FileReadTool{root: root, realRoot: realRoot, maxBytes: defaultMaxReadBytes}
}

func (*FileReadTool) sealed() {}

// Name implements Tool.
func (*FileReadTool) Name() models.ToolName { return models.ToolFileRead }

// Summary implements Tool.
func (*FileReadTool) Summary() string { return "file reading" }

// Definition implements api.Tool.
func (t *FileReadTool) Definition() anthropic.ToolParam {
	return anthropic.ToolParam{
		Name:        string(t.Name()),
		Description: anthropic.String("Read a local file. Returns contents with line numbers."),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: map[string]interface{}{
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "Path of the file, relative to the working directory",
				},
				"offset": map[string]interface{}{
					"type":        "integer",
					"description": "Line number to start reading from (1-indexed, optional)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of lines to read (optional)",
				},
			},
			Required: []string{"file_path"},
		},
	}
}

// Execute implements api.Tool.
func (t *FileReadTool) Execute(ctx context.Context, input json.RawMessage) api.ToolResult {
	var params struct {
		FilePath string `json:"file_path"`
		Offset   int    `json:"offset"`
		Limit    int    `json:"limit"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return api.ErrorResult("Invalid parameters: %v", err)
	}

	path, err := t.resolvePath(params.FilePath)
	if err != nil {
		return api.ErrorResult("%v", err)
	}

	content, truncated, err := t.read(path)
	if err != nil {
		return api.ErrorResult("Failed to read file: %v", err)
	}

	lines := strings.Split(content, "\n")

	start := 0
	if params.Offset > 0 {
		start = params.Offset - 1
		if start >= len(lines) {
			return api.ErrorResult("Offset beyond end of file")
		}
	}

	end := len(lines)
	if params.Limit > 0 {
		end = min(start+params.Limit, len(lines))
	}

	// cat -n style
	var result strings.Builder
	for i := start; i < end; i++ {
		fmt.Fprintf(&result, "%6d\t%s\n", i+1, lines[i])
	}
	if truncated {
		fmt.Fprintf(&result, "[file truncated after %d bytes]\n", t.maxBytes)
	}

	return api.ToolResult{Content: result.String()}
}

// read returns at most maxBytes of the file, cut back to a line boundary
// when truncated.
func (t *FileReadTool) read(path string) (string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, t.maxBytes+1))
	if err != nil {
		return "", false, err
	}
	if int64(len(data)) <= t.maxBytes {
		return string(data), false, nil
	}
	data = data[:t.maxBytes]
	if nl := strings.LastIndexByte(string(data), '\n'); nl != -1 {
		data = data[:nl]
	}
	return string(data), true, nil
}

// resolvePath joins p onto the root and rejects paths that leave it, either
// as written or through a symlink.
func (t *FileReadTool) resolvePath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("file_path is required")
	}
	full := p
	if !filepath.IsAbs(full) {
		full = filepath.Join(t.root, p)
	}
	full = filepath.Clean(full)

	if !within(t.root, full) {
		return "", fmt.Errorf("path %q is outside %s", p, t.root)
	}

	// A missing file is reported by the read that follows.
	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		return full, nil
	}
	if !within(t.realRoot, resolved) {
		return "", fmt.Errorf("path %q is outside %s", p, t.root)
	}
	return resolved, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
