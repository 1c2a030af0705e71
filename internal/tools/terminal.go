package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// terminalTimeout bounds a single shell command
const terminalTimeout = 2 * time.Minute

// TerminalTool runs shell commands in the agent workspace
type TerminalTool struct {
	workDir string
}

// NewTerminalTool creates a terminal tool rooted at workDir
func NewTerminalTool(workDir string) *TerminalTool {
	return &TerminalTool{workDir: workDir}
}

func (t *TerminalTool) Name() string { return "terminal" }

func (t *TerminalTool) Description() string {
	return "Run a shell command in the agent workspace and return its combined output. Commands time out after two minutes."
}

func (t *TerminalTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {"type": "string", "description": "The shell command to run"},
			"cwd": {"type": "string", "description": "Working directory, relative to the workspace"}
		},
		"required": ["command"]
	}`)
}

func (t *TerminalTool) Execute(ctx context.Context, input json.RawMessage, ec *ExecContext) (*ToolResult, error) {
	var args struct {
		Command string `json:"command"`
		Cwd     string `json:"cwd"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return Errorf("invalid terminal input: %v", err), nil
	}
	if strings.TrimSpace(args.Command) == "" {
		return Errorf("terminal requires a command"), nil
	}

	ctx, cancel := context.WithTimeout(ctx, terminalTimeout)
	defer cancel()

	shell, flag := shellCommand()
	cmd := exec.CommandContext(ctx, shell, flag, args.Command)
	cmd.Dir = t.workDir
	if args.Cwd != "" {
		dir := resolveWithin(t.workDir, args.Cwd)
		if dir == "" {
			return Errorf("path %q escapes the workspace", args.Cwd), nil
		}
		cmd.Dir = dir
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()

	text := out.String()
	if ctx.Err() == context.DeadlineExceeded {
		return Errorf("command timed out after %s\n%s", terminalTimeout, text), nil
	}
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("exit error: %v\n%s", err, text), IsError: true}, nil
	}
	if text == "" {
		text = "(no output)"
	}
	return &ToolResult{Content: text}, nil
}

// shellCommand picks the platform shell
func shellCommand() (string, string) {
	if runtime.GOOS == "windows" {
		return "cmd", "/C"
	}
	return "/bin/sh", "-c"
}
