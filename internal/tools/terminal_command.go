package tools

import (
	"context"
	"strings"
	"time"

	"github.com/codefionn/agentschnell/internal/consts"
)

// TerminalSession is the collaborator behind terminal-command: a persistent
// shell whose working directory and environment survive across commands.
type TerminalSession interface {
	Run(ctx context.Context, command string) (string, error)
}

// TerminalCommandTool runs shell commands in the session's persistent shell.
type TerminalCommandTool struct {
	session TerminalSession
}

// NewTerminalCommandTool creates the terminal-command tool. session may be
// nil when the terminal capability was not provisioned.
func NewTerminalCommandTool(session TerminalSession) *TerminalCommandTool {
	return &TerminalCommandTool{session: session}
}

func (t *TerminalCommandTool) Name() string { return "terminal-command" }

func (t *TerminalCommandTool) Description() string {
	return "Run a shell command in a persistent terminal session. Working directory and environment persist between commands."
}

func (t *TerminalCommandTool) Timeout() time.Duration {
	return consts.DefaultTerminalCommandTimeout
}

func (t *TerminalCommandTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "The shell command to execute",
			},
		},
		"required": []string{"command"},
	}
}

func (t *TerminalCommandTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	if t.session == nil {
		return &ToolResult{Error: "terminal capability not provisioned; no terminal session is available"}
	}

	command := strings.TrimSpace(GetStringParam(params, "command", ""))
	if command == "" {
		return &ToolResult{Error: "terminal-command requires a command parameter"}
	}

	output, err := t.session.Run(ctx, command)
	if err != nil {
		// Partial output still helps the model diagnose the failure.
		msg := "command failed: " + err.Error()
		if output != "" {
			msg += "\noutput:\n" + output
		}
		return &ToolResult{Error: msg}
	}

	return &ToolResult{Result: output}
}
