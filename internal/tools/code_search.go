package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codefionn/agentschnell/internal/codeindex"
	"github.com/codefionn/agentschnell/internal/consts"
)

// CodeIndex is the collaborator behind code-search: a symbol index over the
// local source tree.
type CodeIndex interface {
	Refresh(ctx context.Context) error
	Query(ctx context.Context, symbol string) ([]codeindex.Symbol, error)
}

// CodeSearchTool answers symbol lookups against the code index.
type CodeSearchTool struct {
	index CodeIndex
}

// NewCodeSearchTool creates the code-search tool. index may be nil when the
// code-search capability was not provisioned.
func NewCodeSearchTool(index CodeIndex) *CodeSearchTool {
	return &CodeSearchTool{index: index}
}

func (t *CodeSearchTool) Name() string { return "code-search" }

func (t *CodeSearchTool) Description() string {
	return "Search the local source tree for a symbol (function, type, method, class) by name and return its definition locations."
}

func (t *CodeSearchTool) Timeout() time.Duration {
	return consts.DefaultCodeSearchTimeout
}

func (t *CodeSearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"symbol": map[string]interface{}{
				"type":        "string",
				"description": "The symbol name to look up",
			},
			"refresh": map[string]interface{}{
				"type":        "boolean",
				"description": "Rebuild the index before querying",
			},
		},
		"required": []string{"symbol"},
	}
}

func (t *CodeSearchTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	if t.index == nil {
		return &ToolResult{Error: "code-search capability not provisioned; no code index is available"}
	}

	symbol := strings.TrimSpace(GetStringParam(params, "symbol", ""))
	if symbol == "" {
		return &ToolResult{Error: "code-search requires a symbol parameter"}
	}

	if GetBoolParam(params, "refresh", false) {
		if err := t.index.Refresh(ctx); err != nil {
			return &ToolResult{Error: "index refresh failed: " + err.Error()}
		}
	}

	matches, err := t.index.Query(ctx, symbol)
	if err != nil {
		return &ToolResult{Error: "code search failed: " + err.Error()}
	}

	if len(matches) == 0 {
		return &ToolResult{Result: fmt.Sprintf("no definitions found for %q", symbol)}
	}

	var sb strings.Builder
	for _, match := range matches {
		fmt.Fprintf(&sb, "%s:%d:%d: %s %s (%s)\n", match.File, match.Line, match.Column, match.Kind, match.Name, match.Language)
	}
	return &ToolResult{Result: strings.TrimRight(sb.String(), "\n")}
}
