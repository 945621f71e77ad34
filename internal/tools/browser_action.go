package tools

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/codefionn/agentschnell/internal/consts"
)

// BrowserSession is the collaborator behind browser-action: a long-lived
// headless browser owned by the conversation session.
type BrowserSession interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Evaluate(ctx context.Context, expression string) (string, error)
	ReadState(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
}

// BrowserActionTool drives the headless browser session. When no session was
// provisioned the tool still answers, just with a failed result.
type BrowserActionTool struct {
	session BrowserSession
}

// NewBrowserActionTool creates the browser-action tool. session may be nil
// when the browser capability was not provisioned.
func NewBrowserActionTool(session BrowserSession) *BrowserActionTool {
	return &BrowserActionTool{session: session}
}

func (t *BrowserActionTool) Name() string { return "browser-action" }

func (t *BrowserActionTool) Description() string {
	return "Perform an action in a headless browser: navigate to a URL, click an element, evaluate JavaScript, read the current page as markdown, or take a screenshot."
}

func (t *BrowserActionTool) Timeout() time.Duration {
	return consts.DefaultBrowserActionTimeout
}

func (t *BrowserActionTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"navigate", "click", "evaluate", "read", "screenshot"},
				"description": "The browser action to perform",
			},
			"url": map[string]interface{}{
				"type":        "string",
				"description": "Target URL for the navigate action",
			},
			"selector": map[string]interface{}{
				"type":        "string",
				"description": "CSS selector for the click action",
			},
			"expression": map[string]interface{}{
				"type":        "string",
				"description": "JavaScript expression for the evaluate action",
			},
		},
		"required": []string{"action"},
	}
}

func (t *BrowserActionTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	if t.session == nil {
		return &ToolResult{Error: "browser capability not provisioned; no browser session is available"}
	}

	action := strings.ToLower(GetStringParam(params, "action", ""))
	switch action {
	case "navigate":
		url := GetStringParam(params, "url", "")
		if url == "" {
			return &ToolResult{Error: "navigate requires a url parameter"}
		}
		if err := t.session.Navigate(ctx, url); err != nil {
			return &ToolResult{Error: "navigate failed: " + err.Error()}
		}
		state, err := t.session.ReadState(ctx)
		if err != nil {
			return &ToolResult{Result: "navigated to " + url}
		}
		return &ToolResult{Result: state}

	case "click":
		selector := GetStringParam(params, "selector", "")
		if selector == "" {
			return &ToolResult{Error: "click requires a selector parameter"}
		}
		if err := t.session.Click(ctx, selector); err != nil {
			return &ToolResult{Error: "click failed: " + err.Error()}
		}
		return &ToolResult{Result: "clicked " + selector}

	case "evaluate":
		expression := GetStringParam(params, "expression", "")
		if expression == "" {
			return &ToolResult{Error: "evaluate requires an expression parameter"}
		}
		value, err := t.session.Evaluate(ctx, expression)
		if err != nil {
			return &ToolResult{Error: "evaluate failed: " + err.Error()}
		}
		return &ToolResult{Result: value}

	case "read":
		state, err := t.session.ReadState(ctx)
		if err != nil {
			return &ToolResult{Error: "read failed: " + err.Error()}
		}
		return &ToolResult{Result: state}

	case "screenshot":
		data, err := t.session.Screenshot(ctx)
		if err != nil {
			return &ToolResult{Error: "screenshot failed: " + err.Error()}
		}
		return &ToolResult{Result: base64.StdEncoding.EncodeToString(data)}

	default:
		return &ToolResult{Error: "unknown browser action: " + action}
	}
}
