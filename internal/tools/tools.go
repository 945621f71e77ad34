// Package tools routes structured tool calls emitted by model responses to
// their external collaborators. The tool set is closed: browser-action,
// terminal-command and code-search. Collaborator failures are conversational:
// they come back as failed ToolResults, never as errors that could kill the
// conversation loop.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/codefionn/agentschnell/internal/logger"
)

// Tool is one dispatchable capability. Parameters returns a JSON-schema
// fragment for LLM tool declarations. Timeout bounds a single dispatched
// call; exceeding it yields a failed ToolResult.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Timeout() time.Duration
	Execute(ctx context.Context, params map[string]interface{}) *ToolResult
}

// ToolCall represents a tool call from the LLM.
type ToolCall struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`
}

// ToolResult represents the result of a tool execution. The ID echoes the
// call's correlation id so the router can match results to calls.
type ToolResult struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Failed reports whether the execution produced an error payload.
func (r *ToolResult) Failed() bool {
	return r == nil || r.Error != ""
}

// Text renders the result for inclusion in a tool message.
func (r *ToolResult) Text() string {
	if r == nil {
		return "error: no result"
	}
	if r.Error != "" {
		return "error: " + r.Error
	}
	switch v := r.Result.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

func failedResult(id, format string, args ...interface{}) *ToolResult {
	return &ToolResult{ID: id, Error: fmt.Sprintf(format, args...)}
}

// Registry manages the available tools.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool Tool) {
	r.tools[tool.Name()] = tool
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns the registered tool names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Execute dispatches one tool call. Unknown tools, unprovisioned
// collaborators, timeouts and panics all come back as failed ToolResults so
// the model can recover by choosing a different action.
func (r *Registry) Execute(ctx context.Context, call *ToolCall) (result *ToolResult) {
	if call == nil {
		return failedResult("", "nil tool call")
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("tools: %s panicked: %v", call.Name, rec)
			result = failedResult(call.ID, "tool %s failed: %v", call.Name, rec)
		}
	}()

	tool, ok := r.tools[call.Name]
	if !ok {
		return failedResult(call.ID, "unknown tool: %s", call.Name)
	}

	execCtx := ctx
	if timeout := tool.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result = tool.Execute(execCtx, call.Parameters)
	if result == nil {
		return failedResult(call.ID, "tool %s returned no result", call.Name)
	}

	result.ID = call.ID
	return result
}

// ToJSONSchema produces the tool declarations in OpenAI function format,
// which every configured backend's adapter understands.
func (r *Registry) ToJSONSchema() []map[string]interface{} {
	schemas := make([]map[string]interface{}, 0, len(r.tools))
	for _, tool := range r.tools {
		schemas = append(schemas, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        tool.Name(),
				"description": tool.Description(),
				"parameters":  tool.Parameters(),
			},
		})
	}
	return schemas
}

// GetStringParam reads a string parameter with a default.
func GetStringParam(params map[string]interface{}, key, defaultVal string) string {
	if val, ok := params[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return defaultVal
}

// GetIntParam reads an int parameter with a default.
func GetIntParam(params map[string]interface{}, key string, defaultVal int) int {
	if val, ok := params[key]; ok {
		switch v := val.(type) {
		case int:
			return v
		case float64:
			return int(v)
		case json.Number:
			if i, err := v.Int64(); err == nil {
				return int(i)
			}
		}
	}
	return defaultVal
}

// GetBoolParam reads a bool parameter with a default.
func GetBoolParam(params map[string]interface{}, key string, defaultVal bool) bool {
	if val, ok := params[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return defaultVal
}
