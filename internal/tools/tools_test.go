package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type stubTool struct {
	name    string
	timeout time.Duration
	execute func(ctx context.Context, params map[string]interface{}) *ToolResult
}

func (t *stubTool) Name() string                       { return t.name }
func (t *stubTool) Description() string                { return "stub" }
func (t *stubTool) Parameters() map[string]interface{} { return map[string]interface{}{"type": "object"} }
func (t *stubTool) Timeout() time.Duration             { return t.timeout }
func (t *stubTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	return t.execute(ctx, params)
}

func TestRegistryExecute_UnknownTool(t *testing.T) {
	registry := NewRegistry()

	result := registry.Execute(context.Background(), &ToolCall{ID: "tc-1", Name: "no-such-tool"})
	if !result.Failed() {
		t.Fatal("unknown tool must produce a failed result")
	}
	if result.ID != "tc-1" {
		t.Errorf("result must echo the correlation id, got %q", result.ID)
	}
	if !strings.Contains(result.Error, "unknown tool") {
		t.Errorf("unexpected error payload %q", result.Error)
	}
}

func TestRegistryExecute_CorrelationIDEchoed(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&stubTool{
		name: "code-search",
		execute: func(ctx context.Context, params map[string]interface{}) *ToolResult {
			return &ToolResult{Result: "found"}
		},
	})

	result := registry.Execute(context.Background(), &ToolCall{ID: "tc-42", Name: "code-search"})
	if result.Failed() {
		t.Fatalf("unexpected failure: %s", result.Error)
	}
	if result.ID != "tc-42" {
		t.Errorf("expected correlation id tc-42, got %q", result.ID)
	}
}

func TestRegistryExecute_TimeoutYieldsFailedResult(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&stubTool{
		name:    "terminal-command",
		timeout: 10 * time.Millisecond,
		execute: func(ctx context.Context, params map[string]interface{}) *ToolResult {
			<-ctx.Done()
			return &ToolResult{Error: "command timed out: " + ctx.Err().Error()}
		},
	})

	result := registry.Execute(context.Background(), &ToolCall{ID: "tc-2", Name: "terminal-command"})
	if !result.Failed() {
		t.Fatal("timeout must produce a failed result")
	}
}

func TestRegistryExecute_PanicRecovered(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&stubTool{
		name: "browser-action",
		execute: func(ctx context.Context, params map[string]interface{}) *ToolResult {
			panic("boom")
		},
	})

	result := registry.Execute(context.Background(), &ToolCall{ID: "tc-3", Name: "browser-action"})
	if !result.Failed() {
		t.Fatal("panic must produce a failed result, not crash the process")
	}
	if !strings.Contains(result.Error, "boom") {
		t.Errorf("expected panic payload in error, got %q", result.Error)
	}
}

func TestRegistryExecute_NilResult(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&stubTool{
		name: "browser-action",
		execute: func(ctx context.Context, params map[string]interface{}) *ToolResult {
			return nil
		},
	})

	result := registry.Execute(context.Background(), &ToolCall{ID: "tc-4", Name: "browser-action"})
	if !result.Failed() {
		t.Fatal("nil result must be reported as a failure")
	}
}

func TestUnprovisionedCapabilities(t *testing.T) {
	tests := []struct {
		name string
		tool Tool
	}{
		{"browser", NewBrowserActionTool(nil)},
		{"terminal", NewTerminalCommandTool(nil)},
		{"code index", NewCodeSearchTool(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.tool.Execute(context.Background(), map[string]interface{}{
				"action":  "read",
				"command": "ls",
				"symbol":  "main",
			})
			if !result.Failed() {
				t.Fatal("unprovisioned capability must yield a failed result")
			}
			if !strings.Contains(result.Error, "not provisioned") {
				t.Errorf("expected descriptive payload, got %q", result.Error)
			}
		})
	}
}

func TestToJSONSchema(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewBrowserActionTool(nil))
	registry.Register(NewTerminalCommandTool(nil))
	registry.Register(NewCodeSearchTool(nil))

	schemas := registry.ToJSONSchema()
	if len(schemas) != 3 {
		t.Fatalf("expected 3 schemas, got %d", len(schemas))
	}

	names := make(map[string]bool)
	for _, schema := range schemas {
		if schema["type"] != "function" {
			t.Errorf("expected function type, got %v", schema["type"])
		}
		fn, ok := schema["function"].(map[string]interface{})
		if !ok {
			t.Fatalf("missing function payload in %v", schema)
		}
		name, _ := fn["name"].(string)
		names[name] = true
		if fn["parameters"] == nil {
			t.Errorf("tool %s has no parameter schema", name)
		}
	}

	for _, want := range []string{"browser-action", "terminal-command", "code-search"} {
		if !names[want] {
			t.Errorf("missing schema for %s", want)
		}
	}
}

type fakeTerminal struct {
	output string
	err    error
}

func (f *fakeTerminal) Run(ctx context.Context, command string) (string, error) {
	return f.output, f.err
}

func TestTerminalCommandTool(t *testing.T) {
	tool := NewTerminalCommandTool(&fakeTerminal{output: "main.go\n"})

	result := tool.Execute(context.Background(), map[string]interface{}{"command": "ls"})
	if result.Failed() {
		t.Fatalf("unexpected failure: %s", result.Error)
	}
	if result.Text() != "main.go\n" {
		t.Errorf("unexpected output %q", result.Text())
	}

	result = tool.Execute(context.Background(), map[string]interface{}{})
	if !result.Failed() {
		t.Error("missing command must fail")
	}

	tool = NewTerminalCommandTool(&fakeTerminal{output: "partial", err: errors.New("exit status 1")})
	result = tool.Execute(context.Background(), map[string]interface{}{"command": "false"})
	if !result.Failed() {
		t.Fatal("command error must fail")
	}
	if !strings.Contains(result.Error, "partial") {
		t.Errorf("expected partial output in error payload, got %q", result.Error)
	}
}

func TestToolResultText(t *testing.T) {
	if (&ToolResult{Result: "plain"}).Text() != "plain" {
		t.Error("string results pass through")
	}
	if got := (&ToolResult{Error: "bad"}).Text(); got != "error: bad" {
		t.Errorf("error text mismatch: %q", got)
	}
	structured := &ToolResult{Result: map[string]interface{}{"count": 2}}
	if !strings.Contains(structured.Text(), `"count":2`) {
		t.Errorf("structured results serialize to JSON, got %q", structured.Text())
	}
}
