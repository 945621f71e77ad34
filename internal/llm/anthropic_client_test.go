package llm

import (
	"strings"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
)

func TestNewAnthropicClientRequiresKey(t *testing.T) {
	_, err := NewAnthropicClient("   ", "claude-sonnet-4-0")
	if !IsConfiguration(err) {
		t.Fatalf("NewAnthropicClient with blank key error = %v, want configuration error", err)
	}
}

func TestNewAnthropicClientDefaultModel(t *testing.T) {
	client, err := NewAnthropicClient("sk-ant-test", "")
	if err != nil {
		t.Fatalf("NewAnthropicClient() error = %v", err)
	}
	if got := client.GetModelName(); got != defaultAnthropicModel {
		t.Errorf("GetModelName() = %q, want %q", got, defaultAnthropicModel)
	}
}

func TestConvertMessagesToAnthropic(t *testing.T) {
	systemBlocks, chat, err := convertMessagesToAnthropic("be brief", []*Message{
		{Role: "system", Content: "extra instruction"},
		{Role: "user", Content: "run the tests"},
		{
			Role:    "assistant",
			Content: "running them",
			ToolCalls: []map[string]interface{}{
				{
					"id":   "call_1",
					"type": "function",
					"function": map[string]interface{}{
						"name":      "terminal-command",
						"arguments": `{"command":"go test ./..."}`,
					},
				},
			},
		},
		{Role: "tool", Content: "ok\t0 failures", ToolID: "call_1", ToolName: "terminal-command"},
		nil,
	})
	if err != nil {
		t.Fatalf("convertMessagesToAnthropic() error = %v", err)
	}

	// System prompt and in-band system messages both become system blocks.
	if len(systemBlocks) != 2 {
		t.Fatalf("got %d system blocks, want 2", len(systemBlocks))
	}
	if systemBlocks[0].Text != "be brief" {
		t.Errorf("systemBlocks[0] = %q", systemBlocks[0].Text)
	}

	// user, assistant, tool-result-as-user
	if len(chat) != 3 {
		t.Fatalf("got %d chat messages, want 3", len(chat))
	}
	if chat[0].Role != anthropic.MessageParamRoleUser {
		t.Errorf("chat[0].Role = %q", chat[0].Role)
	}
	if chat[1].Role != anthropic.MessageParamRoleAssistant {
		t.Errorf("chat[1].Role = %q", chat[1].Role)
	}
	if len(chat[1].Content) != 2 {
		t.Errorf("assistant has %d blocks, want text + tool_use", len(chat[1].Content))
	}
	if chat[2].Role != anthropic.MessageParamRoleUser {
		t.Errorf("tool result role = %q, want user", chat[2].Role)
	}
}

func TestConvertMessagesMissingToolName(t *testing.T) {
	_, _, err := convertMessagesToAnthropic("", []*Message{
		{
			Role: "assistant",
			ToolCalls: []map[string]interface{}{
				{"id": "call_1", "function": map[string]interface{}{"arguments": "{}"}},
			},
		},
	})
	if err == nil || !strings.Contains(err.Error(), "function name") {
		t.Fatalf("error = %v, want missing function name", err)
	}
}

func TestBuildMessageParamsDefaults(t *testing.T) {
	client, err := NewAnthropicClient("sk-ant-test", "claude-sonnet-4-0")
	if err != nil {
		t.Fatal(err)
	}
	anthClient := client.(*AnthropicClient)

	params, err := anthClient.buildMessageParams(&CompletionRequest{
		Messages:    []*Message{{Role: "user", Content: "hi"}},
		Temperature: 0.4,
	})
	if err != nil {
		t.Fatalf("buildMessageParams() error = %v", err)
	}
	if params.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d, want default 4096", params.MaxTokens)
	}
	if !params.Temperature.Valid() || params.Temperature.Value != 0.4 {
		t.Errorf("Temperature = %+v", params.Temperature)
	}
	if params.Model != anthropic.Model("claude-sonnet-4-0") {
		t.Errorf("Model = %q", params.Model)
	}
}

func TestBuildMessageParamsRejectsEmptyChat(t *testing.T) {
	client, _ := NewAnthropicClient("sk-ant-test", "")
	anthClient := client.(*AnthropicClient)

	_, err := anthClient.buildMessageParams(&CompletionRequest{
		Messages: []*Message{{Role: "system", Content: "only system"}},
	})
	if err == nil {
		t.Fatal("buildMessageParams() accepted a system-only conversation")
	}
}

func TestConvertAnthropicTools(t *testing.T) {
	tools := convertAnthropicTools([]map[string]interface{}{
		{
			"type": "function",
			"function": map[string]interface{}{
				"name":        "code-search",
				"description": "Look up symbol definitions",
				"parameters": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"symbol": map[string]interface{}{"type": "string"},
					},
					"required": []interface{}{"symbol"},
				},
			},
		},
		{"function": map[string]interface{}{"name": "  "}}, // dropped
		nil, // dropped
	})
	if len(tools) != 1 {
		t.Fatalf("got %d tools, want 1", len(tools))
	}
	tool := tools[0].OfTool
	if tool == nil || tool.Name != "code-search" {
		t.Fatalf("tool = %+v", tools[0])
	}
	if len(tool.InputSchema.Required) != 1 || tool.InputSchema.Required[0] != "symbol" {
		t.Errorf("Required = %v", tool.InputSchema.Required)
	}
}

func TestParseAnthropicToolArguments(t *testing.T) {
	if got := parseAnthropicToolArguments(nil); len(got.(map[string]interface{})) != 0 {
		t.Errorf("nil arguments = %v", got)
	}
	if got := parseAnthropicToolArguments("  "); len(got.(map[string]interface{})) != 0 {
		t.Errorf("blank arguments = %v", got)
	}
	decoded := parseAnthropicToolArguments(`{"command":"ls"}`)
	m, ok := decoded.(map[string]interface{})
	if !ok || m["command"] != "ls" {
		t.Errorf("decoded arguments = %v", decoded)
	}
	// Unparsable strings pass through untouched.
	if got := parseAnthropicToolArguments("not json"); got != "not json" {
		t.Errorf("raw string = %v", got)
	}
}
