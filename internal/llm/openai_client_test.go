package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
)

func TestRequiresResponsesAPI(t *testing.T) {
	tests := []struct {
		model    string
		expected bool
	}{
		{"gpt-5", true},
		{"gpt-5-mini", true},
		{"o1-preview", true},
		{"o3-mini", true},
		{"o4-mini", true},
		{"codex-mini-latest", true},
		{"gpt-4.1", true},
		{"gpt-4o", false},
		{"gpt-4o-mini", false},
		{"gpt-3.5-turbo", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := requiresResponsesAPI(tt.model); got != tt.expected {
				t.Errorf("requiresResponsesAPI(%q) = %v, want %v", tt.model, got, tt.expected)
			}
		})
	}
}

func TestIsOpenAITemperatureUnsupported(t *testing.T) {
	tests := []struct {
		model    string
		expected bool
	}{
		{"o1-preview", true},
		{"o3-mini", true},
		{"some-reasoning-model", true},
		{"gpt-4o", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := isOpenAITemperatureUnsupported(tt.model); got != tt.expected {
				t.Errorf("isOpenAITemperatureUnsupported(%q) = %v, want %v", tt.model, got, tt.expected)
			}
		})
	}
}

func TestNewOpenAIClient_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIClient("  ", "gpt-4o")
	if err == nil {
		t.Fatal("Expected error for blank API key")
	}
	if !IsConfiguration(err) {
		t.Errorf("Expected configuration error, got %v", err)
	}
}

func TestOpenAIChatPath_Success(t *testing.T) {
	client := &OpenAIClient{
		apiKey:  "test-key",
		model:   "gpt-4o",
		baseURL: "http://openai.test",
		httpClient: newTestHTTPClient(func(req *http.Request) (*http.Response, error) {
			if got := req.Header.Get("Authorization"); got != "Bearer test-key" {
				t.Errorf("Expected bearer auth, got %q", got)
			}

			var payload openAIChatRequest
			if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
				t.Fatalf("Failed to decode payload: %v", err)
			}
			if payload.Model != "gpt-4o" {
				t.Errorf("Expected model gpt-4o, got %s", payload.Model)
			}

			body := `{"id":"resp-1","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"done"}}]}`
			return newTestHTTPResponse(req, http.StatusOK, "application/json", body), nil
		}),
	}

	resp, err := client.CompleteWithRequest(context.Background(), &CompletionRequest{
		Messages: []*Message{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("CompleteWithRequest failed: %v", err)
	}
	if resp.Content != "done" {
		t.Errorf("Expected content 'done', got %q", resp.Content)
	}
}

func TestBuildResponsesInput_ToolMessages(t *testing.T) {
	input, err := buildResponsesInput([]*Message{
		{Role: "user", Content: "run ls"},
		{
			Role: "assistant",
			ToolCalls: []map[string]interface{}{
				{
					"id":   "call_1",
					"type": "function",
					"function": map[string]interface{}{
						"name":      "terminal-command",
						"arguments": `{"command":"ls"}`,
					},
				},
			},
		},
		{Role: "tool", ToolID: "call_1", Content: "main.go"},
		{Role: "tool", Content: "orphan result without id"}, // dropped
	})
	if err != nil {
		t.Fatalf("buildResponsesInput failed: %v", err)
	}

	if len(input) != 3 {
		t.Fatalf("Expected 3 input items, got %d", len(input))
	}
}

func TestSplitWireToolCall(t *testing.T) {
	callID, name, args, ok := splitWireToolCall(map[string]interface{}{
		"call_id": "tc-9",
		"function": map[string]interface{}{
			"name":      "code-search",
			"arguments": map[string]interface{}{"query": "Dispatch"},
		},
	})
	if !ok {
		t.Fatal("Expected tool call to split")
	}
	if callID != "tc-9" || name != "code-search" {
		t.Errorf("Unexpected split: id=%s name=%s", callID, name)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(args), &decoded); err != nil {
		t.Fatalf("Arguments not valid JSON: %v", err)
	}

	if _, _, _, ok := splitWireToolCall(map[string]interface{}{"id": "x"}); ok {
		t.Error("Expected split to fail without function payload")
	}
}
