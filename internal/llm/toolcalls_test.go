package llm

import "testing"

func TestNormalizeToolCallIDs(t *testing.T) {
	calls := []map[string]interface{}{
		{
			"type": "function",
			"id":   "",
			"function": map[string]interface{}{
				"name":      "code-search",
				"arguments": "{}",
			},
		},
		{
			"type": "function",
			// call_id should be preferred when present
			"call_id": "tc-123",
			"function": map[string]interface{}{
				"name": "terminal-command",
			},
		},
		nil, // should be skipped without panic
	}

	normalized := NormalizeToolCallIDs(calls, 1)

	if normalized[0]["id"] == "" || normalized[0]["call_id"] == "" {
		t.Fatalf("expected generated id for first call, got id=%v call_id=%v", normalized[0]["id"], normalized[0]["call_id"])
	}
	if normalized[1]["id"] != "tc-123" || normalized[1]["call_id"] != "tc-123" {
		t.Fatalf("expected existing call_id to be preserved, got id=%v call_id=%v", normalized[1]["id"], normalized[1]["call_id"])
	}
}

func TestNormalizeToolCallIDs_UniquePerConversation(t *testing.T) {
	// A model that omits ids on every turn must still get distinct ids for
	// each turn, not just distinct positions within one response.
	makeCall := func() []map[string]interface{} {
		return []map[string]interface{}{
			{
				"type": "function",
				"function": map[string]interface{}{
					"name":      "terminal-command",
					"arguments": "{}",
				},
			},
		}
	}

	seen := map[string]bool{}
	for seq := 1; seq <= 3; seq++ {
		normalized := NormalizeToolCallIDs(makeCall(), seq)
		id, _ := normalized[0]["id"].(string)
		if id == "" {
			t.Fatalf("turn %d: expected synthesized id", seq)
		}
		if seen[id] {
			t.Fatalf("id %q reused across turns", id)
		}
		seen[id] = true
	}
}

func TestNormalizeToolCallIDs_Idempotent(t *testing.T) {
	calls := []map[string]interface{}{
		{
			"type": "function",
			"function": map[string]interface{}{
				"name":      "code-search",
				"arguments": "{}",
			},
		},
	}

	first := NormalizeToolCallIDs(calls, 4)
	id := first[0]["id"]

	// Re-normalizing with a different sequence must keep the assigned id,
	// otherwise the persisted assistant message and the tool result would
	// reference different ids.
	second := NormalizeToolCallIDs(calls, 9)
	if second[0]["id"] != id {
		t.Fatalf("id changed on re-normalization: %v -> %v", id, second[0]["id"])
	}
}

func TestParseToolCalls(t *testing.T) {
	raw := []map[string]interface{}{
		{
			"id":   "call_1",
			"type": "function",
			"function": map[string]interface{}{
				"name":      "browser-action",
				"arguments": `{"action":"navigate","url":"https://example.com"}`,
			},
		},
		{
			"type": "function",
			"function": map[string]interface{}{
				"name":      "terminal-command",
				"arguments": map[string]interface{}{"command": "ls"},
			},
		},
		{
			// missing name, dropped
			"type":     "function",
			"function": map[string]interface{}{"arguments": "{}"},
		},
		nil,
	}

	calls := ParseToolCalls(raw, 1)
	if len(calls) != 2 {
		t.Fatalf("expected 2 parsed calls, got %d", len(calls))
	}

	if calls[0].ID != "call_1" || calls[0].Name != "browser-action" {
		t.Errorf("unexpected first call: %+v", calls[0])
	}
	if calls[0].Arguments["url"] != "https://example.com" {
		t.Errorf("expected decoded string arguments, got %v", calls[0].Arguments)
	}

	if calls[1].ID == "" {
		t.Error("expected generated id for call without one")
	}
	if calls[1].Arguments["command"] != "ls" {
		t.Errorf("expected map arguments preserved, got %v", calls[1].Arguments)
	}
}

func TestParseToolCalls_InvalidArguments(t *testing.T) {
	raw := []map[string]interface{}{
		{
			"id":   "call_x",
			"type": "function",
			"function": map[string]interface{}{
				"name":      "code-search",
				"arguments": "not json at all",
			},
		},
	}

	calls := ParseToolCalls(raw, 1)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].Arguments["raw"] != "not json at all" {
		t.Errorf("expected raw fallback for unparsable arguments, got %v", calls[0].Arguments)
	}
}

func TestParseToolCalls_Empty(t *testing.T) {
	if calls := ParseToolCalls(nil, 1); calls != nil {
		t.Errorf("expected nil for empty input, got %v", calls)
	}
}
