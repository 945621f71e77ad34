package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// ToolCall is the structured form of a single tool invocation emitted by a
// model response. The ID correlates the call with its eventual tool result.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ParseToolCalls converts wire-format tool calls into structured ToolCalls.
// IDs are normalized first so every call carries a stable correlation id even
// when the provider omitted one; seq scopes synthesized ids to the
// conversation (see NormalizeToolCallIDs).
func ParseToolCalls(raw []map[string]interface{}, seq int) []ToolCall {
	if len(raw) == 0 {
		return nil
	}

	raw = NormalizeToolCallIDs(raw, seq)

	calls := make([]ToolCall, 0, len(raw))
	for _, tc := range raw {
		if tc == nil {
			continue
		}

		fn, ok := tc["function"].(map[string]interface{})
		if !ok || fn == nil {
			continue
		}

		name, _ := fn["name"].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		id, _ := tc["id"].(string)

		calls = append(calls, ToolCall{
			ID:        id,
			Name:      name,
			Arguments: decodeToolArguments(fn["arguments"]),
		})
	}

	return calls
}

// NormalizeToolCallIDs ensures every tool call has a stable identifier.
// Some providers occasionally omit call IDs, which breaks downstream requests
// that require tool_call_id on tool messages. Synthesized ids carry seq, a
// caller-supplied sequence number that advances every response, so ids stay
// unique across turns of the same conversation and not just within one
// response.
func NormalizeToolCallIDs(toolCalls []map[string]interface{}, seq int) []map[string]interface{} {
	for i, tc := range toolCalls {
		if tc == nil {
			continue
		}

		id := firstNonEmptyString(tc["id"], tc["call_id"])
		if strings.TrimSpace(id) == "" {
			if fn, ok := tc["function"].(map[string]interface{}); ok {
				if name := sanitizeToolName(fn["name"]); name != "" {
					id = fmt.Sprintf("call_%s_%d_%d", name, seq, i+1)
				}
			}
		}
		if strings.TrimSpace(id) == "" {
			id = fmt.Sprintf("call_%d_%d", seq, i+1)
		}

		tc["id"] = id
		tc["call_id"] = id
	}
	return toolCalls
}

func decodeToolArguments(raw interface{}) map[string]interface{} {
	switch value := raw.(type) {
	case nil:
		return map[string]interface{}{}
	case map[string]interface{}:
		return value
	case string:
		if strings.TrimSpace(value) == "" {
			return map[string]interface{}{}
		}
		var decoded map[string]interface{}
		if err := json.Unmarshal([]byte(value), &decoded); err == nil && decoded != nil {
			return decoded
		}
		return map[string]interface{}{"raw": value}
	default:
		return map[string]interface{}{}
	}
}

func firstNonEmptyString(values ...interface{}) string {
	for _, v := range values {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func sanitizeToolName(raw interface{}) string {
	name, _ := raw.(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
