package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Wire types for OpenAI-style chat completion endpoints. DeepSeek and
// OpenRouter speak the same JSON shape, so all three HTTP clients share
// these types and converters.

type openAIChatRequest struct {
	Model       string                   `json:"model"`
	Messages    []openAIChatMessage      `json:"messages"`
	Tools       []map[string]interface{} `json:"tools,omitempty"`
	Temperature *float64                 `json:"temperature,omitempty"`
	TopP        *float64                 `json:"top_p,omitempty"`
	MaxTokens   int                      `json:"max_tokens,omitempty"`
}

type openAIChatMessage struct {
	Role       string                   `json:"role"`
	Content    interface{}              `json:"content"`
	Name       string                   `json:"name,omitempty"`
	ToolCalls  []map[string]interface{} `json:"tool_calls,omitempty"`
	ToolCallID string                   `json:"tool_call_id,omitempty"`
}

type openAIChatResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Model   string                 `json:"model"`
	Created int64                  `json:"created"`
	Choices []openAIChatChoice     `json:"choices"`
	Usage   map[string]interface{} `json:"usage,omitempty"`
}

type openAIChatChoice struct {
	Index        int                `json:"index"`
	FinishReason string             `json:"finish_reason"`
	Message      *openAIChatMessage `json:"message"`
}

// convertRequestToOpenAI converts the unified request into chat-completions
// wire format. The system prompt becomes the leading system message.
func convertRequestToOpenAI(req *CompletionRequest, model string) (*openAIChatRequest, error) {
	if req == nil {
		return nil, fmt.Errorf("completion request cannot be nil")
	}

	messages := make([]openAIChatMessage, 0, len(req.Messages)+1)

	if system := strings.TrimSpace(req.SystemPrompt); system != "" {
		messages = append(messages, openAIChatMessage{Role: "system", Content: system})
	}

	for _, msg := range req.Messages {
		if msg == nil {
			continue
		}

		role := normalizeRole(msg.Role)
		oMsg := openAIChatMessage{
			Role:    role,
			Content: msg.Content,
		}

		if msg.ToolName != "" {
			oMsg.Name = msg.ToolName
		}
		if role == "assistant" && len(msg.ToolCalls) > 0 {
			oMsg.ToolCalls = msg.ToolCalls
		}
		if role == "tool" && msg.ToolID != "" {
			oMsg.ToolCallID = msg.ToolID
		}

		messages = append(messages, oMsg)
	}

	if len(messages) == 0 {
		return nil, fmt.Errorf("completion requires at least one message")
	}

	payload := &openAIChatRequest{
		Model:    model,
		Messages: messages,
	}

	if len(req.Tools) > 0 {
		payload.Tools = req.Tools
	}
	if req.MaxTokens > 0 {
		payload.MaxTokens = req.MaxTokens
	}
	if req.Temperature != 0 {
		temp := req.Temperature
		payload.Temperature = &temp
	}
	if req.TopP != 0 {
		topP := req.TopP
		payload.TopP = &topP
	}

	return payload, nil
}

// completeOpenAICompatible posts a chat request and decodes the response.
// Errors are classified for retry/fallback: the provider name ends up in the
// returned *Error so fallback logs stay attributable.
func completeOpenAICompatible(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, payload *openAIChatRequest) (*CompletionResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s failed to encode payload: %w", provider, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s failed to create request: %w", provider, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for key, val := range headers {
		httpReq.Header.Set(key, val)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, classifyHTTPError(provider, resp.StatusCode, string(respBody), resp.Header.Get("Retry-After"))
	}

	var chatResp openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, &Error{Kind: KindTransport, Provider: provider, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	return decodeOpenAIChatResponse(&chatResp), nil
}

func decodeOpenAIChatResponse(chatResp *openAIChatResponse) *CompletionResponse {
	if chatResp == nil || len(chatResp.Choices) == 0 || chatResp.Choices[0].Message == nil {
		return &CompletionResponse{StopReason: "stop"}
	}

	first := chatResp.Choices[0]
	stopReason := strings.TrimSpace(first.FinishReason)
	if stopReason == "" {
		stopReason = "stop"
	}

	return &CompletionResponse{
		Content:    extractOpenAIText(first.Message.Content),
		ToolCalls:  convertOpenAIToolCalls(first.Message.ToolCalls),
		StopReason: stopReason,
		Usage:      chatResp.Usage,
	}
}

func convertOpenAIToolCalls(toolCalls []map[string]interface{}) []map[string]interface{} {
	if len(toolCalls) == 0 {
		return nil
	}

	result := make([]map[string]interface{}, 0, len(toolCalls))
	for _, tc := range toolCalls {
		if tc == nil {
			continue
		}

		copyMap := make(map[string]interface{}, len(tc))
		for k, v := range tc {
			if k == "function" {
				fnMap, _ := v.(map[string]interface{})
				if fnMap == nil {
					continue
				}

				fnCopy := make(map[string]interface{}, len(fnMap))
				for fk, fv := range fnMap {
					if fk == "arguments" {
						fnCopy[fk] = stringifyArguments(fv)
					} else {
						fnCopy[fk] = fv
					}
				}
				copyMap[k] = fnCopy
				continue
			}

			copyMap[k] = v
		}

		result = append(result, copyMap)
	}

	return result
}

func extractOpenAIText(content interface{}) string {
	switch value := content.(type) {
	case nil:
		return ""
	case string:
		return value
	case []interface{}:
		var sb strings.Builder
		for _, part := range value {
			sb.WriteString(extractOpenAIText(part))
		}
		return sb.String()
	case map[string]interface{}:
		if text, ok := value["text"].(string); ok {
			return text
		}
		if inner, ok := value["content"]; ok {
			return extractOpenAIText(inner)
		}
	case json.RawMessage:
		var decoded interface{}
		if err := json.Unmarshal(value, &decoded); err == nil {
			return extractOpenAIText(decoded)
		}
	}
	return ""
}

func stringifyArguments(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return "{}"
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "{}"
		}
		return string(data)
	}
}

func normalizeRole(role string) string {
	role = strings.TrimSpace(strings.ToLower(role))
	if role == "" {
		return "user"
	}
	return role
}
