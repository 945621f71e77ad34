package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"

	"github.com/codefionn/agentschnell/internal/consts"
)

const (
	openAIDefaultBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o"
)

// OpenAIClient implements the Client interface using OpenAI's native APIs.
// Reasoning-era models (gpt-5, o-series, codex) go through the official
// SDK's Responses API; the rest use plain chat completions.
type OpenAIClient struct {
	apiKey          string
	model           string
	baseURL         string
	httpClient      *http.Client
	useResponses    bool
	responsesClient *openai.Client
}

// NewOpenAIClient constructs a client that talks directly to the OpenAI API.
func NewOpenAIClient(apiKey, modelName string) (Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, NewConfigurationError("openai", "client requires an API key")
	}

	model := strings.TrimSpace(modelName)
	if model == "" {
		model = defaultOpenAIModel
	}

	client := &OpenAIClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: openAIDefaultBaseURL,
		httpClient: &http.Client{
			Timeout: consts.Timeout2Minutes,
		},
	}

	if requiresResponsesAPI(model) {
		apiClient := openai.NewClient(option.WithAPIKey(apiKey))
		client.useResponses = true
		client.responsesClient = &apiClient
	}

	return client, nil
}

func (c *OpenAIClient) GetModelName() string {
	return c.model
}

func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.CompleteWithRequest(ctx, &CompletionRequest{
		Messages: []*Message{
			{Role: "user", Content: prompt},
		},
		Temperature: 1.0,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (c *OpenAIClient) CompleteWithRequest(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if req == nil {
		return nil, errors.New("openai completion request cannot be nil")
	}

	if c.useResponses {
		return c.completeWithResponses(ctx, req)
	}
	return c.completeWithChat(ctx, req)
}

func (c *OpenAIClient) completeWithChat(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	payload, err := convertRequestToOpenAI(req, c.model)
	if err != nil {
		return nil, err
	}

	if isOpenAITemperatureUnsupported(c.model) {
		one := 1.0
		payload.Temperature = &one
	}

	url := strings.TrimRight(c.baseURL, "/") + "/chat/completions"
	headers := map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	}
	return completeOpenAICompatible(ctx, c.httpClient, "openai", url, headers, payload)
}

func (c *OpenAIClient) completeWithResponses(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if c.responsesClient == nil {
		return nil, NewConfigurationError("openai", "responses client not configured")
	}

	params, err := c.buildResponsesParams(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.responsesClient.Responses.New(ctx, params)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	return convertResponsesCompletion(resp), nil
}

// classifyOpenAIError maps SDK errors onto the shared taxonomy.
func classifyOpenAIError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		retryAfter := ""
		if apierr.Response != nil {
			retryAfter = apierr.Response.Header.Get("Retry-After")
		}
		return classifyHTTPError("openai", apierr.StatusCode, apierr.Error(), retryAfter)
	}
	return classifyTransportError("openai", err)
}

func (c *OpenAIClient) buildResponsesParams(req *CompletionRequest) (responses.ResponseNewParams, error) {
	inputItems, err := buildResponsesInput(req.Messages)
	if err != nil {
		return responses.ResponseNewParams{}, err
	}

	if len(inputItems) == 0 {
		return responses.ResponseNewParams{}, errors.New("no messages provided")
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(c.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: inputItems,
		},
	}

	if req.SystemPrompt != "" {
		params.Instructions = openai.String(req.SystemPrompt)
	}

	if req.Temperature != 0 && !isOpenAITemperatureUnsupported(c.model) {
		params.Temperature = openai.Float(req.Temperature)
	}

	if req.MaxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(req.MaxTokens))
	}

	if len(req.Tools) > 0 {
		params.Tools = convertResponsesTools(req.Tools)
	}

	return params, nil
}

func requiresResponsesAPI(modelName string) bool {
	model := strings.TrimSpace(strings.ToLower(modelName))
	if model == "" {
		return false
	}

	if strings.HasPrefix(model, "gpt-5") {
		return true
	}
	if strings.Contains(model, "codex") {
		return true
	}
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") {
		return true
	}
	if strings.HasPrefix(model, "gpt-4.1") {
		return true
	}

	return false
}

func isOpenAITemperatureUnsupported(modelName string) bool {
	modelLower := strings.ToLower(strings.TrimSpace(modelName))
	if modelLower == "" {
		return false
	}

	return strings.Contains(modelLower, "o1") ||
		strings.Contains(modelLower, "o3") ||
		strings.Contains(modelLower, "reasoning")
}

func buildResponsesInput(messages []*Message) (responses.ResponseInputParam, error) {
	input := make(responses.ResponseInputParam, 0, len(messages))

	for _, msg := range messages {
		if msg == nil {
			continue
		}

		role := normalizeRole(msg.Role)
		switch role {
		case "tool":
			if msg.ToolID == "" {
				continue
			}
			input = append(input, responses.ResponseInputItemParamOfFunctionCallOutput(msg.ToolID, msg.Content))
		case "assistant":
			if strings.TrimSpace(msg.Content) != "" {
				input = append(input, responses.ResponseInputItemParamOfMessage(msg.Content, responses.EasyInputMessageRoleAssistant))
			}
			for _, tc := range msg.ToolCalls {
				callID, name, args, ok := splitWireToolCall(tc)
				if !ok {
					continue
				}
				input = append(input, responses.ResponseInputItemParamOfFunctionCall(args, callID, name))
			}
		case "system":
			if strings.TrimSpace(msg.Content) == "" {
				continue
			}
			input = append(input, responses.ResponseInputItemParamOfMessage(msg.Content, responses.EasyInputMessageRoleSystem))
		default:
			if strings.TrimSpace(msg.Content) == "" {
				continue
			}
			input = append(input, responses.ResponseInputItemParamOfMessage(msg.Content, responses.EasyInputMessageRoleUser))
		}
	}

	return input, nil
}

func splitWireToolCall(raw map[string]interface{}) (callID, name, args string, ok bool) {
	if raw == nil {
		return "", "", "", false
	}

	callID, _ = raw["id"].(string)
	if callID == "" {
		callID, _ = raw["call_id"].(string)
	}

	function, found := raw["function"].(map[string]interface{})
	if !found {
		return "", "", "", false
	}

	name, _ = function["name"].(string)
	if name == "" {
		return "", "", "", false
	}

	args = stringifyArguments(function["arguments"])
	if callID == "" {
		callID = "call_" + name
	}

	return callID, name, args, true
}

func convertResponsesTools(tools []map[string]interface{}) []responses.ToolUnionParam {
	result := make([]responses.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		if toolType, _ := tool["type"].(string); toolType != "function" {
			continue
		}

		function, ok := tool["function"].(map[string]interface{})
		if !ok {
			continue
		}

		name, _ := function["name"].(string)
		if name == "" {
			continue
		}

		parameters, _ := function["parameters"].(map[string]interface{})
		description, _ := function["description"].(string)
		strict, _ := function["strict"].(bool)

		variant := responses.ToolParamOfFunction(name, parameters, strict)
		if description != "" && variant.OfFunction != nil {
			variant.OfFunction.Description = openai.String(description)
		}

		result = append(result, variant)
	}
	return result
}

func convertResponsesCompletion(resp *responses.Response) *CompletionResponse {
	if resp == nil {
		return &CompletionResponse{}
	}

	return &CompletionResponse{
		Content:    resp.OutputText(),
		ToolCalls:  extractResponsesToolCalls(resp.Output),
		StopReason: string(resp.Status),
	}
}

func extractResponsesToolCalls(items []responses.ResponseOutputItemUnion) []map[string]interface{} {
	toolCalls := make([]map[string]interface{}, 0)
	for _, item := range items {
		if item.Type != "function_call" {
			continue
		}

		call := item.AsFunctionCall()
		identifier := call.CallID
		if identifier == "" {
			identifier = call.ID
		}

		toolCalls = append(toolCalls, map[string]interface{}{
			"id":   identifier,
			"type": "function",
			"function": map[string]interface{}{
				"name":      call.Name,
				"arguments": call.Arguments,
			},
		})
	}
	return toolCalls
}
