package llm

import (
	"context"
	"net/http"
	"strings"

	"github.com/codefionn/agentschnell/internal/consts"
)

const (
	openRouterAPIBaseURL = "https://openrouter.ai/api/v1"
	openRouterReferer    = "https://github.com/codefionn/agentschnell"
	openRouterAppTitle   = "agentschnell"
)

// OpenRouterClient implements the Client interface against the OpenRouter
// API. OpenRouter routes by nested model identifiers (`vendor/model` or
// `vendor/org/model`); the identifier is sent verbatim in the payload.
type OpenRouterClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewOpenRouterClient creates a new OpenRouter client.
func NewOpenRouterClient(apiKey, modelID string) (Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, NewConfigurationError("openrouter", "client requires an API key")
	}

	model := strings.TrimSpace(modelID)
	if model == "" {
		model = "openai/o3-mini"
	}

	return &OpenRouterClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: openRouterAPIBaseURL,
		httpClient: &http.Client{
			Timeout: consts.Timeout2Minutes,
		},
	}, nil
}

func (c *OpenRouterClient) GetModelName() string {
	return c.model
}

func (c *OpenRouterClient) Complete(ctx context.Context, prompt string) (string, error) {
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

func (c *OpenRouterClient) CompleteWithRequest(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	payload, err := convertRequestToOpenAI(req, c.model)
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(c.baseURL, "/") + "/chat/completions"
	headers := map[string]string{
		"Authorization": "Bearer " + c.apiKey,
		"HTTP-Referer":  openRouterReferer,
		"X-Title":       openRouterAppTitle,
	}
	return completeOpenAICompatible(ctx, c.httpClient, "openrouter", url, headers, payload)
}
