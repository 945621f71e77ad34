package llm

import (
	"context"
	"net/http"
	"strings"

	"github.com/codefionn/agentschnell/internal/consts"
)

const (
	deepSeekAPIBaseURL   = "https://api.deepseek.com"
	defaultDeepSeekModel = "deepseek-chat"
)

// DeepSeekClient implements the Client interface for the DeepSeek API,
// which speaks the OpenAI chat-completions wire format.
type DeepSeekClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewDeepSeekClient creates a new DeepSeek client.
func NewDeepSeekClient(apiKey, modelName string) (Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, NewConfigurationError("deepseek", "client requires an API key")
	}

	model := strings.TrimSpace(modelName)
	if model == "" {
		model = defaultDeepSeekModel
	}

	return &DeepSeekClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: deepSeekAPIBaseURL,
		httpClient: &http.Client{
			Timeout: consts.Timeout2Minutes,
		},
	}, nil
}

func (c *DeepSeekClient) GetModelName() string {
	return c.model
}

func (c *DeepSeekClient) Complete(ctx context.Context, prompt string) (string, error) {
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

func (c *DeepSeekClient) CompleteWithRequest(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	payload, err := convertRequestToOpenAI(req, c.model)
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(c.baseURL, "/") + "/chat/completions"
	headers := map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	}
	return completeOpenAICompatible(ctx, c.httpClient, "deepseek", url, headers, payload)
}
