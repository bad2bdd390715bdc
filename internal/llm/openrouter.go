package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Lllllllleong/resumeflow/internal/retry"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const (
	DefaultOpenRouterURL   = "https://openrouter.ai/api/v1"
	DefaultOpenRouterModel = "openai/gpt-4o-mini"
)

// OpenRouterModel calls an OpenAI-compatible chat completions endpoint.
type OpenRouterModel struct {
	client    *resty.Client
	modelName string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

func NewOpenRouterModel(baseURL, apiKey, modelName string, timeout time.Duration) (*OpenRouterModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY not set")
	}
	if baseURL == "" {
		baseURL = DefaultOpenRouterURL
	}
	if modelName == "" {
		modelName = DefaultOpenRouterModel
	}
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	return &OpenRouterModel{client: client, modelName: modelName}, nil
}

func (m *OpenRouterModel) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body := chatRequest{
		Model: m.modelName,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    0.2,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("openrouter request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("openrouter: %w", &retry.StatusError{StatusCode: resp.StatusCode(), Body: truncate(resp.String(), 300)})
	}

	content := gjson.GetBytes(resp.Body(), "choices.0.message.content")
	if !content.Exists() {
		return "", fmt.Errorf("openrouter: response has no message content")
	}
	return content.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
