// Package llm holds generator.Model implementations for providers outside
// Google Cloud's Vertex AI.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Lllllllleong/resumeflow/internal/retry"
	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiModel calls the Gemini Developer API with an API key.
type GeminiModel struct {
	client    *genai.Client
	modelName string
}

func NewGeminiModel(ctx context.Context, apiKey, modelName string) (*GeminiModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &GeminiModel{client: client, modelName: modelName}, nil
}

func (m *GeminiModel) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if strings.TrimSpace(userPrompt) == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr(float32(0.2)),
	}
	result, err := m.client.Models.GenerateContent(ctx, m.modelName, genai.Text(userPrompt), config)
	if err != nil {
		return "", classifyGeminiError(err)
	}
	if result == nil || len(result.Candidates) == 0 {
		return "", nil
	}
	return result.Text(), nil
}

// classifyGeminiError converts API errors into retry.StatusError so the
// shared retry policy can recognise rate limiting and server errors.
func classifyGeminiError(err error) error {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return fmt.Errorf("gemini generate content: %w", &retry.StatusError{StatusCode: apiErr.Code, Body: apiErr.Message})
	}
	return fmt.Errorf("gemini generate content: %w", err)
}
