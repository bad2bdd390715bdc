package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/Role1776/gigago"
)

const (
	DefaultGigaChatModel = "GigaChat"
	DefaultGigaChatScope = "GIGACHAT_API_PERS"
)

// GigaChatModel calls Sber's GigaChat chat API.
type GigaChatModel struct {
	client    *gigago.Client
	modelName string
}

// NewGigaChatModel authenticates with the authorization key and scope.
// insecureSkipVerify is needed where the Russian root CA is not installed.
func NewGigaChatModel(ctx context.Context, apiKey, scope, modelName string, insecureSkipVerify bool) (*GigaChatModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GIGACHAT_API_KEY not set")
	}
	if scope == "" {
		scope = DefaultGigaChatScope
	}
	if modelName == "" {
		modelName = DefaultGigaChatModel
	}

	opts := []gigago.Option{gigago.WithCustomScope(scope)}
	if insecureSkipVerify {
		opts = append(opts, gigago.WithCustomInsecureSkipVerify(true))
	}
	client, err := gigago.NewClient(ctx, apiKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GigaChat client: %w", err)
	}
	return &GigaChatModel{client: client, modelName: modelName}, nil
}

func (m *GigaChatModel) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	// SystemInstruction lives on the model, so each call gets its own.
	model := m.client.GenerativeModel(m.modelName)
	model.SystemInstruction = systemPrompt
	model.Temperature = 0.2

	resp, err := model.Generate(ctx, []gigago.Message{
		{Role: gigago.RoleUser, Content: userPrompt},
	})
	if err != nil {
		return "", fmt.Errorf("gigachat generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
