package gcp

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// DefaultVertexModel is used when LLM_MODEL is not set.
const DefaultVertexModel = "gemini-1.5-pro"

// VertexModel calls a Gemini model through Vertex AI. It satisfies
// generator.Model.
type VertexModel struct {
	modelName  string
	baseClient *genai.Client
}

// NewVertexModel creates a Vertex AI client for the given project and region.
func NewVertexModel(ctx context.Context, projectID, region, modelName string) (*VertexModel, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexModel: projectID and region cannot be empty")
	}
	if modelName == "" {
		modelName = DefaultVertexModel
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &VertexModel{modelName: modelName, baseClient: baseClient}, nil
}

// Generate sends one prompt with the given system instruction and returns
// the concatenated text of the first candidate.
func (m *VertexModel) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	model := m.baseClient.GenerativeModel(m.modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		// Structured output only; the caller decodes JSON.
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.2),
	}
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", fmt.Errorf("vertex generate content: %w", err)
	}
	return extractText(resp), nil
}

func (m *VertexModel) Close() error {
	if m.baseClient != nil {
		return m.baseClient.Close()
	}
	return nil
}

// extractText robustly gets the raw text content from the model response.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}
