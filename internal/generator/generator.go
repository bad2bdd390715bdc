// Package generator turns resume text into structured resumes with an LLM.
// It owns prompt construction, tolerant decoding of model output and the
// retry policy around the provider call.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/resumeflow/internal/models"
	"github.com/Lllllllleong/resumeflow/internal/retry"
)

// ErrGenerationFailed marks any failure to obtain a usable resume from the
// model: transport errors, refusals, empty or malformed output.
var ErrGenerationFailed = errors.New("generation failed")

// Model is a single text-in, text-out LLM call. Implementations live in
// internal/gcp (Vertex AI) and internal/llm (Gemini API, OpenRouter).
type Model interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Generator implements the tailor, parse and edit operations.
type Generator struct {
	model  Model
	policy retry.Policy
}

// New returns a Generator calling model under the given retry policy.
func New(model Model, policy retry.Policy) *Generator {
	return &Generator{model: model, policy: policy}
}

// Tailor rewrites resumeText to target jobText.
func (g *Generator) Tailor(ctx context.Context, resumeText, jobText string) (*models.Resume, error) {
	if strings.TrimSpace(resumeText) == "" {
		return nil, fmt.Errorf("%w: resume text is empty", ErrGenerationFailed)
	}
	prompt := fmt.Sprintf(tailorUserPrompt, jobText, resumeText)
	return g.run(ctx, "tailor", TailorSystemPrompt, prompt)
}

// Parse structures resumeText without rewriting it.
func (g *Generator) Parse(ctx context.Context, resumeText string) (*models.Resume, error) {
	if strings.TrimSpace(resumeText) == "" {
		return nil, fmt.Errorf("%w: resume text is empty", ErrGenerationFailed)
	}
	prompt := fmt.Sprintf(parseUserPrompt, resumeText)
	return g.run(ctx, "parse", ParserSystemPrompt, prompt)
}

// Edit applies instruction to resume and returns the full updated resume.
func (g *Generator) Edit(ctx context.Context, resume *models.Resume, instruction string) (*models.Resume, error) {
	if resume == nil {
		return nil, fmt.Errorf("%w: no resume to edit", ErrGenerationFailed)
	}
	current, err := json.MarshalIndent(resume, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: could not encode resume: %v", ErrGenerationFailed, err)
	}
	prompt := fmt.Sprintf(editUserPrompt, instruction, current)
	return g.run(ctx, "edit", EditorSystemPrompt, prompt)
}

// run calls the model and decodes its answer. A response that cannot be
// decoded gets exactly one more try with a format reminder appended.
func (g *Generator) run(ctx context.Context, op, systemPrompt, userPrompt string) (*models.Resume, error) {
	logCtx := slog.With("operation", op)

	raw, err := g.call(ctx, op, systemPrompt, userPrompt)
	if err != nil {
		logCtx.Error("Call to model failed", "error", err)
		return nil, fmt.Errorf("%w: %s: %v", ErrGenerationFailed, op, err)
	}

	resume, err := decodeResume(raw)
	if err == nil {
		return resume, nil
	}
	logCtx.Warn("Model output unusable, re-prompting with format reminder.", "error", err)

	raw, err = g.call(ctx, op, systemPrompt, userPrompt+formatReminder)
	if err != nil {
		logCtx.Error("Call to model failed on re-prompt", "error", err)
		return nil, fmt.Errorf("%w: %s: %v", ErrGenerationFailed, op, err)
	}
	resume, err = decodeResume(raw)
	if err != nil {
		logCtx.Error("Model output unusable after re-prompt", "error", err, "response", raw)
		return nil, err
	}
	return resume, nil
}

func (g *Generator) call(ctx context.Context, op, systemPrompt, userPrompt string) (string, error) {
	var raw string
	err := retry.Do(ctx, g.policy, "generate "+op, func(ctx context.Context) error {
		out, err := g.model.Generate(ctx, systemPrompt, userPrompt)
		if err != nil {
			return err
		}
		raw = out
		return nil
	})
	return raw, err
}
