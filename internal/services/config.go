package services

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Lllllllleong/resumeflow/internal/dispatch"
	"github.com/Lllllllleong/resumeflow/internal/gcp"
	"github.com/joho/godotenv"
)

// LLM providers selectable with LLM_PROVIDER.
const (
	ProviderVertex     = "vertex"
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderGigaChat   = "gigachat"
)

// Config holds all configuration for the resume service.
type Config struct {
	ProjectID  string
	Collection string
	BlobBucket string

	DispatchMode           dispatch.Mode
	ServiceURL             string
	CallbackServiceAccount string
	TasksLocation          string
	TasksQueue             string
	WorkflowLocation       string
	WorkflowID             string

	LLMProvider       string
	VertexAIRegion    string
	LLMModel          string
	GeminiAPIKey      string
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	GigaChatAPIKey    string
	GigaChatScope     string
	GigaChatInsecure  bool
	LLMMaxAttempts    int
	LLMRetryDelay     time.Duration
	LLMTimeout        time.Duration

	ChromePath    string
	RenderTimeout time.Duration
}

// loadConfig loads and validates all necessary environment variables for
// this service. A .env file in the working directory is read first when
// present; real environment variables win over it.
func loadConfig() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env file.")
	}

	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	bucket := gcp.GetEnv("BLOB_BUCKET", "")
	if bucket == "" {
		return nil, fmt.Errorf("BLOB_BUCKET environment variable must be set")
	}

	mode, err := dispatch.ParseMode(gcp.GetEnv("DISPATCH_MODE", string(dispatch.ModeInline)))
	if err != nil {
		return nil, err
	}

	maxAttempts, err := strconv.Atoi(gcp.GetEnv("LLM_MAX_ATTEMPTS", "4"))
	if err != nil || maxAttempts < 1 {
		return nil, fmt.Errorf("LLM_MAX_ATTEMPTS must be a positive integer")
	}
	retryDelay, err := time.ParseDuration(gcp.GetEnv("LLM_RETRY_DELAY", "2s"))
	if err != nil {
		return nil, fmt.Errorf("LLM_RETRY_DELAY is not a valid duration: %w", err)
	}

	cfg := &Config{
		ProjectID:              projectID,
		Collection:             gcp.GetEnv("FIRESTORE_COLLECTION", "documents"),
		BlobBucket:             bucket,
		DispatchMode:           mode,
		ServiceURL:             strings.TrimSuffix(gcp.GetEnv("SERVICE_URL", ""), "/"),
		CallbackServiceAccount: gcp.GetEnv("CALLBACK_SERVICE_ACCOUNT", ""),
		TasksLocation:          gcp.GetEnv("TASKS_LOCATION", "us-central1"),
		TasksQueue:             gcp.GetEnv("TASKS_QUEUE", ""),
		WorkflowLocation:       gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"),
		WorkflowID:             gcp.GetEnv("WORKFLOW_ID", ""),
		LLMProvider:            strings.ToLower(gcp.GetEnv("LLM_PROVIDER", ProviderVertex)),
		VertexAIRegion:         gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		LLMModel:               gcp.GetEnv("LLM_MODEL", ""),
		GeminiAPIKey:           gcp.GetEnv("GEMINI_API_KEY", ""),
		OpenRouterAPIKey:       gcp.GetEnv("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL:      gcp.GetEnv("OPENROUTER_BASE_URL", ""),
		GigaChatAPIKey:         gcp.GetEnv("GIGACHAT_API_KEY", ""),
		GigaChatScope:          gcp.GetEnv("GIGACHAT_SCOPE", ""),
		GigaChatInsecure:       gcp.GetEnv("GIGACHAT_INSECURE_SKIP_VERIFY", "false") == "true",
		LLMMaxAttempts:         maxAttempts,
		LLMRetryDelay:          retryDelay,
		LLMTimeout:             2 * time.Minute,
		ChromePath:             gcp.GetEnv("CHROME_PATH", ""),
		RenderTimeout:          time.Minute,
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LLMProvider {
	case ProviderVertex:
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY must be set when LLM_PROVIDER is %q", ProviderGemini)
		}
	case ProviderOpenRouter:
		if c.OpenRouterAPIKey == "" {
			return fmt.Errorf("OPENROUTER_API_KEY must be set when LLM_PROVIDER is %q", ProviderOpenRouter)
		}
	case ProviderGigaChat:
		if c.GigaChatAPIKey == "" {
			return fmt.Errorf("GIGACHAT_API_KEY must be set when LLM_PROVIDER is %q", ProviderGigaChat)
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}

	if c.DispatchMode == dispatch.ModeInline {
		return nil
	}
	if c.ServiceURL == "" || c.CallbackServiceAccount == "" {
		return fmt.Errorf("SERVICE_URL and CALLBACK_SERVICE_ACCOUNT must be set for dispatch mode %q", c.DispatchMode)
	}
	if c.DispatchMode == dispatch.ModeTasks && c.TasksQueue == "" {
		return fmt.Errorf("TASKS_QUEUE must be set for dispatch mode %q", c.DispatchMode)
	}
	if c.DispatchMode == dispatch.ModeWorkflows && c.WorkflowID == "" {
		return fmt.Errorf("WORKFLOW_ID must be set for dispatch mode %q", c.DispatchMode)
	}
	return nil
}

func (c *Config) callbackTarget() dispatch.CallbackTarget {
	return dispatch.CallbackTarget{ServiceURL: c.ServiceURL, ServiceAccount: c.CallbackServiceAccount}
}
