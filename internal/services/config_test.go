package services

import (
	"strings"
	"testing"
	"time"

	"github.com/Lllllllleong/resumeflow/internal/dispatch"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	for k, v := range map[string]string{
		"PROJECT_ID":               "proj",
		"BLOB_BUCKET":              "resumes-bucket",
		"FIRESTORE_COLLECTION":     "",
		"DISPATCH_MODE":            "inline",
		"SERVICE_URL":              "",
		"CALLBACK_SERVICE_ACCOUNT": "",
		"TASKS_QUEUE":              "",
		"WORKFLOW_ID":              "",
		"LLM_PROVIDER":             "vertex",
		"LLM_MAX_ATTEMPTS":         "3",
		"LLM_RETRY_DELAY":          "500ms",
		"GEMINI_API_KEY":           "",
		"OPENROUTER_API_KEY":       "",
		"GIGACHAT_API_KEY":         "",
	} {
		t.Setenv(k, v)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("FIRESTORE_COLLECTION", "documents")
	t.Setenv("SERVICE_URL", "https://svc.example.run.app/")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.DispatchMode != dispatch.ModeInline || cfg.Collection != "documents" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.LLMMaxAttempts != 3 || cfg.LLMRetryDelay != 500*time.Millisecond {
		t.Errorf("retry = %d/%v", cfg.LLMMaxAttempts, cfg.LLMRetryDelay)
	}
	if cfg.ServiceURL != "https://svc.example.run.app" {
		t.Errorf("ServiceURL = %q, want trailing slash trimmed", cfg.ServiceURL)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"missing project", map[string]string{"PROJECT_ID": ""}, "PROJECT_ID"},
		{"missing bucket", map[string]string{"BLOB_BUCKET": ""}, "BLOB_BUCKET"},
		{"bad mode", map[string]string{"DISPATCH_MODE": "pubsub"}, "pubsub"},
		{"bad attempts", map[string]string{"LLM_MAX_ATTEMPTS": "0"}, "LLM_MAX_ATTEMPTS"},
		{"bad delay", map[string]string{"LLM_RETRY_DELAY": "soon"}, "LLM_RETRY_DELAY"},
		{"unknown provider", map[string]string{"LLM_PROVIDER": "claude"}, "LLM_PROVIDER"},
		{"gemini without key", map[string]string{"LLM_PROVIDER": "gemini"}, "GEMINI_API_KEY"},
		{"openrouter without key", map[string]string{"LLM_PROVIDER": "openrouter"}, "OPENROUTER_API_KEY"},
		{"gigachat without key", map[string]string{"LLM_PROVIDER": "gigachat"}, "GIGACHAT_API_KEY"},
		{"tasks without target", map[string]string{"DISPATCH_MODE": "tasks", "TASKS_QUEUE": "q"}, "SERVICE_URL"},
		{"tasks without queue", map[string]string{"DISPATCH_MODE": "tasks", "SERVICE_URL": "https://x", "CALLBACK_SERVICE_ACCOUNT": "sa@x"}, "TASKS_QUEUE"},
		{"workflows without id", map[string]string{"DISPATCH_MODE": "workflows", "SERVICE_URL": "https://x", "CALLBACK_SERVICE_ACCOUNT": "sa@x"}, "WORKFLOW_ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := loadConfig()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigQueuedModes(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DISPATCH_MODE", "workflows")
	t.Setenv("SERVICE_URL", "https://svc.example.run.app")
	t.Setenv("CALLBACK_SERVICE_ACCOUNT", "tasks@proj.iam.gserviceaccount.com")
	t.Setenv("WORKFLOW_ID", "resume-callback")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	target := cfg.callbackTarget()
	if target.ServiceURL != "https://svc.example.run.app" || target.ServiceAccount != "tasks@proj.iam.gserviceaccount.com" {
		t.Errorf("target = %+v", target)
	}
}
