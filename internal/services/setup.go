package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	cloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"
	"firebase.google.com/go/v4/auth"
	"github.com/Lllllllleong/resumeflow/internal/dispatch"
	"github.com/Lllllllleong/resumeflow/internal/gcp"
	"github.com/Lllllllleong/resumeflow/internal/generator"
	"github.com/Lllllllleong/resumeflow/internal/llm"
	"github.com/Lllllllleong/resumeflow/internal/pdf"
	"github.com/Lllllllleong/resumeflow/internal/retry"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/idtoken"
)

// Service is everything an entry point needs: the orchestrator, the
// handler for queued callbacks, and the HTTP trigger handler.
type Service struct {
	Orchestrator *Orchestrator
	Callbacks    http.Handler
	Triggers     http.Handler
	closers      []io.Closer
}

// NewFromEnv loads configuration and builds every client the service
// uses. Independent clients are created concurrently.
func NewFromEnv(ctx context.Context) (*Service, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logCtx := slog.With("dispatchMode", string(config.DispatchMode), "llmProvider", config.LLMProvider)

	var (
		fsClient   *firestore.Client
		gcsClient  *storage.Client
		authClient *auth.Client
		model      generator.Model
		tasks      *cloudtasks.Client
		execs      *executions.Client
		validator  *idtoken.Validator
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fsClient, err = gcp.NewFirestoreClient(gctx, config.ProjectID)
		return err
	})
	g.Go(func() error {
		var err error
		if gcsClient, err = storage.NewClient(gctx); err != nil {
			return fmt.Errorf("failed to create storage client: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		authClient, err = gcp.NewFirebaseAuth(gctx, config.ProjectID)
		return err
	})
	g.Go(func() error {
		m, err := newModel(gctx, config)
		if err != nil {
			return err
		}
		model = m
		return nil
	})
	switch config.DispatchMode {
	case dispatch.ModeTasks:
		g.Go(func() error {
			var err error
			if tasks, err = cloudtasks.NewClient(gctx); err != nil {
				return fmt.Errorf("failed to create cloud tasks client: %w", err)
			}
			return nil
		})
	case dispatch.ModeWorkflows:
		g.Go(func() error {
			var err error
			if execs, err = executions.NewClient(gctx); err != nil {
				return fmt.Errorf("failed to create workflow executions client: %w", err)
			}
			return nil
		})
	}
	if config.DispatchMode != dispatch.ModeInline {
		g.Go(func() error {
			var err error
			if validator, err = idtoken.NewValidator(gctx); err != nil {
				return fmt.Errorf("failed to create ID token validator: %w", err)
			}
			return nil
		})
	}

	svc := &Service{}
	if err := g.Wait(); err != nil {
		// Close whatever did get created.
		svc.closers = collectClosers(fsClient, gcsClient, model, tasks, execs)
		svc.Close()
		return nil, err
	}
	svc.closers = collectClosers(fsClient, gcsClient, model, tasks, execs)

	policy := retry.Policy{
		MaxAttempts: config.LLMMaxAttempts,
		BaseDelay:   config.LLMRetryDelay,
		MaxDelay:    30 * config.LLMRetryDelay,
	}
	blobs := gcp.NewGCSBlobStore(gcsClient, config.BlobBucket)
	renderer := pdf.NewRenderer(pdf.NewChromedpPrinter(config.ChromePath, config.RenderTimeout), blobs)

	registry := dispatch.NewRegistry()
	var dispatcher dispatch.Dispatcher
	switch config.DispatchMode {
	case dispatch.ModeTasks:
		dispatcher = dispatch.NewCloudTasks(tasks, config.ProjectID, config.TasksLocation, config.TasksQueue, config.callbackTarget())
	case dispatch.ModeWorkflows:
		dispatcher = dispatch.NewWorkflows(execs, config.ProjectID, config.WorkflowLocation, config.WorkflowID, config.callbackTarget())
	default:
		dispatcher = dispatch.NewInline(registry)
	}

	svc.Orchestrator = NewOrchestrator(
		gcp.NewFirestoreStore(fsClient, config.Collection),
		blobs,
		generator.New(model, policy),
		renderer,
		pdf.NewFitzExtractor(),
		dispatcher,
	)
	svc.Orchestrator.RegisterHandlers(registry)

	if validator != nil {
		svc.Callbacks = dispatch.NewCallbackHandler(dispatch.NewOIDCVerifier(validator, config.callbackTarget()), registry)
	} else {
		svc.Callbacks = http.NotFoundHandler()
	}
	svc.Triggers = NewTriggerHandler(svc.Orchestrator, gcp.NewFirebaseAuthenticator(authClient))

	logCtx.Info("Resume service initialised.", "collection", config.Collection, "bucket", config.BlobBucket)
	return svc, nil
}

func newModel(ctx context.Context, config *Config) (generator.Model, error) {
	switch config.LLMProvider {
	case ProviderGemini:
		return llm.NewGeminiModel(ctx, config.GeminiAPIKey, config.LLMModel)
	case ProviderOpenRouter:
		return llm.NewOpenRouterModel(config.OpenRouterBaseURL, config.OpenRouterAPIKey, config.LLMModel, config.LLMTimeout)
	case ProviderGigaChat:
		return llm.NewGigaChatModel(ctx, config.GigaChatAPIKey, config.GigaChatScope, config.LLMModel, config.GigaChatInsecure)
	default:
		return gcp.NewVertexModel(ctx, config.ProjectID, config.VertexAIRegion, config.LLMModel)
	}
}

// collectClosers returns the non-nil values that hold connections.
func collectClosers(values ...interface{}) []io.Closer {
	var closers []io.Closer
	for _, v := range values {
		switch c := v.(type) {
		case *firestore.Client:
			if c != nil {
				closers = append(closers, c)
			}
		case *storage.Client:
			if c != nil {
				closers = append(closers, c)
			}
		case *cloudtasks.Client:
			if c != nil {
				closers = append(closers, c)
			}
		case *executions.Client:
			if c != nil {
				closers = append(closers, c)
			}
		case io.Closer:
			if c != nil {
				closers = append(closers, c)
			}
		}
	}
	return closers
}

// Close releases every client. Errors are joined.
func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
