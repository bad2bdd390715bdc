package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/resumeflow/internal/services"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

var (
	serviceInstance *services.Service
	once            sync.Once
	initErr         error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Fired for every object finalized in the blob bucket.
	functions.CloudEvent("OriginalUploaded", originalUploaded)
}

// main is required by the Go Functions Framework.
func main() {}

func originalUploaded(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		serviceInstance, initErr = services.NewFromEnv(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent services.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// Returning an error marks the invocation as failed so it is retried.
	return serviceInstance.Orchestrator.HandleOriginalUpload(ctx, gcsEvent)
}
