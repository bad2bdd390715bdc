package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/resumeflow/internal/gcp"
	"github.com/Lllllllleong/resumeflow/internal/services"
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

	functions.HTTP("HandleResume", handleResume)
}

// main runs the function locally. Deployed functions are started by the
// framework and never reach it.
func main() {
	port := gcp.GetEnv("PORT", "8080")
	if err := funcframework.Start(port); err != nil {
		slog.Error("Function framework exited", "error", err)
		os.Exit(1)
	}
}

// handleResume serves both the user triggers under /documents/ and the
// queued task callbacks under /tasks/.
func handleResume(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		serviceInstance, initErr = services.NewFromEnv(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: Resume service initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	if strings.HasPrefix(r.URL.Path, "/tasks/") {
		serviceInstance.Callbacks.ServeHTTP(w, r)
		return
	}
	serviceInstance.Triggers.ServeHTTP(w, r)
}
