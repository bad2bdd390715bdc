package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/resumeflow/internal/retry"
	"google.golang.org/api/googleapi"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// SaveToGCSAtomically writes content to a GCS object only if it doesn't already exist.
func SaveToGCSAtomically(ctx context.Context, bucket *storage.BucketHandle, objectName string, content []byte, contentType string) error {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, bytes.NewReader(content)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			slog.Info("SKIPPING: Object already exists.", "gcsObject", objectName)
			return nil // Not a failure in an idempotent workflow.
		}
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == 412
}

// GCSBlobStore stores blobs in a single bucket. Paths are object names,
// namespaced by the caller as <folder>/<ownerId>/<...>.
type GCSBlobStore struct {
	bucket *storage.BucketHandle
	name   string
	policy retry.Policy
}

func NewGCSBlobStore(client *storage.Client, bucket string) *GCSBlobStore {
	return &GCSBlobStore{bucket: client.Bucket(bucket), name: bucket, policy: retry.DefaultPolicy()}
}

// Save uploads data with retries and returns the object path.
func (s *GCSBlobStore) Save(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	err := retry.Do(ctx, s.policy, "upload "+path, func(ctx context.Context) error {
		return SaveToGCSAtomically(ctx, s.bucket, path, data, contentType)
	})
	if err != nil {
		slog.Error("Upload failed after all retries.", "gcsBucket", s.name, "gcsObject", path, "error", err)
		return "", err
	}
	return path, nil
}

// Download reads a whole object into memory.
func (s *GCSBlobStore) Download(ctx context.Context, path string) ([]byte, error) {
	reader, err := s.bucket.Object(path).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", s.name, path, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", s.name, path, err)
	}
	return data, nil
}
