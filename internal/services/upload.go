package services

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"strings"
)

// OriginalsFolder is where the intake flow stores uploaded resumes, as
// originals/<ownerId>/<documentId>.pdf.
const OriginalsFolder = "originals"

// GCSEvent is the payload of a storage object-finalized event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// parseOriginalObject splits an original upload path into its owner and
// document IDs.
func parseOriginalObject(name string) (ownerID, documentID string, ok bool) {
	parts := strings.Split(name, "/")
	if len(parts) != 3 || parts[0] != OriginalsFolder || path.Ext(parts[2]) != ".pdf" {
		return "", "", false
	}
	ownerID = parts[1]
	documentID = strings.TrimSuffix(parts[2], ".pdf")
	if ownerID == "" || documentID == "" {
		return "", "", false
	}
	return ownerID, documentID, true
}

// HandleOriginalUpload starts the original parse for a newly uploaded PDF.
// Objects outside the originals folder and uploads that do not match an
// owned document are ignored, so the event is not redelivered. An upload
// that lands before its document exists is dropped too; the client must
// then call the parse-original trigger once the document is created.
func (o *Orchestrator) HandleOriginalUpload(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)

	ownerID, documentID, ok := parseOriginalObject(e.Name)
	if !ok {
		logCtx.Info("Object is not an original resume upload. Skipping.")
		return nil
	}
	logCtx = logCtx.With("documentId", documentID, "ownerId", ownerID)

	res, err := o.StartParseOriginal(ctx, documentID, ownerID)
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAccessDenied):
		logCtx.Warn("Upload does not match an owned document. Skipping.", "error", err)
		return nil
	case err != nil:
		return err
	}
	logCtx.Info("Original parse started from upload.", "originalParseStatus", res.Status)
	return nil
}
