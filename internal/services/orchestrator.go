package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Lllllllleong/resumeflow/internal/dispatch"
	"github.com/Lllllllleong/resumeflow/internal/generator"
	"github.com/Lllllllleong/resumeflow/internal/models"
)

// DocumentStore is the field-level view of the documents collection.
type DocumentStore interface {
	// Get returns nil, nil when the document does not exist.
	Get(ctx context.Context, id string) (*models.Document, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) error
	// Transition writes fields only while field holds one of allowedFrom.
	Transition(ctx context.Context, id, field string, allowedFrom []string, fields map[string]interface{}) (applied bool, current string, err error)
	// SetUnset writes the unsetOnly fields that are still empty and all of
	// always, atomically.
	SetUnset(ctx context.Context, id string, unsetOnly, always map[string]interface{}) (written []string, err error)
}

type BlobStore interface {
	Download(ctx context.Context, path string) ([]byte, error)
}

type ContentGenerator interface {
	Tailor(ctx context.Context, resumeText, jobText string) (*models.Resume, error)
	Parse(ctx context.Context, resumeText string) (*models.Resume, error)
	Edit(ctx context.Context, resume *models.Resume, instruction string) (*models.Resume, error)
}

type PDFRenderer interface {
	Render(ctx context.Context, ownerID, documentID string, resume *models.Resume) (string, error)
}

type TextExtractor interface {
	ExtractText(ctx context.Context, pdf []byte) (string, error)
}

// failureWriteTimeout bounds the best-effort terminal write made after a
// failure, which runs even if the request context is already done.
const failureWriteTimeout = 15 * time.Second

// Orchestrator owns the document status state machine. Start* methods are
// called by triggers; Process* methods do the work and are reached only
// through the dispatcher.
type Orchestrator struct {
	store      DocumentStore
	blobs      BlobStore
	generator  ContentGenerator
	renderer   PDFRenderer
	extractor  TextExtractor
	dispatcher dispatch.Dispatcher
}

func NewOrchestrator(store DocumentStore, blobs BlobStore, gen ContentGenerator, renderer PDFRenderer, extractor TextExtractor, dispatcher dispatch.Dispatcher) *Orchestrator {
	return &Orchestrator{
		store:      store,
		blobs:      blobs,
		generator:  gen,
		renderer:   renderer,
		extractor:  extractor,
		dispatcher: dispatcher,
	}
}

// RegisterHandlers binds the Process* methods to their callback endpoints.
func (o *Orchestrator) RegisterHandlers(reg *dispatch.Registry) {
	reg.Register(dispatch.EndpointGenerate, dispatch.JSONHandler(o.ProcessGeneration))
	reg.Register(dispatch.EndpointParseOriginal, dispatch.JSONHandler(o.ProcessParseOriginal))
	reg.Register(dispatch.EndpointEdit, dispatch.JSONHandler(o.ProcessEditResume))
}

// loadOwned fetches a document and checks it belongs to requesterID.
func (o *Orchestrator) loadOwned(ctx context.Context, documentID, requesterID string) (*models.Document, error) {
	doc, err := o.store.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	if doc.OwnerID != requesterID {
		return nil, ErrAccessDenied
	}
	return doc, nil
}

// failMain records a failure on the main status axis and returns err with
// context. The write is best-effort: its own failure is only logged.
func (o *Orchestrator) failMain(ctx context.Context, logCtx *slog.Logger, documentID, message string, err error) error {
	logCtx.Error(message, "error", err)
	o.writeFailure(ctx, logCtx, documentID, map[string]interface{}{
		models.FieldStatus: models.StatusFailed,
		models.FieldError:  err.Error(),
	})
	return fmt.Errorf("%s: %w", message, err)
}

// failParse is failMain for the original-parse axis.
func (o *Orchestrator) failParse(ctx context.Context, logCtx *slog.Logger, documentID, message string, err error) error {
	logCtx.Error(message, "error", err)
	o.writeFailure(ctx, logCtx, documentID, map[string]interface{}{
		models.FieldOriginalParseStatus: models.ParseStatusFailed,
		models.FieldOriginalParseError:  err.Error(),
	})
	return fmt.Errorf("%s: %w", message, err)
}

func (o *Orchestrator) writeFailure(ctx context.Context, logCtx *slog.Logger, documentID string, fields map[string]interface{}) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()
	if err := o.store.Update(writeCtx, documentID, fields); err != nil {
		logCtx.Error("CRITICAL: Failed to persist failure status after a processing error.", "updateError", err)
	}
}

// reread returns the document after a dispatch, or nil if it cannot be read.
// Inline dispatch has finished by then; queued dispatch usually has not.
func (o *Orchestrator) reread(ctx context.Context, logCtx *slog.Logger, documentID string) *models.Document {
	doc, err := o.store.Get(ctx, documentID)
	if err != nil || doc == nil {
		logCtx.Warn("Could not re-read document after dispatch", "error", err)
		return nil
	}
	return doc
}

// resumeTextFromPDF downloads the original upload and extracts its text.
func (o *Orchestrator) resumeTextFromPDF(ctx context.Context, doc *models.Document) (string, error) {
	data, err := o.blobs.Download(ctx, doc.PDFOriginalPath)
	if err != nil {
		return "", fmt.Errorf("failed to download original PDF: %w", err)
	}
	text, err := o.extractor.ExtractText(ctx, data)
	if err != nil {
		return "", fmt.Errorf("failed to extract text from original PDF: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// decodeStructured reads a resume that was stored as JSON text.
func decodeStructured(text string) (*models.Resume, bool) {
	if !generator.IsJSONObject(text) {
		return nil, false
	}
	var r models.Resume
	if err := json.Unmarshal([]byte(text), &r); err != nil || r.Name == "" {
		return nil, false
	}
	return &r, true
}
