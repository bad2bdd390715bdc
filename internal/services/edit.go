package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/Lllllllleong/resumeflow/internal/dispatch"
	"github.com/Lllllllleong/resumeflow/internal/models"
)

var editableStatuses = []string{models.StatusParsed, models.StatusGenerated, models.StatusFailed}

// StartEditResume validates an edit request, moves the document to
// generating, and dispatches the edit.
func (o *Orchestrator) StartEditResume(ctx context.Context, documentID, prompt, requesterID string) (*models.StartResponse, error) {
	logCtx := slog.With("documentId", documentID, "ownerId", requesterID, "flow", "edit")

	doc, err := o.loadOwned(ctx, documentID, requesterID)
	if err != nil {
		return nil, err
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if !slices.Contains(editableStatuses, doc.Status) {
		return nil, &InvalidStateError{Current: doc.Status, Expected: editableStatuses}
	}

	applied, current, err := o.store.Transition(ctx, documentID, models.FieldStatus, editableStatuses, map[string]interface{}{
		models.FieldStatus: models.StatusGenerating,
		models.FieldError:  nil,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set status to generating: %w", err)
	}
	if !applied {
		return nil, &InvalidStateError{Current: current, Expected: editableStatuses}
	}
	logCtx.Info("Status set to generating, dispatching edit.")

	task := models.EditResumeTask{DocumentID: documentID, EditPrompt: prompt, OwnerID: doc.OwnerID}
	if err := o.dispatcher.Dispatch(ctx, dispatch.EndpointEdit, task); err != nil {
		if errors.Is(err, dispatch.ErrDispatchFailed) {
			return nil, o.failMain(ctx, logCtx, documentID, "failed to dispatch edit", err)
		}
		return nil, err
	}

	status := models.StatusGenerating
	if latest := o.reread(ctx, logCtx, documentID); latest != nil {
		status = latest.Status
	}
	return &models.StartResponse{Status: status}, nil
}

// ProcessEditResume applies the instruction to the current structured
// resume, renders it, and stores it as the new original. The initial
// original is left alone.
func (o *Orchestrator) ProcessEditResume(ctx context.Context, task models.EditResumeTask) error {
	logCtx := slog.With("documentId", task.DocumentID, "ownerId", task.OwnerID, "flow", "edit")
	logCtx.Info("Starting resume edit.")

	doc, err := o.store.Get(ctx, task.DocumentID)
	if err != nil {
		return o.failMain(ctx, logCtx, task.DocumentID, "failed to load document", err)
	}
	if doc == nil {
		logCtx.Warn("Document disappeared before edit could run.")
		return dispatch.Permanent(ErrNotFound)
	}
	if doc.OwnerID != task.OwnerID {
		logCtx.Warn("Edit task owner does not match document owner.")
		return dispatch.Permanent(ErrAccessDenied)
	}

	current, err := o.editSource(ctx, doc)
	if err != nil {
		return o.failMain(ctx, logCtx, task.DocumentID, "failed to resolve resume to edit", err)
	}

	edited, err := o.generator.Edit(ctx, current, task.EditPrompt)
	if err != nil {
		return o.failMain(ctx, logCtx, task.DocumentID, "failed to edit resume", err)
	}

	pdfPath, err := o.renderer.Render(ctx, doc.OwnerID, task.DocumentID, edited)
	if err != nil {
		return o.failMain(ctx, logCtx, task.DocumentID, "failed to render edited resume", err)
	}

	text, err := edited.JSON()
	if err != nil {
		return o.failMain(ctx, logCtx, task.DocumentID, "failed to encode edited resume", err)
	}

	err = o.store.Update(ctx, task.DocumentID, map[string]interface{}{
		models.FieldStatus:             models.StatusGenerated,
		models.FieldOriginalResumeData: edited,
		models.FieldResumeText:         text,
		models.FieldPDFResultPath:      pdfPath,
		models.FieldError:              nil,
	})
	if err != nil {
		return o.failMain(ctx, logCtx, task.DocumentID, "failed to save edit result", err)
	}

	logCtx.Info("Resume edit complete.", "pdfResultPath", pdfPath)
	return nil
}

// editSource returns the structure an edit starts from: the stored
// original if present, else the stored JSON text, else a fresh parse of
// the stored or extracted text.
func (o *Orchestrator) editSource(ctx context.Context, doc *models.Document) (*models.Resume, error) {
	if doc.OriginalResumeData != nil {
		return doc.OriginalResumeData, nil
	}
	if r, ok := decodeStructured(doc.ResumeText); ok {
		return r, nil
	}

	text := strings.TrimSpace(doc.ResumeText)
	if text == "" && doc.PDFOriginalPath != "" {
		extracted, err := o.resumeTextFromPDF(ctx, doc)
		if err != nil {
			return nil, err
		}
		text = extracted
	}
	if text == "" {
		return nil, ErrNoResumeText
	}
	return o.generator.Parse(ctx, text)
}
