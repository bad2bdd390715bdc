package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/resumeflow/internal/dispatch"
	"github.com/Lllllllleong/resumeflow/internal/models"
)

// StartGeneration moves a parsed document to generating and dispatches the
// tailoring work. With inline dispatch the returned status is terminal.
func (o *Orchestrator) StartGeneration(ctx context.Context, documentID, requesterID string) (*models.StartResponse, error) {
	logCtx := slog.With("documentId", documentID, "ownerId", requesterID, "flow", "generate")

	doc, err := o.loadOwned(ctx, documentID, requesterID)
	if err != nil {
		return nil, err
	}
	expected := []string{models.StatusParsed}
	if doc.Status != models.StatusParsed {
		return nil, &InvalidStateError{Current: doc.Status, Expected: expected}
	}

	applied, current, err := o.store.Transition(ctx, documentID, models.FieldStatus, expected, map[string]interface{}{
		models.FieldStatus: models.StatusGenerating,
		models.FieldError:  nil,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set status to generating: %w", err)
	}
	if !applied {
		// Lost the race against a concurrent trigger.
		return nil, &InvalidStateError{Current: current, Expected: expected}
	}
	logCtx.Info("Status set to generating, dispatching work.")

	task := models.GenerationTask{
		DocumentID: documentID,
		ResumeText: doc.ResumeText,
		JobText:    doc.JobText,
		OwnerID:    doc.OwnerID,
	}
	if err := o.dispatcher.Dispatch(ctx, dispatch.EndpointGenerate, task); err != nil {
		if errors.Is(err, dispatch.ErrDispatchFailed) {
			return nil, o.failMain(ctx, logCtx, documentID, "failed to dispatch generation", err)
		}
		return nil, err
	}

	status := models.StatusGenerating
	if latest := o.reread(ctx, logCtx, documentID); latest != nil {
		status = latest.Status
	}
	return &models.StartResponse{Status: status}, nil
}

// ProcessGeneration tailors the resume, renders it, and stores the result.
// Any failure is recorded on the document before the error is returned.
func (o *Orchestrator) ProcessGeneration(ctx context.Context, task models.GenerationTask) error {
	logCtx := slog.With("documentId", task.DocumentID, "ownerId", task.OwnerID, "flow", "generate")
	logCtx.Info("Starting resume tailoring.")

	tailored, err := o.generator.Tailor(ctx, task.ResumeText, task.JobText)
	if err != nil {
		return o.failMain(ctx, logCtx, task.DocumentID, "failed to tailor resume", err)
	}

	pdfPath, err := o.renderer.Render(ctx, task.OwnerID, task.DocumentID, tailored)
	if err != nil {
		return o.failMain(ctx, logCtx, task.DocumentID, "failed to render tailored resume", err)
	}

	text, err := tailored.JSON()
	if err != nil {
		return o.failMain(ctx, logCtx, task.DocumentID, "failed to encode tailored resume", err)
	}

	err = o.store.Update(ctx, task.DocumentID, map[string]interface{}{
		models.FieldStatus:             models.StatusGenerated,
		models.FieldTailoredText:       text,
		models.FieldTailoredResumeData: tailored,
		models.FieldPDFResultPath:      pdfPath,
		models.FieldError:              nil,
	})
	if err != nil {
		return o.failMain(ctx, logCtx, task.DocumentID, "failed to save generation result", err)
	}

	logCtx.Info("Resume tailoring complete.", "pdfResultPath", pdfPath)
	return nil
}
