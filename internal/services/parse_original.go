package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/resumeflow/internal/dispatch"
	"github.com/Lllllllleong/resumeflow/internal/generator"
	"github.com/Lllllllleong/resumeflow/internal/models"
)

// StartParseOriginal returns the cached structured original when there is
// one. Otherwise it resolves the text to parse, marks the parse axis as
// parsing, and dispatches the work. The main status is never touched.
func (o *Orchestrator) StartParseOriginal(ctx context.Context, documentID, requesterID string) (*models.ParseOriginalResponse, error) {
	logCtx := slog.With("documentId", documentID, "ownerId", requesterID, "flow", "parse-original")

	doc, err := o.loadOwned(ctx, documentID, requesterID)
	if err != nil {
		return nil, err
	}

	if doc.InitialOriginalResumeData != nil {
		logCtx.Info("Returning cached initial original resume.")
		return &models.ParseOriginalResponse{Status: models.ParseStatusParsed, Data: doc.InitialOriginalResumeData}, nil
	}
	if doc.OriginalResumeData != nil && !generator.IsJSONObject(doc.ResumeText) {
		logCtx.Info("Returning cached original resume.")
		return &models.ParseOriginalResponse{Status: models.ParseStatusParsed, Data: doc.OriginalResumeData}, nil
	}

	text, err := o.parseSource(ctx, doc)
	if err != nil {
		return nil, o.failParse(ctx, logCtx, documentID, "failed to resolve resume text", err)
	}

	err = o.store.Update(ctx, documentID, map[string]interface{}{
		models.FieldOriginalParseStatus: models.ParseStatusParsing,
		models.FieldOriginalParseError:  nil,
	})
	if err != nil {
		return nil, o.failParse(ctx, logCtx, documentID, "failed to set parse status to parsing", err)
	}

	task := models.ParseOriginalTask{DocumentID: documentID, ResumeText: text, OwnerID: doc.OwnerID}
	if err := o.dispatcher.Dispatch(ctx, dispatch.EndpointParseOriginal, task); err != nil {
		if errors.Is(err, dispatch.ErrDispatchFailed) {
			return nil, o.failParse(ctx, logCtx, documentID, "failed to dispatch original parse", err)
		}
		return nil, err
	}

	resp := &models.ParseOriginalResponse{Status: models.ParseStatusParsing}
	if latest := o.reread(ctx, logCtx, documentID); latest != nil {
		resp.Status = latest.OriginalParseStatus
		if latest.OriginalParseStatus == models.ParseStatusParsed {
			resp.Data = latest.InitialOriginalResumeData
		}
	}
	return resp, nil
}

// parseSource picks the text to parse. Stored text wins unless it is
// already JSON and the original PDF is available to read instead.
func (o *Orchestrator) parseSource(ctx context.Context, doc *models.Document) (string, error) {
	text := strings.TrimSpace(doc.ResumeText)
	if doc.PDFOriginalPath != "" && (text == "" || generator.IsJSONObject(text)) {
		extracted, err := o.resumeTextFromPDF(ctx, doc)
		if err != nil {
			return "", err
		}
		text = extracted
	}
	if text == "" {
		return "", ErrNoResumeText
	}
	return text, nil
}

// ProcessParseOriginal parses the original text and stores it. Both
// original fields are first-writer-wins, so a slower duplicate parse never
// replaces the first result.
func (o *Orchestrator) ProcessParseOriginal(ctx context.Context, task models.ParseOriginalTask) error {
	logCtx := slog.With("documentId", task.DocumentID, "ownerId", task.OwnerID, "flow", "parse-original")
	logCtx.Info("Starting original resume parse.")

	parsed, err := o.generator.Parse(ctx, task.ResumeText)
	if err != nil {
		return o.failParse(ctx, logCtx, task.DocumentID, "failed to parse original resume", err)
	}

	written, err := o.store.SetUnset(ctx, task.DocumentID,
		map[string]interface{}{
			models.FieldInitialOriginalResumeData: parsed,
			models.FieldOriginalResumeData:        parsed,
		},
		map[string]interface{}{
			models.FieldOriginalParseStatus: models.ParseStatusParsed,
			models.FieldOriginalParseError:  nil,
		})
	if err != nil {
		return o.failParse(ctx, logCtx, task.DocumentID, "failed to save parsed original", err)
	}

	if len(written) == 0 {
		logCtx.Info("Original resume already stored, keeping the earlier result.")
	} else {
		logCtx.Info("Original resume parse complete.", "written", written)
	}
	return nil
}
