// Package pdf renders structured resumes to PDF and extracts text from
// uploaded PDFs.
package pdf

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"github.com/Lllllllleong/resumeflow/internal/models"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrRenderFailed marks any failure between the resume structure and a
// stored PDF.
var ErrRenderFailed = errors.New("render failed")

// ResultFolder is the top-level blob folder for generated PDFs.
const ResultFolder = "resumes"

//go:embed template.html
var templateHTML string

var resumeTemplate = template.Must(template.New("resume").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(templateHTML))

// Printer turns an HTML document into PDF bytes.
type Printer interface {
	PrintToPDF(ctx context.Context, html string) ([]byte, error)
}

// BlobSaver is the part of the blob store the renderer needs.
type BlobSaver interface {
	Save(ctx context.Context, path string, data []byte, contentType string) (string, error)
}

// Renderer produces the tailored PDF for a document and stores it.
type Renderer struct {
	printer  Printer
	blobs    BlobSaver
	optimize func([]byte) ([]byte, int, error)
	now      func() time.Time
}

func NewRenderer(printer Printer, blobs BlobSaver) *Renderer {
	return &Renderer{printer: printer, blobs: blobs, optimize: optimizePDF, now: time.Now}
}

// ResultPath is the blob path of a rendered PDF.
func ResultPath(ownerID, documentID string, at time.Time) string {
	return fmt.Sprintf("%s/%s/%s-tailored-%d.pdf", ResultFolder, ownerID, documentID, at.UnixMilli())
}

// Render prints resume to PDF, optimizes it and saves it, returning the
// blob path. It knows nothing about document status.
func (r *Renderer) Render(ctx context.Context, ownerID, documentID string, resume *models.Resume) (string, error) {
	logCtx := slog.With("documentId", documentID, "ownerId", ownerID)
	if resume == nil {
		return "", fmt.Errorf("%w: no resume to render", ErrRenderFailed)
	}

	var html bytes.Buffer
	if err := resumeTemplate.Execute(&html, resume); err != nil {
		return "", fmt.Errorf("%w: template: %v", ErrRenderFailed, err)
	}

	raw, err := r.printer.PrintToPDF(ctx, html.String())
	if err != nil {
		logCtx.Error("Failed to print resume HTML to PDF", "error", err)
		return "", fmt.Errorf("%w: print: %v", ErrRenderFailed, err)
	}

	optimized, pages, err := r.optimize(raw)
	if err != nil {
		logCtx.Error("Failed to validate/optimize rendered PDF", "error", err)
		return "", fmt.Errorf("%w: optimize: %v", ErrRenderFailed, err)
	}

	path := ResultPath(ownerID, documentID, r.now())
	saved, err := r.blobs.Save(ctx, path, optimized, "application/pdf")
	if err != nil {
		return "", fmt.Errorf("%w: save: %v", ErrRenderFailed, err)
	}
	logCtx.Info("Rendered resume PDF.", "path", saved, "pageCount", pages, "bytes", len(optimized))
	return saved, nil
}

// optimizePDF validates the printed PDF in relaxed mode, optimizes it and
// returns the result with its page count.
func optimizePDF(in []byte) ([]byte, int, error) {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed

	var out bytes.Buffer
	if err := api.Optimize(bytes.NewReader(in), &out, cfg); err != nil {
		return nil, 0, err
	}
	pages, err := api.PageCount(bytes.NewReader(out.Bytes()), cfg)
	if err != nil {
		return nil, 0, err
	}
	return out.Bytes(), pages, nil
}
