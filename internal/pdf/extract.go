package pdf

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// FitzExtractor pulls the text layer out of a PDF with MuPDF.
type FitzExtractor struct{}

func NewFitzExtractor() *FitzExtractor { return &FitzExtractor{} }

// ExtractText returns the text of every page, separated by blank lines.
func (FitzExtractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var fullText strings.Builder
	for n := 0; n < doc.NumPage(); n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		pageText, err := doc.Text(n)
		if err != nil {
			return "", fmt.Errorf("page %d: failed to extract text: %w", n+1, err)
		}
		if pageText = strings.TrimSpace(pageText); pageText != "" {
			fullText.WriteString(pageText)
			fullText.WriteString("\n\n")
		}
	}

	result := strings.TrimSpace(fullText.String())
	slog.Info("Extracted PDF text.", "pageCount", doc.NumPage(), "chars", len(result))
	return result, nil
}
