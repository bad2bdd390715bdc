package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/Lllllllleong/resumeflow/internal/models"
)

func TestStartParseOriginalReturnsCache(t *testing.T) {
	cached := resume("Cached")
	tests := []struct {
		name string
		doc  *models.Document
	}{
		{"initial original present", &models.Document{ID: "d1", OwnerID: "u1", ResumeText: `{"name":"x"}`, InitialOriginalResumeData: cached}},
		{"original with prose text", &models.Document{ID: "d1", OwnerID: "u1", ResumeText: "Jane Doe, engineer", OriginalResumeData: cached}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := &queuedDispatcher{}
			h := newHarness(queue, tt.doc)

			res, err := h.orch.StartParseOriginal(context.Background(), "d1", "u1")
			if err != nil {
				t.Fatalf("StartParseOriginal: %v", err)
			}
			if res.Status != models.ParseStatusParsed || res.Data != cached {
				t.Errorf("res = %+v", res)
			}
			if h.store.writeCount() != 0 || h.gen.callCount() != 0 || queue.count() != 0 {
				t.Errorf("writes=%d generator=%d dispatched=%d, want all 0", h.store.writeCount(), h.gen.callCount(), queue.count())
			}
		})
	}
}

func TestStartParseOriginalInline(t *testing.T) {
	doc := parsedDoc()
	doc.Status = models.StatusGenerated
	doc.ResumeText = "Jane Doe, engineer"
	h := newHarness(nil, doc)

	res, err := h.orch.StartParseOriginal(context.Background(), "d1", "u1")
	if err != nil {
		t.Fatalf("StartParseOriginal: %v", err)
	}
	if res.Status != models.ParseStatusParsed || res.Data == nil || res.Data.Name != "Parsed Jane Doe, engineer" {
		t.Errorf("res = %+v", res)
	}

	got := h.store.doc(t, "d1")
	if got.InitialOriginalResumeData == nil || got.OriginalResumeData == nil {
		t.Fatalf("original fields not written: %+v", got)
	}
	if got.OriginalParseStatus != models.ParseStatusParsed {
		t.Errorf("originalParseStatus = %q", got.OriginalParseStatus)
	}
	if got.Status != models.StatusGenerated {
		t.Errorf("main status changed to %q", got.Status)
	}

	// A second call is served from the cache.
	before := h.store.writeCount()
	if _, err := h.orch.StartParseOriginal(context.Background(), "d1", "u1"); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if h.store.writeCount() != before || h.gen.callCount() != 1 {
		t.Errorf("second call did work: writes %d->%d, generator calls %d", before, h.store.writeCount(), h.gen.callCount())
	}
}

func TestStartParseOriginalPrefersPDFOverJSONText(t *testing.T) {
	doc := parsedDoc()
	doc.ResumeText = `{"name":"Old"}`
	doc.PDFOriginalPath = "originals/u1/d1.pdf"
	doc.OriginalResumeData = resume("Old")
	h := newHarness(nil, doc)
	h.blobs["originals/u1/d1.pdf"] = []byte("Jane Doe from PDF")

	if _, err := h.orch.StartParseOriginal(context.Background(), "d1", "u1"); err != nil {
		t.Fatalf("StartParseOriginal: %v", err)
	}
	if h.extractor.calls != 1 {
		t.Errorf("extractor calls = %d, want 1", h.extractor.calls)
	}
	if len(h.gen.parsed) != 1 || h.gen.parsed[0] != "Jane Doe from PDF" {
		t.Errorf("parsed texts = %q", h.gen.parsed)
	}
	got := h.store.doc(t, "d1")
	if got.InitialOriginalResumeData == nil || got.InitialOriginalResumeData.Name != "Parsed Jane Doe from PDF" {
		t.Errorf("initialOriginalResumeData = %+v", got.InitialOriginalResumeData)
	}
	// originalResumeData was already set and is kept.
	if got.OriginalResumeData.Name != "Old" {
		t.Errorf("originalResumeData = %q, want first writer kept", got.OriginalResumeData.Name)
	}
}

func TestStartParseOriginalFailures(t *testing.T) {
	tests := []struct {
		name    string
		doc     *models.Document
		parse   func(string) (*models.Resume, error)
		wantErr error
	}{
		{
			name:    "no text and no pdf",
			doc:     &models.Document{ID: "d1", OwnerID: "u1", Status: models.StatusParsed},
			wantErr: ErrNoResumeText,
		},
		{
			name:    "parser fails",
			doc:     &models.Document{ID: "d1", OwnerID: "u1", Status: models.StatusParsed, ResumeText: "text"},
			parse:   func(string) (*models.Resume, error) { return nil, errors.New("model refused") },
			wantErr: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(nil, tt.doc)
			h.gen.parse = tt.parse

			_, err := h.orch.StartParseOriginal(context.Background(), "d1", "u1")
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			got := h.store.doc(t, "d1")
			if got.OriginalParseStatus != models.ParseStatusFailed || got.OriginalParseError == "" {
				t.Errorf("parse axis = %q/%q, want failed with message", got.OriginalParseStatus, got.OriginalParseError)
			}
			if got.Status != models.StatusParsed || got.Error != "" {
				t.Errorf("main axis touched: %q/%q", got.Status, got.Error)
			}
			if got.InitialOriginalResumeData != nil {
				t.Errorf("initialOriginalResumeData written on failure")
			}
		})
	}
}

func TestStartParseOriginalOwnership(t *testing.T) {
	h := newHarness(nil, parsedDoc())
	if _, err := h.orch.StartParseOriginal(context.Background(), "d1", "intruder"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("err = %v, want ErrAccessDenied", err)
	}
	if _, err := h.orch.StartParseOriginal(context.Background(), "missing", "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if h.store.writeCount() != 0 {
		t.Errorf("writes = %d, want 0", h.store.writeCount())
	}
}

func TestParseOriginalFirstWriterWins(t *testing.T) {
	queue := &queuedDispatcher{}
	h := newHarness(queue, parsedDoc())
	n := 0
	var mu sync.Mutex
	h.gen.parse = func(string) (*models.Resume, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return resume(fmt.Sprintf("Result %d", n)), nil
	}

	for i := 0; i < 2; i++ {
		res, err := h.orch.StartParseOriginal(context.Background(), "d1", "u1")
		if err != nil {
			t.Fatalf("StartParseOriginal #%d: %v", i, err)
		}
		if res.Status != models.ParseStatusParsing {
			t.Errorf("Status = %q, want parsing", res.Status)
		}
	}
	codes := queue.deliver(h.callbacks)
	if len(codes) != 2 || codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("codes = %v", codes)
	}

	got := h.store.doc(t, "d1")
	if got.InitialOriginalResumeData.Name != "Result 1" || got.OriginalResumeData.Name != "Result 1" {
		t.Errorf("originals = %q/%q, want the first result", got.InitialOriginalResumeData.Name, got.OriginalResumeData.Name)
	}
}

func TestParseOriginalConcurrentProcessing(t *testing.T) {
	h := newHarness(nil, parsedDoc())
	h.gen.parse = func(text string) (*models.Resume, error) { return resume(text), nil }

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			task := models.ParseOriginalTask{DocumentID: "d1", ResumeText: fmt.Sprintf("run %d", i), OwnerID: "u1"}
			if err := h.orch.ProcessParseOriginal(context.Background(), task); err != nil {
				t.Errorf("ProcessParseOriginal: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got := h.store.doc(t, "d1")
	if got.InitialOriginalResumeData == nil || got.InitialOriginalResumeData != got.OriginalResumeData {
		t.Errorf("both originals must come from the same winning run: %+v / %+v", got.InitialOriginalResumeData, got.OriginalResumeData)
	}
}
