package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/Lllllllleong/resumeflow/internal/dispatch"
	"github.com/Lllllllleong/resumeflow/internal/models"
	"github.com/Lllllllleong/resumeflow/internal/pdf"
)

// fakeStore is an in-memory DocumentStore that counts applied writes.
type fakeStore struct {
	mu     sync.Mutex
	docs   map[string]*models.Document
	writes int

	// updateErr, when set, is consulted before every Update.
	updateErr func(fields map[string]interface{}) error
	// beforeTransition runs inside Transition before the status is read.
	beforeTransition func(doc *models.Document)
}

func newFakeStore(docs ...*models.Document) *fakeStore {
	s := &fakeStore{docs: map[string]*models.Document{}}
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return s
}

func (s *fakeStore) Get(ctx context.Context, id string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (s *fakeStore) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		if err := s.updateErr(fields); err != nil {
			return err
		}
	}
	d, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("document %s not found", id)
	}
	applyFields(d, fields)
	s.writes++
	return nil
}

func (s *fakeStore) Transition(ctx context.Context, id, field string, allowedFrom []string, fields map[string]interface{}) (bool, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return false, "", fmt.Errorf("document %s not found", id)
	}
	if s.beforeTransition != nil {
		s.beforeTransition(d)
	}
	current := d.Status
	if field == models.FieldOriginalParseStatus {
		current = d.OriginalParseStatus
	}
	if !slices.Contains(allowedFrom, current) {
		return false, current, nil
	}
	applyFields(d, fields)
	s.writes++
	return true, current, nil
}

func (s *fakeStore) SetUnset(ctx context.Context, id string, unsetOnly, always map[string]interface{}) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s not found", id)
	}
	fields := map[string]interface{}{}
	var written []string
	for k, v := range unsetOnly {
		if isUnset(d, k) {
			fields[k] = v
			written = append(written, k)
		}
	}
	for k, v := range always {
		fields[k] = v
	}
	applyFields(d, fields)
	s.writes++
	slices.Sort(written)
	return written, nil
}

func (s *fakeStore) doc(t *testing.T, id string) models.Document {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		t.Fatalf("document %s missing", id)
	}
	return *d
}

func (s *fakeStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func isUnset(d *models.Document, field string) bool {
	switch field {
	case models.FieldInitialOriginalResumeData:
		return d.InitialOriginalResumeData == nil
	case models.FieldOriginalResumeData:
		return d.OriginalResumeData == nil
	}
	panic("isUnset: unsupported field " + field)
}

func applyFields(d *models.Document, fields map[string]interface{}) {
	str := func(v interface{}) string {
		if v == nil {
			return ""
		}
		return v.(string)
	}
	res := func(v interface{}) *models.Resume {
		if v == nil {
			return nil
		}
		return v.(*models.Resume)
	}
	for k, v := range fields {
		switch k {
		case models.FieldStatus:
			d.Status = str(v)
		case models.FieldError:
			d.Error = str(v)
		case models.FieldResumeText:
			d.ResumeText = str(v)
		case models.FieldOriginalResumeData:
			d.OriginalResumeData = res(v)
		case models.FieldInitialOriginalResumeData:
			d.InitialOriginalResumeData = res(v)
		case models.FieldOriginalParseStatus:
			d.OriginalParseStatus = str(v)
		case models.FieldOriginalParseError:
			d.OriginalParseError = str(v)
		case models.FieldTailoredResumeData:
			d.TailoredResumeData = res(v)
		case models.FieldTailoredText:
			d.TailoredText = str(v)
		case models.FieldPDFResultPath:
			d.PDFResultPath = str(v)
		default:
			panic("applyFields: unsupported field " + k)
		}
	}
}

// fakeGenerator records calls and delegates to per-operation funcs.
type fakeGenerator struct {
	mu         sync.Mutex
	tailor     func(resumeText, jobText string) (*models.Resume, error)
	parse      func(resumeText string) (*models.Resume, error)
	edit       func(r *models.Resume, instruction string) (*models.Resume, error)
	calls      int
	parsed     []string
	editInputs []*models.Resume
	editPrompt string
}

func (g *fakeGenerator) Tailor(ctx context.Context, resumeText, jobText string) (*models.Resume, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if g.tailor == nil {
		return resume("Tailored " + resumeText), nil
	}
	return g.tailor(resumeText, jobText)
}

func (g *fakeGenerator) Parse(ctx context.Context, resumeText string) (*models.Resume, error) {
	g.mu.Lock()
	g.calls++
	g.parsed = append(g.parsed, resumeText)
	g.mu.Unlock()
	if g.parse == nil {
		return resume("Parsed " + resumeText), nil
	}
	return g.parse(resumeText)
}

func (g *fakeGenerator) Edit(ctx context.Context, r *models.Resume, instruction string) (*models.Resume, error) {
	g.mu.Lock()
	g.calls++
	g.editInputs = append(g.editInputs, r)
	g.editPrompt = instruction
	g.mu.Unlock()
	if g.edit == nil {
		edited := *r
		edited.Summary = instruction
		return &edited, nil
	}
	return g.edit(r, instruction)
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// fakeRenderer returns the real result path for a fixed clock.
type fakeRenderer struct {
	mu       sync.Mutex
	err      error
	rendered []*models.Resume
}

var renderTime = time.UnixMilli(123)

func (r *fakeRenderer) Render(ctx context.Context, ownerID, documentID string, resume *models.Resume) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rendered = append(r.rendered, resume)
	if r.err != nil {
		return "", fmt.Errorf("%w: %v", pdf.ErrRenderFailed, r.err)
	}
	return pdf.ResultPath(ownerID, documentID, renderTime), nil
}

type fakeBlobs map[string][]byte

func (b fakeBlobs) Download(ctx context.Context, path string) ([]byte, error) {
	data, ok := b[path]
	if !ok {
		return nil, fmt.Errorf("object %s not found", path)
	}
	return data, nil
}

// fakeExtractor treats the PDF bytes as their own text.
type fakeExtractor struct{ calls int }

func (e *fakeExtractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	e.calls++
	if len(data) == 0 {
		return "", errors.New("empty pdf")
	}
	return string(data), nil
}

// queuedDispatcher holds tasks until deliver posts them to the callback
// handler, the way a queue would.
type queuedDispatcher struct {
	mu      sync.Mutex
	pending []queuedTask
	err     error
}

type queuedTask struct {
	endpoint dispatch.Endpoint
	body     []byte
}

func (q *queuedDispatcher) Dispatch(ctx context.Context, endpoint dispatch.Endpoint, payload interface{}) error {
	if q.err != nil {
		return fmt.Errorf("%w: create task: %v", dispatch.ErrDispatchFailed, q.err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, queuedTask{endpoint: endpoint, body: body})
	return nil
}

func (q *queuedDispatcher) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// deliver posts every pending task and returns the response codes.
func (q *queuedDispatcher) deliver(h http.Handler) []int {
	q.mu.Lock()
	tasks := q.pending
	q.pending = nil
	q.mu.Unlock()

	var codes []int
	for _, task := range tasks {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, string(task.endpoint), bytes.NewReader(task.body)))
		codes = append(codes, rec.Code)
	}
	return codes
}

type allowAll struct{}

func (allowAll) Verify(ctx context.Context, r *http.Request) error { return nil }

type harness struct {
	store     *fakeStore
	gen       *fakeGenerator
	renderer  *fakeRenderer
	blobs     fakeBlobs
	extractor *fakeExtractor
	queue     *queuedDispatcher
	callbacks http.Handler
	orch      *Orchestrator
}

// newHarness wires an orchestrator over fakes. A nil queue means inline
// dispatch.
func newHarness(queue *queuedDispatcher, docs ...*models.Document) *harness {
	h := &harness{
		store:     newFakeStore(docs...),
		gen:       &fakeGenerator{},
		renderer:  &fakeRenderer{},
		blobs:     fakeBlobs{},
		extractor: &fakeExtractor{},
		queue:     queue,
	}
	registry := dispatch.NewRegistry()
	var d dispatch.Dispatcher = dispatch.NewInline(registry)
	if queue != nil {
		d = queue
	}
	h.orch = NewOrchestrator(h.store, h.blobs, h.gen, h.renderer, h.extractor, d)
	h.orch.RegisterHandlers(registry)
	h.callbacks = dispatch.NewCallbackHandler(allowAll{}, registry)
	return h
}

func resume(name string) *models.Resume {
	return &models.Resume{
		Name:       name,
		Contact:    models.Contact{Email: "a@example.com"},
		Skills:     []string{"Go"},
		Experience: []models.Experience{{Company: "Acme", Title: "Engineer", Bullets: []string{"Built things"}}},
		Education:  []models.Education{{Institution: "ANU"}},
	}
}

func parsedDoc() *models.Document {
	return &models.Document{
		ID:         "d1",
		OwnerID:    "u1",
		Status:     models.StatusParsed,
		ResumeText: "R",
		JobText:    "J",
	}
}
