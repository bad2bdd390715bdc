package models

import "time"

// Main pipeline statuses stored in Document.Status.
const (
	StatusUploaded   = "uploaded"
	StatusParsed     = "parsed"
	StatusGenerating = "generating"
	StatusGenerated  = "generated"
	StatusFailed     = "failed"
)

// Original-resume parse statuses stored in Document.OriginalParseStatus.
const (
	ParseStatusParsing = "parsing"
	ParseStatusParsed  = "parsed"
	ParseStatusFailed  = "failed"
)

// Firestore field paths written by the orchestrator. Keep in sync with the
// firestore tags on Document.
const (
	FieldOwnerID                   = "ownerId"
	FieldStatus                    = "status"
	FieldResumeText                = "resumeText"
	FieldJobText                   = "jobText"
	FieldOriginalResumeData        = "originalResumeData"
	FieldInitialOriginalResumeData = "initialOriginalResumeData"
	FieldOriginalParseStatus       = "originalParseStatus"
	FieldOriginalParseError        = "originalParseError"
	FieldTailoredResumeData        = "tailoredResumeData"
	FieldTailoredText              = "tailoredText"
	FieldPDFOriginalPath           = "pdfOriginalPath"
	FieldPDFResultPath             = "pdfResultPath"
	FieldError                     = "error"
	FieldUpdatedAt                 = "updatedAt"
)

// Document is one resume-tailoring job and its lifecycle in Firestore.
// The intake flow creates it; the orchestrator only ever patches fields.
type Document struct {
	ID                        string    `firestore:"-"`
	OwnerID                   string    `firestore:"ownerId"`
	Status                    string    `firestore:"status"`
	ResumeText                string    `firestore:"resumeText,omitempty"`
	JobText                   string    `firestore:"jobText,omitempty"`
	OriginalResumeData        *Resume   `firestore:"originalResumeData,omitempty"`
	InitialOriginalResumeData *Resume   `firestore:"initialOriginalResumeData,omitempty"`
	OriginalParseStatus       string    `firestore:"originalParseStatus,omitempty"`
	OriginalParseError        string    `firestore:"originalParseError,omitempty"`
	TailoredResumeData        *Resume   `firestore:"tailoredResumeData,omitempty"`
	TailoredText              string    `firestore:"tailoredText,omitempty"`
	PDFOriginalPath           string    `firestore:"pdfOriginalPath,omitempty"`
	PDFResultPath             string    `firestore:"pdfResultPath,omitempty"`
	Error                     string    `firestore:"error,omitempty"`
	CreatedAt                 time.Time `firestore:"createdAt,omitempty"`
	UpdatedAt                 time.Time `firestore:"updatedAt,omitempty"`
}
