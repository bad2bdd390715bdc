package models

// These structs define the JSON payloads carried by dispatched tasks and
// the responses returned to trigger callers.

// GenerationTask is the payload for the /tasks/generate callback.
type GenerationTask struct {
	DocumentID string `json:"documentId"`
	ResumeText string `json:"resumeText"`
	JobText    string `json:"jobText"`
	OwnerID    string `json:"ownerId"`
}

// ParseOriginalTask is the payload for the /tasks/parse-original callback.
type ParseOriginalTask struct {
	DocumentID string `json:"documentId"`
	ResumeText string `json:"resumeText"`
	OwnerID    string `json:"ownerId"`
}

// EditResumeTask is the payload for the /tasks/edit callback.
type EditResumeTask struct {
	DocumentID string `json:"documentId"`
	EditPrompt string `json:"editPrompt"`
	OwnerID    string `json:"ownerId"`
}

// StartResponse is returned by the generation and edit triggers.
type StartResponse struct {
	Status string `json:"status"`
}

// ParseOriginalResponse is returned by the parse-original trigger. Data is
// only set when a structured original is already available.
type ParseOriginalResponse struct {
	Status string  `json:"status"`
	Data   *Resume `json:"originalResumeData,omitempty"`
}

// EditRequest is the body accepted by the edit trigger.
type EditRequest struct {
	Prompt string `json:"prompt"`
}
