package services

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Lllllllleong/resumeflow/internal/models"
)

// Authenticator resolves the calling user of a trigger request.
type Authenticator interface {
	RequesterID(r *http.Request) (string, error)
}

// TriggerHandler is the user-facing HTTP surface over the Start* methods.
type TriggerHandler struct {
	orchestrator *Orchestrator
	auth         Authenticator
	mux          *http.ServeMux
}

func NewTriggerHandler(orchestrator *Orchestrator, auth Authenticator) *TriggerHandler {
	h := &TriggerHandler{orchestrator: orchestrator, auth: auth, mux: http.NewServeMux()}
	h.mux.HandleFunc("POST /documents/{id}/generate", h.generate)
	h.mux.HandleFunc("POST /documents/{id}/parse-original", h.parseOriginal)
	h.mux.HandleFunc("POST /documents/{id}/edit", h.edit)
	return h
}

func (h *TriggerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *TriggerHandler) requester(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid, err := h.auth.RequesterID(r)
	if err != nil {
		slog.Warn("Rejected trigger request", "path", r.URL.Path, "error", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return "", false
	}
	return uid, true
}

func (h *TriggerHandler) generate(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.requester(w, r)
	if !ok {
		return
	}
	res, err := h.orchestrator.StartGeneration(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *TriggerHandler) parseOriginal(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.requester(w, r)
	if !ok {
		return
	}
	res, err := h.orchestrator.StartParseOriginal(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *TriggerHandler) edit(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.requester(w, r)
	if !ok {
		return
	}
	var req models.EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}
	res, err := h.orchestrator.StartEditResume(r.Context(), r.PathValue("id"), req.Prompt, uid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var invalid *InvalidStateError
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAccessDenied):
		return http.StatusForbidden
	case errors.As(err, &invalid):
		return http.StatusConflict
	case errors.Is(err, ErrEmptyPrompt):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		slog.Error("Trigger failed", "path", r.URL.Path, "error", err)
		http.Error(w, "Internal Server Error: processing failed", code)
		return
	}
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
