package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/api/idtoken"
)

// ErrUnauthenticated is returned by a Verifier for any rejected token.
var ErrUnauthenticated = errors.New("unauthenticated callback")

// Verifier authenticates a callback request before any work runs.
type Verifier interface {
	Verify(ctx context.Context, r *http.Request) error
}

// TokenValidator matches idtoken.Validator so tests can stub it.
type TokenValidator interface {
	Validate(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)
}

// OIDCVerifier accepts a bearer Google ID token whose audience is the
// service URL and whose verified email is the queue's service account.
type OIDCVerifier struct {
	validator      TokenValidator
	audience       string
	serviceAccount string
}

func NewOIDCVerifier(validator TokenValidator, target CallbackTarget) *OIDCVerifier {
	return &OIDCVerifier{
		validator:      validator,
		audience:       target.audience(),
		serviceAccount: target.ServiceAccount,
	}
}

func (v *OIDCVerifier) Verify(ctx context.Context, r *http.Request) error {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
	}

	payload, err := v.validator.Validate(ctx, token, v.audience)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if payload.Audience != v.audience {
		return fmt.Errorf("%w: audience %q", ErrUnauthenticated, payload.Audience)
	}
	email, _ := payload.Claims["email"].(string)
	if email != v.serviceAccount {
		return fmt.Errorf("%w: signer %q", ErrUnauthenticated, email)
	}
	if verified, _ := payload.Claims["email_verified"].(bool); !verified {
		return fmt.Errorf("%w: email not verified", ErrUnauthenticated)
	}
	return nil
}

// CallbackHandler serves queued work. Requests are authenticated first,
// then routed by path to the registered handler. A handler error yields a
// 500 so the queue can retry, unless it is a PermanentError, which is
// acknowledged with a 204.
type CallbackHandler struct {
	verifier Verifier
	registry *Registry
}

func NewCallbackHandler(verifier Verifier, registry *Registry) *CallbackHandler {
	return &CallbackHandler{verifier: verifier, registry: registry}
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logCtx := slog.With("path", r.URL.Path, "dispatchId", r.Header.Get(HeaderDispatchID))

	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.verifier.Verify(r.Context(), r); err != nil {
		logCtx.Warn("Rejected callback", "error", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	handler, ok := h.registry.Lookup(Endpoint(r.URL.Path))
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Bad Request: could not read body", http.StatusBadRequest)
		return
	}

	if err := handler(r.Context(), body); err != nil {
		var bad *BadPayloadError
		if errors.As(err, &bad) {
			logCtx.Warn("Could not decode task payload", "error", err)
			http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
			return
		}
		var permanent *PermanentError
		if errors.As(err, &permanent) {
			// Cloud Tasks redelivers on any non-2xx response.
			logCtx.Warn("Dropping task that cannot succeed", "error", err)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		// The failure state is already persisted by the handler.
		logCtx.Error("Task processing failed", "error", err)
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
