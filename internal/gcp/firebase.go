package gcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
)

// ErrUnauthenticated is returned when a request carries no valid Firebase
// ID token.
var ErrUnauthenticated = errors.New("unauthenticated")

// IDTokenVerifier matches *auth.Client so tests can stub it.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseAuthenticator resolves the calling user from the bearer Firebase
// ID token on a request.
type FirebaseAuthenticator struct {
	verifier IDTokenVerifier
}

// NewFirebaseAuth creates a Firebase Auth client for the given project. The
// SDK honours FIREBASE_AUTH_EMULATOR_HOST for local runs.
func NewFirebaseAuth(ctx context.Context, projectID string) (*auth.Client, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("failed to create firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firebase auth client: %w", err)
	}
	return client, nil
}

func NewFirebaseAuthenticator(verifier IDTokenVerifier) *FirebaseAuthenticator {
	return &FirebaseAuthenticator{verifier: verifier}
}

// RequesterID returns the Firebase UID of the caller.
func (a *FirebaseAuthenticator) RequesterID(r *http.Request) (string, error) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return "", fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
	}
	verified, err := a.verifier.VerifyIDToken(r.Context(), token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if verified.UID == "" {
		return "", fmt.Errorf("%w: token has no uid", ErrUnauthenticated)
	}
	return verified.UID, nil
}
