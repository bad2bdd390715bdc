// Package dispatch runs units of work either in-process or through an
// external queue that calls back into the service over authenticated HTTP.
// Both paths end in the same registered Handler.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Endpoint is the callback path a unit of work is addressed to.
type Endpoint string

const (
	EndpointGenerate      Endpoint = "/tasks/generate"
	EndpointParseOriginal Endpoint = "/tasks/parse-original"
	EndpointEdit          Endpoint = "/tasks/edit"
)

// Mode selects the dispatcher at deployment time.
type Mode string

const (
	ModeInline    Mode = "inline"
	ModeTasks     Mode = "tasks"
	ModeWorkflows Mode = "workflows"
)

// ParseMode validates a DISPATCH_MODE value.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeInline, ModeTasks, ModeWorkflows:
		return m, nil
	case "":
		return ModeInline, nil
	default:
		return "", fmt.Errorf("unknown dispatch mode %q", s)
	}
}

// ErrDispatchFailed marks a failure to hand work to the queue. It never
// wraps an error from the work itself.
var ErrDispatchFailed = errors.New("dispatch failed")

// Handler executes one unit of work from its JSON body.
type Handler func(ctx context.Context, body []byte) error

// Dispatcher runs or schedules the handler registered for an endpoint.
type Dispatcher interface {
	Dispatch(ctx context.Context, endpoint Endpoint, payload interface{}) error
}

// Registry maps endpoints to handlers. It is filled once at start-up and
// shared by the inline dispatcher and the callback handler.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Endpoint]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Endpoint]Handler)}
}

func (r *Registry) Register(endpoint Endpoint, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[endpoint] = h
}

func (r *Registry) Lookup(endpoint Endpoint) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[endpoint]
	return h, ok
}

// JSONHandler adapts a typed process function to a Handler.
func JSONHandler[T any](fn func(ctx context.Context, payload T) error) Handler {
	return func(ctx context.Context, body []byte) error {
		var payload T
		if err := json.Unmarshal(body, &payload); err != nil {
			return &BadPayloadError{Err: err}
		}
		return fn(ctx, payload)
	}
}

// BadPayloadError is returned by JSONHandler when the body does not decode.
type BadPayloadError struct {
	Err error
}

func (e *BadPayloadError) Error() string { return "bad task payload: " + e.Err.Error() }
func (e *BadPayloadError) Unwrap() error { return e.Err }

// PermanentError marks a task failure that no redelivery can fix. The
// callback handler acknowledges it instead of asking the queue to retry.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent task failure: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err in a PermanentError.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}
