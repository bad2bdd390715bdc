package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Inline runs the handler in the calling goroutine and returns its error
// unchanged. The payload goes through the same JSON encoding a queued task
// would, so both strategies feed handlers identical input.
type Inline struct {
	registry *Registry
}

func NewInline(registry *Registry) *Inline {
	return &Inline{registry: registry}
}

func (d *Inline) Dispatch(ctx context.Context, endpoint Endpoint, payload interface{}) error {
	h, ok := d.registry.Lookup(endpoint)
	if !ok {
		return fmt.Errorf("%w: no handler registered for %s", ErrDispatchFailed, endpoint)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: encode payload: %v", ErrDispatchFailed, err)
	}
	slog.Info("Running task inline.", "endpoint", string(endpoint))
	return h(ctx, body)
}
