// Package invoke is the single boundary through which model calls leave the
// process. Everything above it works with Completion values and classified
// errors; nothing above it touches provider SDKs.
package invoke

import (
	"context"
	"fmt"

	"llmevalbench/internal/registry"
)

// Error kinds. Classification is best-effort; anything the provider layer
// cannot recognize is KindUnknown.
const (
	KindTimeout           = "timeout"
	KindThrottled         = "throttled"
	KindAuth              = "auth"
	KindMalformedResponse = "malformed_response"
	KindUnknown           = "unknown"
)

// Error is a classified invocation failure.
type Error struct {
	Kind  string
	Model string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("invoke %s: %s: %v", e.Model, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Usage is the provider-reported token accounting, when the provider
// returns one. Metrics recompute tokens locally for cross-provider
// comparability; this is kept for diagnostics only.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Completion is a successful model response.
type Completion struct {
	Text  string
	Usage *Usage
}

// Client issues one model invocation. One call is one logical request; no
// retries happen below this interface, so the caller's latency measurement
// covers exactly one round trip.
type Client interface {
	Invoke(ctx context.Context, model registry.ModelSpec, prompt string) (Completion, error)
}
