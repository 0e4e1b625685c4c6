// Package evaluator runs the model x prompt matrix and produces one record
// per pair. It owns concurrency, cancellation, and per-call metric capture;
// it never aggregates.
package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"time"

	"llmevalbench/internal/invoke"
	"llmevalbench/internal/prompts"
	"llmevalbench/internal/registry"
	"llmevalbench/internal/tokenizer"
)

// Record statuses.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// DefaultMaxInFlight bounds concurrent invocations when Options does not.
const DefaultMaxInFlight = 4

// Record is the outcome of one model/prompt pair. LatencyMS and JSONValid
// are nil when undefined: latency for non-success records, JSONValid for
// prompts that never expected JSON and for cancelled pairs.
type Record struct {
	RunID        string    `json:"runId"`
	ModelName    string    `json:"modelName"`
	ModelID      string    `json:"modelId"`
	PromptID     string    `json:"promptId"`
	Status       string    `json:"status"`
	LatencyMS    *float64  `json:"latencyMs,omitempty"`
	InputTokens  int       `json:"inputTokens"`
	OutputTokens int       `json:"outputTokens"`
	CostUSD      float64   `json:"costUsd"`
	JSONValid    *bool     `json:"jsonValid,omitempty"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Options configure one run.
type Options struct {
	RunID string

	// Models to evaluate. Empty means every registered model.
	Models []registry.ModelSpec

	// MaxInFlight bounds concurrent invocations across all models.
	MaxInFlight int

	// OnResult, when set, observes each record as it completes. Calls are
	// serialized; completion order is not record order.
	OnResult func(Record)
}

// Evaluator fans the prompt suite out over the configured models.
type Evaluator struct {
	reg    *registry.Registry
	client invoke.Client
}

func New(reg *registry.Registry, client invoke.Client) *Evaluator {
	return &Evaluator{reg: reg, client: client}
}

// Run evaluates every model/prompt pair and returns exactly
// len(models)*len(items) records in model-major, prompt-minor order,
// regardless of completion order or failures. On cancellation the records
// for pairs that never started carry StatusCancelled and ctx.Err() is
// returned alongside the full record set.
func (e *Evaluator) Run(ctx context.Context, opts Options, items []prompts.Item) ([]Record, error) {
	models := opts.Models
	if len(models) == 0 {
		models = e.reg.List()
	}
	maxInFlight := opts.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}

	records := make([]Record, len(models)*len(items))
	sem := make(chan struct{}, maxInFlight)
	var wg sync.WaitGroup
	var notifyMu sync.Mutex

	notify := func(rec Record) {
		if opts.OnResult == nil {
			return
		}
		notifyMu.Lock()
		defer notifyMu.Unlock()
		opts.OnResult(rec)
	}

	for mi, model := range models {
		for pi, item := range items {
			idx := mi*len(items) + pi

			// The select alone is not enough: when both cases are ready Go
			// picks one at random, so a cancelled context could still admit
			// new calls.
			if ctx.Err() != nil {
				records[idx] = cancelledRecord(opts.RunID, model, item)
				notify(records[idx])
				continue
			}

			select {
			case <-ctx.Done():
				records[idx] = cancelledRecord(opts.RunID, model, item)
				notify(records[idx])
				continue
			case sem <- struct{}{}:
			}

			wg.Add(1)
			go func(idx int, model registry.ModelSpec, item prompts.Item) {
				defer wg.Done()
				defer func() { <-sem }()
				records[idx] = e.evaluateOne(ctx, opts.RunID, model, item)
				notify(records[idx])
			}(idx, model, item)
		}
	}
	wg.Wait()

	return records, ctx.Err()
}

func (e *Evaluator) evaluateOne(ctx context.Context, runID string, model registry.ModelSpec, item prompts.Item) Record {
	rec := Record{
		RunID:     runID,
		ModelName: model.Name,
		ModelID:   model.ModelID,
		PromptID:  item.ID,
		Timestamp: time.Now().UTC(),
	}

	if ctx.Err() != nil {
		rec.Status = StatusCancelled
		return rec
	}

	start := time.Now()
	completion, err := e.client.Invoke(ctx, model, item.Prompt)
	elapsed := time.Since(start)

	if err != nil {
		// Clients are not obliged to wrap context.Canceled in their
		// errors; the context itself decides whether the pair was
		// unresolved at cancellation time.
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			rec.Status = StatusCancelled
			return rec
		}
		rec.Status = StatusError
		rec.Error = err.Error()
		if item.ExpectedJSON {
			rec.JSONValid = boolPtr(false)
		}
		return rec
	}

	rec.Status = StatusSuccess
	rec.LatencyMS = float64Ptr(roundTenth(float64(elapsed.Nanoseconds()) / 1e6))
	rec.InputTokens, _ = tokenizer.Count(model.Tokenizer, item.Prompt)
	rec.OutputTokens, _ = tokenizer.Count(model.Tokenizer, completion.Text)
	rec.CostUSD = tokenizer.Cost(rec.InputTokens, rec.OutputTokens, model.Pricing.InputPer1K, model.Pricing.OutputPer1K)
	if item.ExpectedJSON {
		rec.JSONValid = boolPtr(jsonValid(completion.Text))
	}
	return rec
}

func cancelledRecord(runID string, model registry.ModelSpec, item prompts.Item) Record {
	return Record{
		RunID:     runID,
		ModelName: model.Name,
		ModelID:   model.ModelID,
		PromptID:  item.ID,
		Status:    StatusCancelled,
		Timestamp: time.Now().UTC(),
	}
}

// jsonValid reports whether text is a well-formed JSON document with a
// top-level object or array. Scalars and fenced markdown do not count.
func jsonValid(text string) bool {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return false
	}
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

func boolPtr(b bool) *bool { return &b }

func float64Ptr(f float64) *float64 { return &f }
