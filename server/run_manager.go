package server

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"llmevalbench/internal/evaluator"
	"llmevalbench/internal/invoke"
	"llmevalbench/internal/prompts"
	"llmevalbench/internal/registry"
	"llmevalbench/internal/report"
	"llmevalbench/internal/store"
)

// Run represents one evaluation run with status tracking
type Run struct {
	ID          string
	Status      string // "running", "completed", "failed", "cancelled"
	Models      []string
	Completed   int
	Total       int
	Message     string
	Error       string
	CreatedAt   time.Time
	CompletedAt *time.Time
	Records     []evaluator.Record
	Summary     []report.ModelStat

	ctx    context.Context
	cancel context.CancelFunc
}

// RunManager owns the lifecycle of evaluation runs: creation, execution,
// progress broadcasting, cancellation, and persistence of artifacts.
type RunManager struct {
	reg    *registry.Registry
	client invoke.Client
	store  *store.Store

	runs      map[string]*Run
	listeners map[string][]chan *WebSocketMessage
	mutex     sync.RWMutex
}

// NewRunManager creates a run manager. The store may be nil, in which case
// runs are kept in memory only.
func NewRunManager(reg *registry.Registry, client invoke.Client, st *store.Store) *RunManager {
	return &RunManager{
		reg:       reg,
		client:    client,
		store:     st,
		runs:      make(map[string]*Run),
		listeners: make(map[string][]chan *WebSocketMessage),
	}
}

// StartRun validates the request, registers a new run, and starts its
// execution in the background.
func (rm *RunManager) StartRun(req RunRequest) (RunResponse, error) {
	models, err := rm.resolveModels(req.Models)
	if err != nil {
		return RunResponse{}, err
	}
	items, err := promptItems(req.Prompts)
	if err != nil {
		return RunResponse{}, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	rm.mutex.Lock()
	if _, exists := rm.runs[runID]; exists {
		rm.mutex.Unlock()
		return RunResponse{}, fmt.Errorf("run %q already exists", runID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := &Run{
		ID:        runID,
		Status:    "running",
		Models:    modelNames(models),
		Total:     len(models) * len(items),
		Message:   "Evaluation started",
		CreatedAt: time.Now().UTC(),
		ctx:       ctx,
		cancel:    cancel,
	}
	rm.runs[runID] = run
	resp := run.toResponse(false)
	rm.mutex.Unlock()

	AppLogger.InfoWithFields("Run started", map[string]interface{}{
		"runId":  runID,
		"models": len(models),
		"pairs":  run.Total,
	})

	go rm.execute(run, models, items, req.MaxInFlight)
	return resp, nil
}

// GetRun returns the state of one run
func (rm *RunManager) GetRun(runID string) (RunResponse, bool) {
	rm.mutex.RLock()
	defer rm.mutex.RUnlock()

	run, exists := rm.runs[runID]
	if !exists {
		return RunResponse{}, false
	}
	return run.toResponse(true), true
}

// GetRecords returns a run's raw records once the run has finished
func (rm *RunManager) GetRecords(runID string) ([]evaluator.Record, bool) {
	rm.mutex.RLock()
	defer rm.mutex.RUnlock()

	run, exists := rm.runs[runID]
	if !exists || run.Records == nil {
		return nil, false
	}
	records := make([]evaluator.Record, len(run.Records))
	copy(records, run.Records)
	return records, true
}

// GetSummary returns a run's per-model comparison once the run has finished
func (rm *RunManager) GetSummary(runID string) ([]report.ModelStat, bool) {
	rm.mutex.RLock()
	defer rm.mutex.RUnlock()

	run, exists := rm.runs[runID]
	if !exists || run.Summary == nil {
		return nil, false
	}
	return run.Summary, true
}

// ListRuns returns all known runs, newest first
func (rm *RunManager) ListRuns() []RunResponse {
	rm.mutex.RLock()
	defer rm.mutex.RUnlock()

	runs := make([]RunResponse, 0, len(rm.runs))
	for _, run := range rm.runs {
		runs = append(runs, run.toResponse(false))
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs
}

// CancelRun cancels a running run. In-flight invocations are abandoned and
// the pairs that never started are recorded as cancelled.
func (rm *RunManager) CancelRun(runID string) bool {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()

	run, exists := rm.runs[runID]
	if !exists {
		AppLogger.ErrorWithContext(&LogContext{RunID: runID}, "Run not found for cancellation")
		return false
	}
	if run.Status != "running" || run.cancel == nil {
		AppLogger.WarnWithContext(&LogContext{RunID: runID}, "Run cannot be cancelled (status: %s)", run.Status)
		return false
	}

	run.cancel()
	run.Status = "cancelled"
	run.Message = "Run cancelled by user"
	AppLogger.InfoWithContext(&LogContext{RunID: runID}, "Run cancelled")

	rm.broadcast(runID, NewCancellationMessage(runID, "Run cancelled by user"))
	return true
}

// DeleteRun removes a run and its persisted artifacts. A running run is
// cancelled first.
func (rm *RunManager) DeleteRun(runID string) bool {
	rm.mutex.Lock()
	run, exists := rm.runs[runID]
	if exists {
		if run.Status == "running" && run.cancel != nil {
			run.cancel()
		}
		delete(rm.runs, runID)
	}
	rm.mutex.Unlock()

	if !exists {
		return false
	}
	if rm.store != nil {
		if err := rm.store.DeleteRun(runID); err != nil {
			AppLogger.ErrorWithContext(&LogContext{RunID: runID}, "Failed to delete run artifacts: %v", err)
		}
	}
	return true
}

// execute runs the evaluation and finalizes the run state
func (rm *RunManager) execute(run *Run, models []registry.ModelSpec, items []prompts.Item, maxInFlight int) {
	ev := evaluator.New(rm.reg, rm.client)
	records, runErr := ev.Run(run.ctx, evaluator.Options{
		RunID:       run.ID,
		Models:      models,
		MaxInFlight: maxInFlight,
		OnResult: func(rec evaluator.Record) {
			rm.recordProgress(run.ID, rec)
		},
	}, items)

	summary := report.Aggregate(records).Rows()

	rm.mutex.Lock()
	run.Records = records
	run.Summary = summary
	now := time.Now().UTC()
	run.CompletedAt = &now
	if runErr != nil {
		// Cancellation: CancelRun already set the status and message.
		if run.Status == "running" {
			run.Status = "cancelled"
			run.Message = "Run cancelled"
		}
	} else {
		run.Status = "completed"
		run.Message = "Evaluation completed"
	}
	status := run.Status
	rm.mutex.Unlock()

	rm.persist(run.ID, records, summary)

	AppLogger.InfoWithFields("Run finished", map[string]interface{}{
		"runId":   run.ID,
		"status":  status,
		"records": len(records),
	})
	rm.broadcast(run.ID, NewCompletionMessage(run.ID, status, summary))
}

// recordProgress updates the completion counter and notifies listeners
func (rm *RunManager) recordProgress(runID string, rec evaluator.Record) {
	rm.mutex.Lock()
	run, exists := rm.runs[runID]
	if !exists {
		rm.mutex.Unlock()
		return
	}
	run.Completed++
	completed, total := run.Completed, run.Total
	rm.mutex.Unlock()

	rm.broadcast(runID, NewProgressMessage(runID, ProgressUpdate{
		RunID:     runID,
		Completed: completed,
		Total:     total,
		Record:    rec,
	}))
}

// persist writes the run artifacts when a store is configured
func (rm *RunManager) persist(runID string, records []evaluator.Record, summary []report.ModelStat) {
	if rm.store == nil {
		return
	}
	if _, err := rm.store.WriteRecords(runID, records); err != nil {
		AppLogger.ErrorWithContext(&LogContext{RunID: runID}, "Failed to persist records: %v", err)
	}
	if _, err := rm.store.WriteComparison(runID, summary); err != nil {
		AppLogger.ErrorWithContext(&LogContext{RunID: runID}, "Failed to persist comparison: %v", err)
	}
}

// RegisterListener registers a channel to receive run updates
func (rm *RunManager) RegisterListener(runID string, ch chan *WebSocketMessage) {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()
	rm.listeners[runID] = append(rm.listeners[runID], ch)
}

// UnregisterListener removes a channel from run updates
func (rm *RunManager) UnregisterListener(runID string, ch chan *WebSocketMessage) {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()

	// The channel is left open: a broadcast may have copied a reference
	// before the listener was removed.
	listeners := rm.listeners[runID]
	for i, c := range listeners {
		if c == ch {
			rm.listeners[runID] = append(listeners[:i], listeners[i+1:]...)
			break
		}
	}
	if len(rm.listeners[runID]) == 0 {
		delete(rm.listeners, runID)
	}
}

// broadcast sends a message to all listeners of a run
func (rm *RunManager) broadcast(runID string, msg *WebSocketMessage) {
	rm.mutex.RLock()
	listeners := make([]chan *WebSocketMessage, len(rm.listeners[runID]))
	copy(listeners, rm.listeners[runID])
	rm.mutex.RUnlock()

	for _, ch := range listeners {
		select {
		case ch <- msg:
		default:
			// Channel is full, skip this update
			AppLogger.WarnWithContext(&LogContext{RunID: runID}, "Listener channel full, skipping update")
		}
	}
}

func (rm *RunManager) resolveModels(names []string) ([]registry.ModelSpec, error) {
	if len(names) == 0 {
		return rm.reg.List(), nil
	}
	return rm.reg.Select(names)
}

func (run *Run) toResponse(includeSummary bool) RunResponse {
	resp := RunResponse{
		ID:          run.ID,
		Status:      run.Status,
		Models:      run.Models,
		Completed:   run.Completed,
		Total:       run.Total,
		Message:     run.Message,
		Error:       run.Error,
		CreatedAt:   run.CreatedAt,
		CompletedAt: run.CompletedAt,
	}
	if includeSummary {
		resp.Summary = run.Summary
	}
	return resp
}

func promptItems(inputs []PromptInput) ([]prompts.Item, error) {
	items := make([]prompts.Item, 0, len(inputs))
	seen := make(map[string]bool)
	for _, in := range inputs {
		if seen[in.ID] {
			return nil, fmt.Errorf("duplicate prompt id %q", in.ID)
		}
		seen[in.ID] = true
		items = append(items, prompts.Item{
			ID:           in.ID,
			Prompt:       in.Prompt,
			ExpectedJSON: in.ExpectedJSON,
			Category:     in.Category,
		})
	}
	return items, nil
}

func modelNames(models []registry.ModelSpec) []string {
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name
	}
	return names
}
