package server

import (
	"context"
	"testing"
	"time"

	"llmevalbench/internal/evaluator"
	"llmevalbench/internal/invoke"
	"llmevalbench/internal/registry"
	"llmevalbench/internal/store"
)

type fakeClient struct {
	fn func(ctx context.Context, model registry.ModelSpec, prompt string) (invoke.Completion, error)
}

func (f *fakeClient) Invoke(ctx context.Context, model registry.ModelSpec, prompt string) (invoke.Completion, error) {
	return f.fn(ctx, model, prompt)
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.Parse([]byte(`
models:
  - name: model-a
    provider: anthropic
    model_id: anthropic.model-a
  - name: model-b
    provider: meta
    model_id: meta.model-b
`))
	if err != nil {
		t.Fatalf("building test registry: %v", err)
	}
	return reg
}

func waitForRun(t *testing.T, rm *RunManager, runID string) RunResponse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		run, exists := rm.GetRun(runID)
		if !exists {
			t.Fatalf("run %q disappeared", runID)
		}
		if run.Status != "running" {
			return run
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run %q did not finish in time", runID)
	return RunResponse{}
}

func okClient() *fakeClient {
	return &fakeClient{fn: func(ctx context.Context, model registry.ModelSpec, prompt string) (invoke.Completion, error) {
		return invoke.Completion{Text: "fine"}, nil
	}}
}

func testRequest() RunRequest {
	return RunRequest{
		RunID: "run-1",
		Prompts: []PromptInput{
			{ID: "p1", Prompt: "Say something."},
			{ID: "p2", Prompt: "Say something else."},
		},
	}
}

func TestStartRun_Completes(t *testing.T) {
	rm := NewRunManager(testRegistry(t), okClient(), store.New(t.TempDir()))

	resp, err := rm.StartRun(testRequest())
	if err != nil {
		t.Fatalf("StartRun error: %v", err)
	}
	if resp.Status != "running" || resp.Total != 4 {
		t.Fatalf("Unexpected initial state: %+v", resp)
	}

	run := waitForRun(t, rm, "run-1")
	if run.Status != "completed" {
		t.Fatalf("Status = %q, want completed", run.Status)
	}
	if run.Completed != 4 {
		t.Errorf("Completed = %d, want 4", run.Completed)
	}
	if len(run.Summary) != 2 {
		t.Errorf("Expected a summary row per model, got %d", len(run.Summary))
	}

	records, ok := rm.GetRecords("run-1")
	if !ok || len(records) != 4 {
		t.Fatalf("Expected 4 records, got %d (ok=%v)", len(records), ok)
	}
}

func TestStartRun_PersistsArtifacts(t *testing.T) {
	st := store.New(t.TempDir())
	rm := NewRunManager(testRegistry(t), okClient(), st)

	if _, err := rm.StartRun(testRequest()); err != nil {
		t.Fatalf("StartRun error: %v", err)
	}
	waitForRun(t, rm, "run-1")

	records, err := st.ReadRecords("run-1")
	if err != nil {
		t.Fatalf("Expected persisted records: %v", err)
	}
	if len(records) != 4 {
		t.Errorf("Expected 4 persisted records, got %d", len(records))
	}
}

func TestStartRun_Validation(t *testing.T) {
	rm := NewRunManager(testRegistry(t), okClient(), nil)

	_, err := rm.StartRun(RunRequest{
		Models:  []string{"no-such-model"},
		Prompts: []PromptInput{{ID: "p1", Prompt: "x"}},
	})
	if err == nil {
		t.Error("Expected error for unknown model")
	}

	_, err = rm.StartRun(RunRequest{
		Prompts: []PromptInput{{ID: "p1", Prompt: "x"}, {ID: "p1", Prompt: "y"}},
	})
	if err == nil {
		t.Error("Expected error for duplicate prompt ids")
	}
}

func TestStartRun_DuplicateRunID(t *testing.T) {
	rm := NewRunManager(testRegistry(t), okClient(), nil)
	if _, err := rm.StartRun(testRequest()); err != nil {
		t.Fatalf("StartRun error: %v", err)
	}
	if _, err := rm.StartRun(testRequest()); err == nil {
		t.Error("Expected error for duplicate run id")
	}
	waitForRun(t, rm, "run-1")
}

func TestCancelRun(t *testing.T) {
	started := make(chan struct{}, 16)
	client := &fakeClient{fn: func(ctx context.Context, model registry.ModelSpec, prompt string) (invoke.Completion, error) {
		started <- struct{}{}
		<-ctx.Done()
		return invoke.Completion{}, ctx.Err()
	}}
	rm := NewRunManager(testRegistry(t), client, nil)

	req := testRequest()
	req.MaxInFlight = 1
	if _, err := rm.StartRun(req); err != nil {
		t.Fatalf("StartRun error: %v", err)
	}
	<-started

	if !rm.CancelRun("run-1") {
		t.Fatal("Expected CancelRun to succeed")
	}
	run := waitForRun(t, rm, "run-1")
	if run.Status != "cancelled" {
		t.Fatalf("Status = %q, want cancelled", run.Status)
	}

	// CancelRun flips the status immediately; the record set lands when
	// the run goroutine finishes.
	var records []evaluator.Record
	var ok bool
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if records, ok = rm.GetRecords("run-1"); ok {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !ok || len(records) != 4 {
		t.Fatalf("Expected the full record set after cancellation, got %d", len(records))
	}
	for _, rec := range records {
		if rec.Status != "cancelled" {
			t.Errorf("Record %s/%s status = %q, want cancelled", rec.ModelName, rec.PromptID, rec.Status)
		}
	}

	// A finished run cannot be cancelled again
	if rm.CancelRun("run-1") {
		t.Error("Expected CancelRun on a finished run to fail")
	}
}

func TestDeleteRun(t *testing.T) {
	st := store.New(t.TempDir())
	rm := NewRunManager(testRegistry(t), okClient(), st)

	if _, err := rm.StartRun(testRequest()); err != nil {
		t.Fatalf("StartRun error: %v", err)
	}
	waitForRun(t, rm, "run-1")

	if !rm.DeleteRun("run-1") {
		t.Fatal("Expected DeleteRun to succeed")
	}
	if _, exists := rm.GetRun("run-1"); exists {
		t.Error("Expected run to be gone after deletion")
	}
	if runs, _ := st.ListRuns(); len(runs) != 0 {
		t.Errorf("Expected artifacts to be deleted, found %v", runs)
	}
	if rm.DeleteRun("run-1") {
		t.Error("Expected DeleteRun of a missing run to fail")
	}
}

func TestRunProgressBroadcast(t *testing.T) {
	rm := NewRunManager(testRegistry(t), okClient(), nil)

	updates := make(chan *WebSocketMessage, 64)
	rm.RegisterListener("run-1", updates)
	defer rm.UnregisterListener("run-1", updates)

	if _, err := rm.StartRun(testRequest()); err != nil {
		t.Fatalf("StartRun error: %v", err)
	}

	waitForRun(t, rm, "run-1")

	var progress, complete int
	for {
		select {
		case msg := <-updates:
			switch msg.Type {
			case MessageTypeProgress:
				progress++
			case MessageTypeComplete:
				complete++
			}
			if complete > 0 {
				if progress == 0 {
					t.Error("Expected progress messages before completion")
				}
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Timed out waiting for completion message")
		}
	}
}
