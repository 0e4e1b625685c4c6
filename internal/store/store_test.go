package store

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"llmevalbench/internal/evaluator"
	"llmevalbench/internal/report"
)

func f64(v float64) *float64 { return &v }

func b(v bool) *bool { return &v }

func sampleRecords(runID string) []evaluator.Record {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return []evaluator.Record{
		{
			RunID: runID, ModelName: "model-a", ModelID: "anthropic.model-a",
			PromptID: "p1", Status: evaluator.StatusSuccess,
			LatencyMS: f64(812.5), InputTokens: 42, OutputTokens: 17,
			CostUSD: 0.000744, JSONValid: b(true), Timestamp: ts,
		},
		{
			RunID: runID, ModelName: "model-a", ModelID: "anthropic.model-a",
			PromptID: "p2", Status: evaluator.StatusError,
			Error: `throttled, "retry later"`, Timestamp: ts.Add(time.Second),
		},
		{
			RunID: runID, ModelName: "model-a", ModelID: "anthropic.model-a",
			PromptID: "p3", Status: evaluator.StatusCancelled,
			Timestamp: ts.Add(2 * time.Second),
		},
	}
}

func TestWriteAndReadRecords(t *testing.T) {
	s := New(t.TempDir())
	want := sampleRecords("run-1")

	path, err := s.WriteRecords("run-1", want)
	if err != nil {
		t.Fatalf("WriteRecords error: %v", err)
	}
	if filepath.Base(path) != RawMetricsFile {
		t.Errorf("Unexpected artifact path %q", path)
	}

	got, err := s.ReadRecords("run-1")
	if err != nil {
		t.Fatalf("ReadRecords error: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Expected %d records, got %d", len(want), len(got))
	}
	for i := range want {
		w, g := want[i], got[i]
		if g.RunID != w.RunID || g.ModelName != w.ModelName || g.PromptID != w.PromptID || g.Status != w.Status {
			t.Errorf("Record %d identity mismatch: %+v vs %+v", i, g, w)
		}
		if (g.LatencyMS == nil) != (w.LatencyMS == nil) {
			t.Errorf("Record %d latency presence mismatch", i)
		} else if g.LatencyMS != nil && *g.LatencyMS != *w.LatencyMS {
			t.Errorf("Record %d latency = %v, want %v", i, *g.LatencyMS, *w.LatencyMS)
		}
		if g.CostUSD != w.CostUSD || g.InputTokens != w.InputTokens || g.OutputTokens != w.OutputTokens {
			t.Errorf("Record %d metrics mismatch: %+v vs %+v", i, g, w)
		}
		if g.Error != w.Error {
			t.Errorf("Record %d error = %q, want %q", i, g.Error, w.Error)
		}
		if !g.Timestamp.Equal(w.Timestamp) {
			t.Errorf("Record %d timestamp = %v, want %v", i, g.Timestamp, w.Timestamp)
		}
	}

	if got[2].JSONValid != nil {
		t.Error("Expected empty json_valid to read back as nil")
	}
	if got[0].JSONValid == nil || !*got[0].JSONValid {
		t.Error("Expected json_valid=true to round-trip")
	}
}

func TestWriteRecords_Header(t *testing.T) {
	s := New(t.TempDir())
	path, err := s.WriteRecords("run-1", sampleRecords("run-1"))
	if err != nil {
		t.Fatalf("WriteRecords error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening artifact: %v", err)
	}
	defer f.Close()
	header, err := csv.NewReader(f).Read()
	if err != nil {
		t.Fatalf("reading header: %v", err)
	}
	if len(header) != 12 || header[0] != "run_id" || header[11] != "timestamp" {
		t.Errorf("Unexpected header: %v", header)
	}
}

func TestWriteComparison(t *testing.T) {
	s := New(t.TempDir())
	stats := []report.ModelStat{
		{
			ModelName: "model-a", Evaluations: 10, Successes: 9, Errors: 1,
			SuccessRate: f64(0.9), LatencyP50MS: f64(450),
			TotalInputTokens: 1080, AvgInputTokens: f64(120),
			TotalOutputTokens: 540, AvgOutputTokens: f64(60),
			TotalCostUSD: 0.0123,
		},
		{ModelName: "model-b", Evaluations: 10, Cancelled: 10},
	}

	path, err := s.WriteComparison("run-1", stats)
	if err != nil {
		t.Fatalf("WriteComparison error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening artifact: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][12] != "avg_input_tokens" || rows[0][13] != "avg_output_tokens" {
		t.Errorf("Unexpected header: %v", rows[0])
	}
	if rows[1][0] != "model-a" || rows[1][5] != "0.9" {
		t.Errorf("Unexpected model-a row: %v", rows[1])
	}
	if rows[1][10] != "1080" || rows[1][12] != "120" || rows[1][13] != "60" {
		t.Errorf("Unexpected model-a token columns: %v", rows[1])
	}
	if rows[2][5] != "" {
		t.Errorf("Expected empty success_rate for an all-cancelled model, got %q", rows[2][5])
	}
	if rows[2][12] != "" || rows[2][13] != "" {
		t.Errorf("Expected empty mean token columns for an all-cancelled model, got %v", rows[2])
	}
}

func TestListRunsAndDelete(t *testing.T) {
	s := New(t.TempDir())
	if _, err := s.WriteRecords("run-1", sampleRecords("run-1")); err != nil {
		t.Fatalf("WriteRecords error: %v", err)
	}
	if _, err := s.WriteRecords("run-2", sampleRecords("run-2")); err != nil {
		t.Fatalf("WriteRecords error: %v", err)
	}

	runs, err := s.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %v", runs)
	}

	if err := s.DeleteRun("run-1"); err != nil {
		t.Fatalf("DeleteRun error: %v", err)
	}
	runs, err = s.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns error: %v", err)
	}
	if len(runs) != 1 || runs[0] != "run-2" {
		t.Errorf("Expected only run-2 to remain, got %v", runs)
	}
}

func TestListRuns_MissingBaseDir(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "never-created"))
	runs, err := s.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns error: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("Expected no runs, got %v", runs)
	}
}
