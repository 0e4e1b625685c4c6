// Package store persists run artifacts as CSV files under a per-run
// directory: raw_metrics.csv with one row per record and
// model_comparison.csv with one row per model.
package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"llmevalbench/internal/evaluator"
	"llmevalbench/internal/report"
)

const (
	RawMetricsFile = "raw_metrics.csv"
	ComparisonFile = "model_comparison.csv"
)

var rawHeader = []string{
	"run_id", "model_name", "model_id", "prompt_id", "status",
	"latency_ms", "input_tokens", "output_tokens", "cost_usd",
	"json_valid", "error", "timestamp",
}

var comparisonHeader = []string{
	"model_name", "evaluations", "successes", "errors", "cancelled",
	"success_rate", "latency_mean_ms", "latency_p50_ms", "latency_p95_ms",
	"latency_p99_ms", "total_input_tokens", "total_output_tokens",
	"avg_input_tokens", "avg_output_tokens",
	"total_cost_usd", "avg_cost_usd", "json_valid_rate",
}

// Store writes and reads run artifacts under a base output directory.
type Store struct {
	dir string
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

// RunDir returns the artifact directory for a run.
func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.dir, runID)
}

// WriteRecords writes raw_metrics.csv for a run and returns its path.
func (s *Store) WriteRecords(runID string, records []evaluator.Record) (string, error) {
	path := filepath.Join(s.RunDir(runID), RawMetricsFile)
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.RunID,
			rec.ModelName,
			rec.ModelID,
			rec.PromptID,
			rec.Status,
			formatFloat(rec.LatencyMS),
			strconv.Itoa(rec.InputTokens),
			strconv.Itoa(rec.OutputTokens),
			strconv.FormatFloat(rec.CostUSD, 'f', -1, 64),
			formatBool(rec.JSONValid),
			rec.Error,
			rec.Timestamp.UTC().Format(time.RFC3339Nano),
		})
	}
	return path, s.writeCSV(path, rawHeader, rows)
}

// WriteComparison writes model_comparison.csv for a run and returns its
// path.
func (s *Store) WriteComparison(runID string, stats []report.ModelStat) (string, error) {
	path := filepath.Join(s.RunDir(runID), ComparisonFile)
	rows := make([][]string, 0, len(stats))
	for _, st := range stats {
		rows = append(rows, []string{
			st.ModelName,
			strconv.Itoa(st.Evaluations),
			strconv.Itoa(st.Successes),
			strconv.Itoa(st.Errors),
			strconv.Itoa(st.Cancelled),
			formatFloat(st.SuccessRate),
			formatFloat(st.LatencyMeanMS),
			formatFloat(st.LatencyP50MS),
			formatFloat(st.LatencyP95MS),
			formatFloat(st.LatencyP99MS),
			strconv.Itoa(st.TotalInputTokens),
			strconv.Itoa(st.TotalOutputTokens),
			formatFloat(st.AvgInputTokens),
			formatFloat(st.AvgOutputTokens),
			strconv.FormatFloat(st.TotalCostUSD, 'f', -1, 64),
			formatFloat(st.AvgCostUSD),
			formatFloat(st.JSONValidRate),
		})
	}
	return path, s.writeCSV(path, comparisonHeader, rows)
}

// ReadRecords loads a run's raw_metrics.csv back into records.
func (s *Store) ReadRecords(runID string) ([]evaluator.Record, error) {
	path := filepath.Join(s.RunDir(runID), RawMetricsFile)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	all, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%s: missing header", path)
	}

	records := make([]evaluator.Record, 0, len(all)-1)
	for i, row := range all[1:] {
		if len(row) != len(rawHeader) {
			return nil, fmt.Errorf("%s: row %d has %d fields, want %d", path, i+2, len(row), len(rawHeader))
		}
		rec := evaluator.Record{
			RunID:     row[0],
			ModelName: row[1],
			ModelID:   row[2],
			PromptID:  row[3],
			Status:    row[4],
			Error:     row[10],
		}
		if rec.LatencyMS, err = parseFloat(row[5]); err != nil {
			return nil, fmt.Errorf("%s: row %d: latency_ms: %w", path, i+2, err)
		}
		if rec.InputTokens, err = strconv.Atoi(row[6]); err != nil {
			return nil, fmt.Errorf("%s: row %d: input_tokens: %w", path, i+2, err)
		}
		if rec.OutputTokens, err = strconv.Atoi(row[7]); err != nil {
			return nil, fmt.Errorf("%s: row %d: output_tokens: %w", path, i+2, err)
		}
		if rec.CostUSD, err = strconv.ParseFloat(row[8], 64); err != nil {
			return nil, fmt.Errorf("%s: row %d: cost_usd: %w", path, i+2, err)
		}
		if rec.JSONValid, err = parseBool(row[9]); err != nil {
			return nil, fmt.Errorf("%s: row %d: json_valid: %w", path, i+2, err)
		}
		if rec.Timestamp, err = time.Parse(time.RFC3339Nano, row[11]); err != nil {
			return nil, fmt.Errorf("%s: row %d: timestamp: %w", path, i+2, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// ListRuns returns the run ids that have artifacts on disk.
func (s *Store) ListRuns() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var runs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.dir, e.Name(), RawMetricsFile)); err == nil {
			runs = append(runs, e.Name())
		}
	}
	return runs, nil
}

// DeleteRun removes a run's artifact directory.
func (s *Store) DeleteRun(runID string) error {
	return os.RemoveAll(s.RunDir(runID))
}

func (s *Store) writeCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	werr := w.Write(header)
	if werr == nil {
		werr = w.WriteAll(rows)
	}
	w.Flush()
	if werr == nil {
		werr = w.Error()
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	return werr
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatBool(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}

func parseFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseBool(s string) (*bool, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
