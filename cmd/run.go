package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"llmevalbench/internal/evaluator"
	"llmevalbench/internal/invoke"
	"llmevalbench/internal/report"
	"llmevalbench/internal/store"
)

// run executes the evaluation and writes the run artifacts. A nil bar
// disables progress reporting.
func (er *EvalRun) run(bar *progressbar.ProgressBar) (*RunResult, error) {
	runID := er.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	// Ctrl-C cancels in-flight work; pairs that never started are
	// recorded as cancelled and partial artifacts are still written.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := invoke.NewMux(er.Registry)
	ev := evaluator.New(er.Registry, client)

	opts := evaluator.Options{
		RunID:       runID,
		Models:      er.Models,
		MaxInFlight: er.Concurrency,
	}
	if bar != nil {
		opts.OnResult = func(evaluator.Record) { bar.Add(1) }
	}

	records, runErr := ev.Run(ctx, opts, er.Items)
	if bar != nil {
		bar.Finish()
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, "\nEvaluation cancelled, writing partial results")
	}

	result := &RunResult{
		RunID:   runID,
		Prompts: len(er.Items),
		Records: records,
	}
	for _, m := range er.Models {
		result.Models = append(result.Models, m.Name)
	}

	st := store.New(er.OutDir)
	path, err := st.WriteRecords(runID, records)
	if err != nil {
		return nil, fmt.Errorf("writing records: %w", err)
	}
	result.Artifacts = append(result.Artifacts, path)

	if !er.SkipReport {
		result.Summary = report.Aggregate(records).Rows()
		path, err := st.WriteComparison(runID, result.Summary)
		if err != nil {
			return nil, fmt.Errorf("writing comparison: %w", err)
		}
		result.Artifacts = append(result.Artifacts, path)
	}

	return result, nil
}

// runCli executes the evaluation with a progress bar and prints a summary
// table.
func (er *EvalRun) runCli() error {
	total := len(er.Models) * len(er.Items)
	fmt.Printf("Evaluating %d models over %d prompts (%d pairs)\n", len(er.Models), len(er.Items), total)

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Evaluating"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("pairs"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)

	result, err := er.run(bar)
	if err != nil {
		return err
	}

	fmt.Println()
	if !er.SkipReport {
		printSummaryTable(result.Summary)
	}
	for _, artifact := range result.Artifacts {
		fmt.Printf("Wrote %s\n", artifact)
	}
	return nil
}

// printSummaryTable prints the per-model comparison
func printSummaryTable(summary []report.ModelStat) {
	if len(summary) == 0 {
		return
	}

	fmt.Printf("%-24s %6s %6s %6s %9s %9s %9s %9s %12s %7s\n",
		"MODEL", "EVALS", "OK", "ERR", "SUCCESS", "P50(ms)", "P95(ms)", "P99(ms)", "COST($)", "JSON")
	for _, st := range summary {
		fmt.Printf("%-24s %6d %6d %6d %9s %9s %9s %9s %12s %7s\n",
			st.ModelName,
			st.Evaluations,
			st.Successes,
			st.Errors,
			fmtRate(st.SuccessRate),
			fmtFloat(st.LatencyP50MS, 1),
			fmtFloat(st.LatencyP95MS, 1),
			fmtFloat(st.LatencyP99MS, 1),
			strconv.FormatFloat(st.TotalCostUSD, 'f', 6, 64),
			fmtRate(st.JSONValidRate),
		)
	}
	fmt.Println()
}

func fmtFloat(v *float64, prec int) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}

func fmtRate(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v*100, 'f', 1, 64) + "%"
}
