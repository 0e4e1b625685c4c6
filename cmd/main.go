package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"llmevalbench/internal/cwlogs"
	"llmevalbench/internal/prompts"
	"llmevalbench/internal/registry"
)

func main() {
	configPath := pflag.StringP("config", "c", "models.yaml", "Path to the model configuration file")
	promptsPath := pflag.StringP("prompts", "p", "", "Path to the prompt suite CSV")
	fromLogs := pflag.String("from-logs", "", "Path to a CloudWatch log export to replay instead of a prompt suite")
	modelsStr := pflag.StringP("models", "m", "", "Comma-separated subset of configured models to evaluate")
	limit := pflag.IntP("limit", "l", 0, "Evaluate at most this many prompts (0 = all)")
	runID := pflag.String("run-id", "", "Run identifier (generated when empty)")
	outDir := pflag.StringP("out", "o", "results", "Output directory for run artifacts")
	concurrency := pflag.IntP("concurrency", "j", 4, "Maximum number of in-flight invocations")
	skipReport := pflag.Bool("skip-report", false, "Skip the per-model comparison report")
	format := pflag.StringP("format", "f", "", "Machine-readable output format: json or yaml")
	help := pflag.BoolP("help", "h", false, "Show this help message")
	pflag.Parse()

	if *help {
		fmt.Printf("Usage of %s:\n", os.Args[0])
		pflag.PrintDefaults()
		os.Exit(0)
	}

	reg, err := registry.Load(*configPath)
	if err != nil {
		log.Fatalf("Invalid model configuration: %v", err)
	}

	run := EvalRun{
		Registry:    reg,
		RunID:       *runID,
		OutDir:      *outDir,
		Concurrency: *concurrency,
		SkipReport:  *skipReport,
	}

	// Select the models to evaluate
	if *modelsStr != "" && *modelsStr != "all" {
		names := strings.Split(*modelsStr, ",")
		for i := range names {
			names[i] = strings.TrimSpace(names[i])
		}
		run.Models, err = reg.Select(names)
		if err != nil {
			log.Fatalf("Invalid model selection: %v", err)
		}
	} else {
		run.Models = reg.List()
	}

	// Load the prompt suite, either from a CSV or a log export
	switch {
	case *fromLogs != "":
		data, err := os.ReadFile(*fromLogs)
		if err != nil {
			log.Fatalf("Error reading log export: %v", err)
		}
		res, err := cwlogs.NewParser(reg).Parse(data)
		if err != nil {
			log.Fatalf("Error parsing log export: %v", err)
		}
		if res.Skipped > 0 {
			fmt.Fprintf(os.Stderr, "Skipped %d unusable log entries\n", res.Skipped)
		}
		run.Items = cwlogs.PromptItems(res.Entries)
		if len(run.Items) == 0 {
			log.Fatalf("No usable prompts recovered from %s", *fromLogs)
		}
	case *promptsPath != "":
		run.Items, err = prompts.Load(*promptsPath)
		if err != nil {
			log.Fatalf("Error loading prompts: %v", err)
		}
	default:
		log.Fatalf("--prompts or --from-logs is required")
	}
	run.Items = prompts.Limit(run.Items, *limit)

	if *format == "" {
		if err := run.runCli(); err != nil {
			log.Fatalf("Error running evaluation: %v", err)
		}
		return
	}

	result, err := run.run(nil)
	if err != nil {
		log.Fatalf("Error running evaluation: %v", err)
	}

	var output string
	switch *format {
	case "json":
		output, err = result.Json()
	case "yaml":
		output, err = result.Yaml()
	default:
		log.Fatalf("Invalid format %q (expected json or yaml)", *format)
	}
	if err != nil {
		log.Fatalf("Error formatting result: %v", err)
	}
	fmt.Println(output)
}
