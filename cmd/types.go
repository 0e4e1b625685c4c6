package main

import (
	"llmevalbench/internal/evaluator"
	"llmevalbench/internal/prompts"
	"llmevalbench/internal/registry"
	"llmevalbench/internal/report"
)

// EvalRun holds everything needed to execute one evaluation from the CLI
type EvalRun struct {
	Registry    *registry.Registry
	Models      []registry.ModelSpec
	Items       []prompts.Item
	RunID       string
	OutDir      string
	Concurrency int
	SkipReport  bool
}

// RunResult is the machine-readable output of a run
type RunResult struct {
	RunID     string             `json:"runId" yaml:"runId"`
	Models    []string           `json:"models" yaml:"models"`
	Prompts   int                `json:"prompts" yaml:"prompts"`
	Records   []evaluator.Record `json:"records" yaml:"records"`
	Summary   []report.ModelStat `json:"summary,omitempty" yaml:"summary,omitempty"`
	Artifacts []string           `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
}
