package server

import (
	"time"

	"llmevalbench/internal/evaluator"
	"llmevalbench/internal/report"
)

// PromptInput is one prompt in a run request
type PromptInput struct {
	ID           string `json:"promptId" binding:"required"`
	Prompt       string `json:"prompt" binding:"required"`
	ExpectedJSON bool   `json:"expectedJson"`
	Category     string `json:"category"`
}

// RunRequest is the payload for starting an evaluation run
type RunRequest struct {
	RunID       string        `json:"runId"`
	Models      []string      `json:"models"`
	Prompts     []PromptInput `json:"prompts" binding:"required,min=1,dive"`
	MaxInFlight int           `json:"maxInFlight"`
}

// RunResponse describes a run's state to API clients
type RunResponse struct {
	ID          string             `json:"id"`
	Status      string             `json:"status"` // "running", "completed", "failed", "cancelled"
	Models      []string           `json:"models"`
	Completed   int                `json:"completed"`
	Total       int                `json:"total"`
	Message     string             `json:"message,omitempty"`
	Error       string             `json:"error,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	CompletedAt *time.Time         `json:"completedAt,omitempty"`
	Summary     []report.ModelStat `json:"summary,omitempty"`
}

// RecordsResponse wraps a run's raw records
type RecordsResponse struct {
	RunID   string             `json:"runId"`
	Records []evaluator.Record `json:"records"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
