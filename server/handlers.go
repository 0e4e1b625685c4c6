package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"llmevalbench/internal/registry"
	"llmevalbench/internal/report"
	"llmevalbench/internal/store"
)

// Handlers bundles the HTTP handlers with their dependencies
type Handlers struct {
	reg     *registry.Registry
	manager *RunManager
	store   *store.Store
}

// NewHandlers creates the handler set
func NewHandlers(reg *registry.Registry, manager *RunManager, st *store.Store) *Handlers {
	return &Handlers{reg: reg, manager: manager, store: st}
}

// HealthHandler reports service liveness
func (h *Handlers) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"models": h.reg.Len(),
	})
}

// ListModels returns the configured models
func (h *Handlers) ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": h.reg.List()})
}

// CreateRun starts a new evaluation run
func (h *Handlers) CreateRun(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Bad Request",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
		return
	}

	resp, err := h.manager.StartRun(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Bad Request",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

// ListRuns returns all known runs
func (h *Handlers) ListRuns(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"runs": h.manager.ListRuns()})
}

// GetRun returns the state of one run
func (h *Handlers) GetRun(c *gin.Context) {
	runID := c.Param("id")
	run, exists := h.manager.GetRun(runID)
	if !exists {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "Not Found",
			Message: "Run not found",
			Code:    http.StatusNotFound,
		})
		return
	}
	c.JSON(http.StatusOK, run)
}

// CancelRun cancels a running run
func (h *Handlers) CancelRun(c *gin.Context) {
	runID := c.Param("id")
	if !h.manager.CancelRun(runID) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "Not Found",
			Message: "Run not found or not cancellable",
			Code:    http.StatusNotFound,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"runId":  runID,
		"status": "cancelled",
	})
}

// DeleteRun removes a run and its artifacts
func (h *Handlers) DeleteRun(c *gin.Context) {
	runID := c.Param("id")
	if !h.manager.DeleteRun(runID) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "Not Found",
			Message: "Run not found",
			Code:    http.StatusNotFound,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runId": runID, "deleted": true})
}

// GetRecords returns a run's raw records. Records for runs from earlier
// server lifetimes are loaded from the artifact store.
func (h *Handlers) GetRecords(c *gin.Context) {
	runID := c.Param("id")
	records, ok := h.manager.GetRecords(runID)
	if !ok && h.store != nil {
		var err error
		records, err = h.store.ReadRecords(runID)
		ok = err == nil
	}
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "Not Found",
			Message: "No records for this run",
			Code:    http.StatusNotFound,
		})
		return
	}
	c.JSON(http.StatusOK, RecordsResponse{RunID: runID, Records: records})
}

// GetReport returns a run's per-model comparison
func (h *Handlers) GetReport(c *gin.Context) {
	runID := c.Param("id")
	summary, ok := h.manager.GetSummary(runID)
	if !ok && h.store != nil {
		if records, err := h.store.ReadRecords(runID); err == nil {
			summary = report.Aggregate(records).Rows()
			ok = true
		}
	}
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "Not Found",
			Message: "No report for this run",
			Code:    http.StatusNotFound,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runId": runID, "summary": summary})
}
