package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"llmevalbench/internal/evaluator"
	"llmevalbench/internal/report"
)

// WebSocket message types
const (
	MessageTypeProgress  = "progress"
	MessageTypeComplete  = "complete"
	MessageTypeCancelled = "cancelled"
	MessageTypePing      = "ping"
)

// WebSocketMessage represents a message sent over WebSocket
type WebSocketMessage struct {
	Type      string      `json:"type"`
	RunID     string      `json:"runId,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// ProgressUpdate represents evaluation progress information
type ProgressUpdate struct {
	RunID     string           `json:"runId"`
	Completed int              `json:"completed"`
	Total     int              `json:"total"`
	Record    evaluator.Record `json:"record"`
}

// CompletionData represents run completion information
type CompletionData struct {
	RunID   string             `json:"runId"`
	Status  string             `json:"status"`
	Summary []report.ModelStat `json:"summary,omitempty"`
}

// NewProgressMessage creates a progress update message
func NewProgressMessage(runID string, progress ProgressUpdate) *WebSocketMessage {
	return &WebSocketMessage{
		Type:      MessageTypeProgress,
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Data:      progress,
	}
}

// NewCompletionMessage creates a completion message
func NewCompletionMessage(runID, status string, summary []report.ModelStat) *WebSocketMessage {
	return &WebSocketMessage{
		Type:      MessageTypeComplete,
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Data:      CompletionData{RunID: runID, Status: status, Summary: summary},
	}
}

// NewCancellationMessage creates a cancellation message
func NewCancellationMessage(runID, reason string) *WebSocketMessage {
	return &WebSocketMessage{
		Type:      MessageTypeCancelled,
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Data:      gin.H{"runId": runID, "reason": reason},
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers connect from the frontend origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// StreamRunProgress upgrades the connection to WebSocket and streams run
// progress until the run finishes or the client disconnects.
func (h *Handlers) StreamRunProgress(c *gin.Context) {
	runID := c.Param("id")
	if _, exists := h.manager.GetRun(runID); !exists {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "Not Found",
			Message: "Run not found",
			Code:    http.StatusNotFound,
		})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		AppLogger.ErrorWithContext(&LogContext{RunID: runID}, "WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates := make(chan *WebSocketMessage, 64)
	h.manager.RegisterListener(runID, updates)
	defer h.manager.UnregisterListener(runID, updates)

	AppLogger.InfoWithContext(&LogContext{RunID: runID}, "WebSocket client connected")

	// A finished run will never broadcast again; replay its terminal state
	// so a late subscriber is not left idling until ping failure. The
	// listener is already registered, so a run finishing right here still
	// reaches the loop below.
	if run, exists := h.manager.GetRun(runID); exists && run.Status != "running" {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(NewCompletionMessage(runID, run.Status, run.Summary)); err != nil {
			AppLogger.WarnWithContext(&LogContext{RunID: runID}, "WebSocket write failed: %v", err)
		}
		return
	}

	// Drain client frames so close messages are processed
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pingTicker := time.NewTicker(wsPingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case msg, ok := <-updates:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				AppLogger.WarnWithContext(&LogContext{RunID: runID}, "WebSocket write failed: %v", err)
				return
			}
			if msg.Type == MessageTypeComplete {
				return
			}
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-clientGone:
			AppLogger.InfoWithContext(&LogContext{RunID: runID}, "WebSocket client disconnected")
			return
		}
	}
}
