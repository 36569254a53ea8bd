package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/interfaces"
	"github.com/ternarybob/augur/internal/models"
)

// heartbeatInterval is the idle keepalive period for SSE streams.
const heartbeatInterval = 30 * time.Second

// StreamHandler serves the task lifecycle SSE stream.
type StreamHandler struct {
	tasks  interfaces.TaskService
	logger arbor.ILogger
}

// NewStreamHandler creates the SSE stream handler.
func NewStreamHandler(tasks interfaces.TaskService, logger arbor.ILogger) *StreamHandler {
	return &StreamHandler{tasks: tasks, logger: logger}
}

// StreamTasksHandler handles GET /api/v1/analysis/tasks/stream. Each
// client gets its own bounded subscription; slow clients lose events
// rather than stalling the queue.
func (h *StreamHandler) StreamTasksHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	sub := h.tasks.Subscribe()
	defer sub.Close()

	h.sendEvent(w, flusher, "connected", map[string]interface{}{
		"timestamp": time.Now(),
		"stats":     h.tasks.GetTaskStats(),
	})

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case event, open := <-sub.Events():
			if !open {
				return
			}
			h.sendEvent(w, flusher, string(event.Type), taskEventPayload(event))
			heartbeat.Reset(heartbeatInterval)

		case <-heartbeat.C:
			h.sendEvent(w, flusher, "heartbeat", map[string]interface{}{"timestamp": time.Now()})
		}
	}
}

// taskEventPayload shapes a lifecycle event for the wire.
func taskEventPayload(event models.TaskEvent) map[string]interface{} {
	payload := map[string]interface{}{
		"task_id":    event.TaskID,
		"stock_code": event.StockCode,
		"status":     string(event.Status),
		"progress":   event.Progress,
		"timestamp":  event.Timestamp,
	}
	if event.Message != "" {
		payload["message"] = event.Message
	}
	if event.Error != "" {
		payload["error"] = event.Error
	}
	return payload
}

// sendEvent writes one SSE frame: "event: <name>\ndata: <json>\n\n".
func (h *StreamHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal SSE event data")
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}
