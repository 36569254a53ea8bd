package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/common"
	"github.com/ternarybob/augur/internal/interfaces"
	"github.com/ternarybob/augur/internal/models"
)

// AnalysisHandler serves analysis submission and task status endpoints.
type AnalysisHandler struct {
	tasks    interfaces.TaskService
	analysis interfaces.AnalysisService
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewAnalysisHandler creates the analysis handler.
func NewAnalysisHandler(tasks interfaces.TaskService, analysis interfaces.AnalysisService, logger arbor.ILogger) *AnalysisHandler {
	return &AnalysisHandler{
		tasks:    tasks,
		analysis: analysis,
		validate: validator.New(),
		logger:   logger,
	}
}

type analyzeRequest struct {
	StockCode    string   `json:"stock_code" validate:"required_without=StockCodes,omitempty,max=16"`
	StockCodes   []string `json:"stock_codes" validate:"omitempty,max=50,dive,required,max=16"`
	StockName    string   `json:"stock_name" validate:"omitempty,max=64"`
	ReportType   string   `json:"report_type" validate:"omitempty,oneof=simple full"`
	ForceRefresh bool     `json:"force_refresh"`
	AsyncMode    *bool    `json:"async_mode"`
}

// AnalyzeHandler handles POST /api/v1/analysis/analyze. The default
// path submits a task and returns 202; async_mode=false runs the
// analysis inline and returns the full report envelope.
func (h *AnalysisHandler) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req analyzeRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	reportType := models.ReportType(req.ReportType)
	if reportType == "" {
		reportType = models.ReportFull
	}

	// Batch path: submit every code, report per-symbol outcomes.
	if len(req.StockCodes) > 0 {
		h.submitBatch(w, r, req, reportType)
		return
	}

	submit := interfaces.SubmitRequest{
		StockCode:    strings.TrimSpace(req.StockCode),
		StockName:    req.StockName,
		ReportType:   reportType,
		ForceRefresh: req.ForceRefresh,
	}

	if req.AsyncMode != nil && !*req.AsyncMode {
		queryID := common.NewReportID()
		report, err := h.analysis.Analyze(r.Context(), queryID, submit, nil)
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, report.Envelope())
		return
	}

	task, err := h.tasks.Submit(r.Context(), submit)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"task_id": task.TaskID,
		"status":  string(task.Status),
		"message": "Analysis task submitted",
	})
}

func (h *AnalysisHandler) submitBatch(w http.ResponseWriter, r *http.Request, req analyzeRequest, reportType models.ReportType) {
	type batchItem struct {
		StockCode      string `json:"stock_code"`
		TaskID         string `json:"task_id,omitempty"`
		Status         string `json:"status"`
		ExistingTaskID string `json:"existing_task_id,omitempty"`
		Error          string `json:"error,omitempty"`
	}

	items := make([]batchItem, 0, len(req.StockCodes))
	submitted := 0
	for _, code := range req.StockCodes {
		task, err := h.tasks.Submit(r.Context(), interfaces.SubmitRequest{
			StockCode:    strings.TrimSpace(code),
			ReportType:   reportType,
			ForceRefresh: req.ForceRefresh,
		})
		if err != nil {
			var dup *models.DuplicateTaskError
			if errors.As(err, &dup) {
				items = append(items, batchItem{
					StockCode:      code,
					Status:         "duplicate",
					ExistingTaskID: dup.ExistingTaskID,
				})
				continue
			}
			items = append(items, batchItem{StockCode: code, Status: "error", Error: err.Error()})
			continue
		}
		submitted++
		items = append(items, batchItem{StockCode: code, TaskID: task.TaskID, Status: string(task.Status)})
	}

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"submitted": submitted,
		"total":     len(req.StockCodes),
		"tasks":     items,
	})
}

// StatusHandler handles GET /api/v1/analysis/status/{task_id}.
func (h *AnalysisHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	taskID := strings.TrimPrefix(r.URL.Path, "/api/v1/analysis/status/")
	if taskID == "" || strings.Contains(taskID, "/") {
		WriteError(w, http.StatusBadRequest, "validation_error", "task_id is required")
		return
	}

	task, err := h.tasks.GetTask(taskID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	response := map[string]interface{}{
		"task_id":  task.TaskID,
		"status":   string(task.Status),
		"progress": task.Progress,
		"message":  task.Message,
	}
	if task.Error != "" {
		response["error"] = task.Error
	}
	if task.QueryID != "" {
		response["query_id"] = task.QueryID
	}
	WriteJSON(w, http.StatusOK, response)
}

// TasksHandler handles GET /api/v1/analysis/tasks with optional status
// filter and limit.
func (h *AnalysisHandler) TasksHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	statusFilter := r.URL.Query().Get("status")
	limit := QueryInt(r, "limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	all := h.tasks.ListAllTasks(limit * 4)
	tasks := make([]*models.Task, 0, limit)
	for _, task := range all {
		if statusFilter != "" && string(task.Status) != statusFilter {
			continue
		}
		tasks = append(tasks, task)
		if len(tasks) == limit {
			break
		}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": tasks,
		"stats": h.tasks.GetTaskStats(),
		"count": len(tasks),
	})
}
