package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/interfaces"
	"github.com/ternarybob/augur/internal/models"
)

type stubTaskService struct {
	tasks     map[string]*models.Task
	dupeCodes map[string]string
	submitted []interfaces.SubmitRequest
	sub       *stubSubscription
}

func newStubTaskService() *stubTaskService {
	return &stubTaskService{
		tasks:     map[string]*models.Task{},
		dupeCodes: map[string]string{},
	}
}

func (s *stubTaskService) Submit(_ context.Context, req interfaces.SubmitRequest) (*models.Task, error) {
	if existing, ok := s.dupeCodes[req.StockCode]; ok {
		return nil, &models.DuplicateTaskError{StockCode: req.StockCode, ExistingTaskID: existing}
	}
	s.submitted = append(s.submitted, req)
	task := &models.Task{
		TaskID:    "task_new",
		StockCode: req.StockCode,
		Status:    models.TaskPending,
		CreatedAt: time.Now(),
	}
	return task, nil
}

func (s *stubTaskService) GetTask(taskID string) (*models.Task, error) {
	if task, ok := s.tasks[taskID]; ok {
		return task, nil
	}
	return nil, models.ErrNotFound
}

func (s *stubTaskService) ReportProgress(string, int, string) {}

func (s *stubTaskService) ListAllTasks(int) []*models.Task {
	var out []*models.Task
	for _, task := range s.tasks {
		out = append(out, task)
	}
	return out
}

func (s *stubTaskService) ListPendingTasks() []*models.Task { return nil }
func (s *stubTaskService) GetTaskStats() models.TaskStats {
	return models.TaskStats{Total: len(s.tasks)}
}

func (s *stubTaskService) Subscribe() interfaces.TaskSubscription { return s.sub }
func (s *stubTaskService) Start(context.Context) error            { return nil }
func (s *stubTaskService) Stop() error                            { return nil }

type stubSubscription struct {
	ch chan models.TaskEvent
}

func (s *stubSubscription) Events() <-chan models.TaskEvent { return s.ch }
func (s *stubSubscription) Close()                          {}

type stubAnalysisService struct {
	report *models.AnalysisReport
	err    error
}

func (s *stubAnalysisService) Analyze(_ context.Context, queryID string, req interfaces.SubmitRequest, progress func(int, string)) (*models.AnalysisReport, error) {
	if s.err != nil {
		return nil, s.err
	}
	report := *s.report
	report.QueryID = queryID
	return &report, nil
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	encoded, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", path, bytes.NewReader(encoded))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAnalyzeAsyncSubmission(t *testing.T) {
	tasks := newStubTaskService()
	h := NewAnalysisHandler(tasks, &stubAnalysisService{}, arbor.NewLogger())

	rec := postJSON(t, h.AnalyzeHandler, "/api/v1/analysis/analyze",
		map[string]interface{}{"stock_code": "600519"})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "task_new", body["task_id"])
	assert.Equal(t, "pending", body["status"])
	require.Len(t, tasks.submitted, 1)
	assert.Equal(t, models.ReportFull, tasks.submitted[0].ReportType)
}

func TestAnalyzeDuplicateConflict(t *testing.T) {
	tasks := newStubTaskService()
	tasks.dupeCodes["600519"] = "task_existing"
	h := NewAnalysisHandler(tasks, &stubAnalysisService{}, arbor.NewLogger())

	rec := postJSON(t, h.AnalyzeHandler, "/api/v1/analysis/analyze",
		map[string]interface{}{"stock_code": "600519"})

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "duplicate_task", body["error"])
	assert.Equal(t, "600519", body["stock_code"])
	assert.Equal(t, "task_existing", body["existing_task_id"])
}

func TestAnalyzeValidation(t *testing.T) {
	h := NewAnalysisHandler(newStubTaskService(), &stubAnalysisService{}, arbor.NewLogger())

	// Missing both stock_code and stock_codes.
	rec := postJSON(t, h.AnalyzeHandler, "/api/v1/analysis/analyze", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeBody(t, rec)["error"])

	// Invalid report type.
	rec = postJSON(t, h.AnalyzeHandler, "/api/v1/analysis/analyze",
		map[string]interface{}{"stock_code": "600519", "report_type": "verbose"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeSyncMode(t *testing.T) {
	report := &models.AnalysisReport{
		StockCode:      "600519",
		ReportType:     models.ReportFull,
		CreatedAt:      time.Now(),
		SentimentScore: models.Float(72),
		Advice:         "buy",
	}
	h := NewAnalysisHandler(newStubTaskService(), &stubAnalysisService{report: report}, arbor.NewLogger())

	syncOff := false
	rec := postJSON(t, h.AnalyzeHandler, "/api/v1/analysis/analyze",
		map[string]interface{}{"stock_code": "600519", "async_mode": syncOff})

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	summary := body["summary"].(map[string]interface{})
	assert.Equal(t, "buy", summary["operation_advice"])
}

func TestAnalyzeSyncModeFailure(t *testing.T) {
	h := NewAnalysisHandler(newStubTaskService(),
		&stubAnalysisService{err: models.ErrAnalysisFailed}, arbor.NewLogger())

	syncOff := false
	rec := postJSON(t, h.AnalyzeHandler, "/api/v1/analysis/analyze",
		map[string]interface{}{"stock_code": "600519", "async_mode": syncOff})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "analysis_failed", decodeBody(t, rec)["error"])
}

func TestAnalyzeBatch(t *testing.T) {
	tasks := newStubTaskService()
	tasks.dupeCodes["AAPL"] = "task_existing"
	h := NewAnalysisHandler(tasks, &stubAnalysisService{}, arbor.NewLogger())

	rec := postJSON(t, h.AnalyzeHandler, "/api/v1/analysis/analyze",
		map[string]interface{}{"stock_codes": []string{"600519", "AAPL"}})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["submitted"])
	items := body["tasks"].([]interface{})
	require.Len(t, items, 2)
	dupe := items[1].(map[string]interface{})
	assert.Equal(t, "duplicate", dupe["status"])
	assert.Equal(t, "task_existing", dupe["existing_task_id"])
}

func TestStatusHandler(t *testing.T) {
	tasks := newStubTaskService()
	tasks.tasks["task_1"] = &models.Task{
		TaskID:    "task_1",
		StockCode: "600519",
		Status:    models.TaskProcessing,
		Progress:  50,
		Message:   "Consulting expert panel",
	}
	h := NewAnalysisHandler(tasks, &stubAnalysisService{}, arbor.NewLogger())

	req := httptest.NewRequest("GET", "/api/v1/analysis/status/task_1", nil)
	rec := httptest.NewRecorder()
	h.StatusHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "processing", body["status"])
	assert.Equal(t, float64(50), body["progress"])

	req = httptest.NewRequest("GET", "/api/v1/analysis/status/task_unknown", nil)
	rec = httptest.NewRecorder()
	h.StatusHandler(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeBody(t, rec)["error"])
}

func TestTasksHandlerFiltersByStatus(t *testing.T) {
	tasks := newStubTaskService()
	tasks.tasks["task_1"] = &models.Task{TaskID: "task_1", Status: models.TaskCompleted}
	tasks.tasks["task_2"] = &models.Task{TaskID: "task_2", Status: models.TaskPending}
	h := NewAnalysisHandler(tasks, &stubAnalysisService{}, arbor.NewLogger())

	req := httptest.NewRequest("GET", "/api/v1/analysis/tasks?status=pending", nil)
	rec := httptest.NewRecorder()
	h.TasksHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])
}

func TestStreamDeliversLifecycleEvents(t *testing.T) {
	events := make(chan models.TaskEvent, 4)
	tasks := newStubTaskService()
	tasks.sub = &stubSubscription{ch: events}
	h := NewStreamHandler(tasks, arbor.NewLogger())

	events <- models.TaskEvent{
		Type:      models.EventTaskCreated,
		TaskID:    "task_1",
		StockCode: "600519",
		Status:    models.TaskPending,
		Timestamp: time.Now(),
	}
	close(events)

	req := httptest.NewRequest("GET", "/api/v1/analysis/tasks/stream", nil)
	rec := httptest.NewRecorder()
	h.StreamTasksHandler(rec, req)

	body := rec.Body.String()
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Contains(t, body, "event: connected\n")
	assert.Contains(t, body, "event: task_created\n")
	assert.Contains(t, body, `"stock_code":"600519"`)

	// connected frame precedes the task event
	assert.Less(t,
		bytes.Index(rec.Body.Bytes(), []byte("event: connected")),
		bytes.Index(rec.Body.Bytes(), []byte("event: task_created")))
}
