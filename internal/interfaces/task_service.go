package interfaces

import (
	"context"

	"github.com/ternarybob/augur/internal/models"
)

// SubmitRequest carries the parameters of one analysis submission.
type SubmitRequest struct {
	StockCode    string
	StockName    string
	ReportType   models.ReportType
	ForceRefresh bool
}

// TaskSubscription is a registered observer of task lifecycle events.
// Events arrives on a bounded channel; when the channel is full the
// queue drops events for this subscriber only.
type TaskSubscription interface {
	// Events is the bounded event channel drained by the subscriber
	Events() <-chan models.TaskEvent

	// Close unsubscribes and releases the channel
	Close()
}

// TaskService owns analysis tasks: submission with per-symbol
// deduplication, bounded worker execution, status fan-out, and bounded
// retention of terminal tasks.
type TaskService interface {
	// Submit enqueues an analysis task. Returns *models.DuplicateTaskError
	// when a task for the same stock code is already pending or processing.
	Submit(ctx context.Context, req SubmitRequest) (*models.Task, error)

	// GetTask returns a snapshot of one task, or models.ErrNotFound.
	GetTask(taskID string) (*models.Task, error)

	// ReportProgress records application-level progress for a running
	// task and publishes a task_progress event. Progress is clamped
	// monotone non-decreasing.
	ReportProgress(taskID string, progress int, message string)

	// ListAllTasks returns an ordered snapshot, newest first, capped at limit.
	ListAllTasks(limit int) []*models.Task

	// ListPendingTasks returns pending tasks in FIFO order.
	ListPendingTasks() []*models.Task

	// GetTaskStats returns counts per status.
	GetTaskStats() models.TaskStats

	// Subscribe registers a lifecycle event observer.
	Subscribe() TaskSubscription

	// Start launches the worker pool; Stop drains it.
	Start(ctx context.Context) error
	Stop() error
}

// AnalysisService runs one full analysis for a symbol: context
// assembly, expert panel, report persistence.
type AnalysisService interface {
	// Analyze produces and persists a report for one symbol. queryID
	// becomes the report's id (the task id when queue-submitted).
	Analyze(ctx context.Context, queryID string, req SubmitRequest, progress func(pct int, msg string)) (*models.AnalysisReport, error)
}
