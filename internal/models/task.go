package models

import "time"

// TaskStatus is the lifecycle state of an analysis task.
// Transitions are monotone: pending -> processing -> completed | failed.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// IsTerminal reports whether the status is a terminal state.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// ReportType selects the depth of an analysis.
type ReportType string

const (
	ReportSimple ReportType = "simple"
	ReportFull   ReportType = "full"
)

// Task is the lifecycle record for one analysis request. Tasks are
// owned by the task queue and mutate only under its lock; callers see
// snapshots.
type Task struct {
	TaskID       string     `json:"task_id"`
	StockCode    string     `json:"stock_code"`
	StockName    string     `json:"stock_name,omitempty"`
	ReportType   ReportType `json:"report_type"`
	ForceRefresh bool       `json:"force_refresh,omitempty"`

	Status      TaskStatus `json:"status"`
	Progress    int        `json:"progress"` // [0,100]
	Message     string     `json:"message,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// QueryID references the persisted report once the task completes
	QueryID string `json:"query_id,omitempty"`
}

// Clone returns a copy safe to hand outside the queue lock.
func (t *Task) Clone() *Task {
	c := *t
	if t.StartedAt != nil {
		started := *t.StartedAt
		c.StartedAt = &started
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		c.CompletedAt = &completed
	}
	return &c
}

// TaskEventType names a task lifecycle event published to subscribers.
type TaskEventType string

const (
	EventTaskCreated   TaskEventType = "task_created"
	EventTaskStarted   TaskEventType = "task_started"
	EventTaskProgress  TaskEventType = "task_progress"
	EventTaskCompleted TaskEventType = "task_completed"
	EventTaskFailed    TaskEventType = "task_failed"
)

// TaskEvent is the payload delivered to queue subscribers. Events for a
// single task arrive in lifecycle order; there is no cross-task ordering.
type TaskEvent struct {
	Type      TaskEventType `json:"type"`
	TaskID    string        `json:"task_id"`
	StockCode string        `json:"stock_code"`
	Status    TaskStatus    `json:"status"`
	Progress  int           `json:"progress"`
	Message   string        `json:"message,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// TaskStats aggregates task counts per status.
type TaskStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}
