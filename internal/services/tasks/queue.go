// Package tasks owns the analysis task queue: submission with
// per-symbol deduplication, a bounded worker pool, lifecycle event
// fan-out to bounded subscriber channels, and capped in-memory
// retention of terminal tasks.
package tasks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/common"
	"github.com/ternarybob/augur/internal/interfaces"
	"github.com/ternarybob/augur/internal/metrics"
	"github.com/ternarybob/augur/internal/models"
)

// subscription is one registered observer with its bounded channel.
type subscription struct {
	queue *Queue
	id    uint64
	ch    chan models.TaskEvent
	once  sync.Once
}

func (s *subscription) Events() <-chan models.TaskEvent { return s.ch }

// Close unsubscribes. The channel is closed under the queue lock so a
// concurrent publish can never send on a closed channel.
func (s *subscription) Close() {
	s.once.Do(func() {
		s.queue.mu.Lock()
		delete(s.queue.subscribers, s.id)
		close(s.ch)
		s.queue.mu.Unlock()
	})
}

// Queue implements interfaces.TaskService. The queue lock protects the
// task table, dedupe index, pending list, and subscriber set; it is
// never held across the analysis call itself.
type Queue struct {
	logger   arbor.ILogger
	analysis interfaces.AnalysisService

	workers        int
	retention      int
	subscriberSize int

	mu          sync.Mutex
	tasks       map[string]*models.Task
	byCode      map[string]string // stock code -> in-flight task id
	pending     []string          // FIFO of pending task ids
	order       []string          // all task ids in creation order
	subscribers map[uint64]*subscription
	nextSubID   uint64

	wake    chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	started bool
	stopped bool
}

// NewQueue builds the task queue from server config. Start must be
// called before submissions are executed.
func NewQueue(cfg *common.Config, analysis interfaces.AnalysisService, logger arbor.ILogger) *Queue {
	workers := cfg.Analysis.Workers
	if workers <= 0 {
		workers = 2
	}
	retention := cfg.Analysis.TaskRetention
	if retention <= 0 {
		retention = 1000
	}
	subscriberSize := cfg.Analysis.SubscriberQueue
	if subscriberSize <= 0 {
		subscriberSize = 64
	}

	return &Queue{
		logger:         logger,
		analysis:       analysis,
		workers:        workers,
		retention:      retention,
		subscriberSize: subscriberSize,
		tasks:          make(map[string]*models.Task),
		byCode:         make(map[string]string),
		subscribers:    make(map[uint64]*subscription),
		wake:           make(chan struct{}, 1),
		done:           make(chan struct{}),
	}
}

// Start launches the worker pool.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return fmt.Errorf("task queue already started")
	}
	q.started = true
	q.mu.Unlock()

	if q.logger != nil {
		q.logger.Info().Int("workers", q.workers).Msg("Starting task queue workers")
	}
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	return nil
}

// Stop drains the worker pool. In-flight tasks run to completion.
func (q *Queue) Stop() error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil
	}
	q.stopped = true
	q.mu.Unlock()

	close(q.done)
	q.wg.Wait()

	q.mu.Lock()
	subs := make([]*subscription, 0, len(q.subscribers))
	for _, sub := range q.subscribers {
		subs = append(subs, sub)
	}
	q.mu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}

	if q.logger != nil {
		q.logger.Info().Msg("Task queue stopped")
	}
	return nil
}

// Submit enqueues an analysis task. At most one task per stock code may
// be pending or processing at any instant.
func (q *Queue) Submit(ctx context.Context, req interfaces.SubmitRequest) (*models.Task, error) {
	if req.StockCode == "" {
		return nil, fmt.Errorf("stock code is required")
	}
	reportType := req.ReportType
	if reportType == "" {
		reportType = models.ReportFull
	}

	q.mu.Lock()
	if existingID, ok := q.byCode[req.StockCode]; ok {
		q.mu.Unlock()
		return nil, &models.DuplicateTaskError{StockCode: req.StockCode, ExistingTaskID: existingID}
	}

	task := &models.Task{
		TaskID:       "task_" + uuid.New().String(),
		StockCode:    req.StockCode,
		StockName:    req.StockName,
		ReportType:   reportType,
		ForceRefresh: req.ForceRefresh,
		Status:       models.TaskPending,
		CreatedAt:    time.Now(),
	}
	q.tasks[task.TaskID] = task
	q.byCode[task.StockCode] = task.TaskID
	q.order = append(q.order, task.TaskID)
	snapshot := task.Clone()
	// The creation event must be enqueued before the task becomes
	// dequeueable; otherwise a free worker could emit task_started
	// ahead of task_created.
	q.publishLocked(snapshot, models.EventTaskCreated)
	q.pending = append(q.pending, task.TaskID)
	q.mu.Unlock()

	metrics.TasksSubmitted.Inc()
	if q.logger != nil {
		q.logger.Info().
			Str("task_id", task.TaskID).
			Str("stock_code", task.StockCode).
			Str("report_type", string(reportType)).
			Msg("Analysis task submitted")
	}

	q.signal()
	return snapshot, nil
}

// GetTask returns a snapshot of one task.
func (q *Queue) GetTask(taskID string) (*models.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return task.Clone(), nil
}

// ReportProgress records application-level progress for a running task.
// Progress is clamped to [0,100] and never moves backwards.
func (q *Queue) ReportProgress(taskID string, progress int, message string) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	q.mu.Lock()
	task, ok := q.tasks[taskID]
	if !ok || task.Status != models.TaskProcessing {
		q.mu.Unlock()
		return
	}
	if progress < task.Progress {
		progress = task.Progress
	}
	task.Progress = progress
	task.Message = message
	snapshot := task.Clone()
	q.mu.Unlock()

	q.publish(snapshot, models.EventTaskProgress)
}

// ListAllTasks returns a snapshot of tasks, newest first.
func (q *Queue) ListAllTasks(limit int) []*models.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*models.Task, 0, len(q.order))
	for i := len(q.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		if task, ok := q.tasks[q.order[i]]; ok {
			out = append(out, task.Clone())
		}
	}
	return out
}

// ListPendingTasks returns pending tasks in FIFO order.
func (q *Queue) ListPendingTasks() []*models.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*models.Task, 0, len(q.pending))
	for _, id := range q.pending {
		if task, ok := q.tasks[id]; ok && task.Status == models.TaskPending {
			out = append(out, task.Clone())
		}
	}
	return out
}

// GetTaskStats returns task counts per status.
func (q *Queue) GetTaskStats() models.TaskStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	var stats models.TaskStats
	for _, task := range q.tasks {
		switch task.Status {
		case models.TaskPending:
			stats.Pending++
		case models.TaskProcessing:
			stats.Processing++
		case models.TaskCompleted:
			stats.Completed++
		case models.TaskFailed:
			stats.Failed++
		}
	}
	stats.Total = len(q.tasks)
	return stats
}

// Subscribe registers a lifecycle event observer on a bounded channel.
func (q *Queue) Subscribe() interfaces.TaskSubscription {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextSubID++
	sub := &subscription{
		queue: q,
		id:    q.nextSubID,
		ch:    make(chan models.TaskEvent, q.subscriberSize),
	}
	q.subscribers[sub.id] = sub
	return sub
}

// signal nudges an idle worker without blocking.
func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// publish fans an event out to all subscribers. Sends never block: a
// full subscriber channel drops the event for that subscriber only.
func (q *Queue) publish(task *models.Task, eventType models.TaskEventType) {
	// Sends are non-blocking, so holding the lock here is O(subscribers)
	// and keeps closes and sends serialized.
	q.mu.Lock()
	defer q.mu.Unlock()
	q.publishLocked(task, eventType)
}

// publishLocked is publish for callers already inside the queue lock.
func (q *Queue) publishLocked(task *models.Task, eventType models.TaskEventType) {
	event := models.TaskEvent{
		Type:      eventType,
		TaskID:    task.TaskID,
		StockCode: task.StockCode,
		Status:    task.Status,
		Progress:  task.Progress,
		Message:   task.Message,
		Error:     task.Error,
		Timestamp: time.Now(),
	}

	for _, sub := range q.subscribers {
		select {
		case sub.ch <- event:
		default:
			metrics.DroppedEvents.Inc()
			if q.logger != nil {
				q.logger.Warn().
					Str("task_id", event.TaskID).
					Str("event", string(event.Type)).
					Msg("Dropped task event for slow subscriber")
			}
		}
	}
}

// dequeue pops the oldest pending task and transitions it to
// processing under the lock. Returns nil when nothing is pending.
func (q *Queue) dequeue() *models.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.pending) > 0 {
		id := q.pending[0]
		q.pending = q.pending[1:]
		task, ok := q.tasks[id]
		if !ok || task.Status != models.TaskPending {
			continue
		}
		now := time.Now()
		task.Status = models.TaskProcessing
		task.StartedAt = &now
		task.Progress = 0
		return task.Clone()
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()

	for {
		task := q.dequeue()
		if task == nil {
			select {
			case <-q.wake:
				continue
			case <-q.done:
				return
			case <-ctx.Done():
				return
			}
		}

		q.publish(task, models.EventTaskStarted)
		if q.logger != nil {
			q.logger.Info().
				Int("worker_id", id).
				Str("task_id", task.TaskID).
				Str("stock_code", task.StockCode).
				Msg("Worker picked up task")
		}

		q.execute(ctx, task)

		// Another pending task may be waiting behind this one.
		q.signal()
	}
}

// execute runs the analysis outside the queue lock and records the
// terminal transition.
func (q *Queue) execute(ctx context.Context, task *models.Task) {
	req := interfaces.SubmitRequest{
		StockCode:    task.StockCode,
		StockName:    task.StockName,
		ReportType:   task.ReportType,
		ForceRefresh: task.ForceRefresh,
	}
	progress := func(pct int, msg string) {
		q.ReportProgress(task.TaskID, pct, msg)
	}

	var report *models.AnalysisReport
	var err error
	if q.analysis != nil {
		report, err = q.analysis.Analyze(ctx, task.TaskID, req, progress)
	} else {
		err = fmt.Errorf("no analysis service configured")
	}

	now := time.Now()
	q.mu.Lock()
	stored, ok := q.tasks[task.TaskID]
	if !ok {
		q.mu.Unlock()
		return
	}
	stored.CompletedAt = &now
	delete(q.byCode, stored.StockCode)

	var eventType models.TaskEventType
	if err != nil {
		stored.Status = models.TaskFailed
		stored.Error = models.TruncateError(err.Error(), 200)
		eventType = models.EventTaskFailed
	} else {
		stored.Status = models.TaskCompleted
		stored.Progress = 100
		stored.Message = "analysis complete"
		if report != nil {
			stored.QueryID = report.QueryID
		}
		eventType = models.EventTaskCompleted
	}
	snapshot := stored.Clone()
	q.evictLocked()
	q.mu.Unlock()

	if err != nil {
		metrics.TasksCompleted.WithLabelValues("failed").Inc()
		if q.logger != nil {
			q.logger.Warn().
				Str("task_id", task.TaskID).
				Str("stock_code", task.StockCode).
				Err(err).
				Msg("Analysis task failed")
		}
	} else {
		metrics.TasksCompleted.WithLabelValues("completed").Inc()
		if q.logger != nil {
			q.logger.Info().
				Str("task_id", task.TaskID).
				Str("stock_code", task.StockCode).
				Str("query_id", snapshot.QueryID).
				Msg("Analysis task completed")
		}
	}

	q.publish(snapshot, eventType)
}

// evictLocked drops the oldest terminal tasks beyond the retention cap.
// Caller holds the queue lock.
func (q *Queue) evictLocked() {
	terminal := 0
	for _, task := range q.tasks {
		if task.Status.IsTerminal() {
			terminal++
		}
	}
	if terminal <= q.retention {
		return
	}

	excess := terminal - q.retention
	kept := q.order[:0]
	for _, id := range q.order {
		task, ok := q.tasks[id]
		if !ok {
			continue
		}
		if excess > 0 && task.Status.IsTerminal() {
			delete(q.tasks, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	q.order = kept
}

// SortTasksByCreated orders a task snapshot oldest first. Handlers use
// it for stable status-filtered listings.
func SortTasksByCreated(tasks []*models.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
}
