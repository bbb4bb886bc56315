package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"qdesign-backend/application/ports"
	"qdesign-backend/domain/access"
	"qdesign-backend/domain/events"
	"qdesign-backend/domain/project"
	apperrors "qdesign-backend/pkg/errors"
)

// RetrievalConfig bounds the polling of upstream jobs
type RetrievalConfig struct {
	PollInterval      time.Duration
	Timeout           time.Duration
	MaxStatusFailures int
	TaskTTL           time.Duration
}

func (c RetrievalConfig) withDefaults() RetrievalConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Minute
	}
	if c.MaxStatusFailures <= 0 {
		c.MaxStatusFailures = 5
	}
	if c.TaskTTL <= 0 {
		c.TaskTTL = time.Hour
	}
	return c
}

// TaskState is the lifecycle state of a retrieval task
type TaskState string

const (
	TaskRunning   TaskState = "running"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
	TaskCancelled TaskState = "cancelled"
	TaskTimedOut  TaskState = "timed_out"
)

// Finished reports whether the task reached a terminal state
func (s TaskState) Finished() bool {
	return s != TaskRunning
}

// RetrievalTask is a snapshot of one asynchronous retrieval
type RetrievalTask struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	JobID     string    `json:"jobId"`
	Query     string    `json:"query"`
	State     TaskState `json:"state"`
	Progress  float64   `json:"progress"`
	Error     string    `json:"error,omitempty"`
	ItemIDs   []string  `json:"itemIds,omitempty"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type retrievalRun struct {
	task   RetrievalTask
	err    error
	cancel context.CancelFunc
	done   chan struct{}
}

// RetrievalService submits queries to the external retrieval service and
// polls them in the background until they finish, fail, are cancelled or
// time out. Results land in the data pool.
type RetrievalService struct {
	docs     *Documents
	pool     *PoolService
	client   ports.RetrievalClient
	notifier ports.RoomNotifier
	cfg      RetrievalConfig
	logger   *zap.Logger

	mu    sync.Mutex
	tasks map[string]*retrievalRun

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// NewRetrievalService creates a new retrieval service
func NewRetrievalService(
	docs *Documents,
	pool *PoolService,
	client ports.RetrievalClient,
	notifier ports.RoomNotifier,
	cfg RetrievalConfig,
	logger *zap.Logger,
) *RetrievalService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	ctx, stop := context.WithCancel(context.Background())
	return &RetrievalService{
		docs:     docs,
		pool:     pool,
		client:   client,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		logger:   logger.With(zap.String("service", "retrieval")),
		tasks:    make(map[string]*retrievalRun),
		baseCtx:  ctx,
		stop:     stop,
	}
}

// Start submits query upstream and returns the running task
func (s *RetrievalService) Start(ctx context.Context, caller Caller, projectID string, q ports.RetrievalQuery) (RetrievalTask, error) {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return RetrievalTask{}, apperrors.NewValidation("query is required")
	}
	if _, err := s.docs.Load(ctx, "RetrievalService.Start", caller, projectID, access.Edit); err != nil {
		return RetrievalTask{}, err
	}

	jobID, err := s.client.Submit(ctx, q)
	if err != nil {
		return RetrievalTask{}, classifyUpstream(err, "failed to submit retrieval job")
	}

	now := s.docs.now()
	runCtx, cancel := context.WithTimeout(s.baseCtx, s.cfg.Timeout)
	run := &retrievalRun{
		task: RetrievalTask{
			ID:        project.NewID(),
			ProjectID: projectID,
			JobID:     jobID,
			Query:     q.Query,
			State:     TaskRunning,
			CreatedBy: caller.UserID,
			CreatedAt: now,
			UpdatedAt: now,
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.pruneLocked(now)
	s.tasks[run.task.ID] = run
	snapshot := run.task
	s.mu.Unlock()

	s.logger.Info("Retrieval task started",
		zap.String("taskID", snapshot.ID),
		zap.String("jobID", jobID),
		zap.String("projectID", projectID))

	// results are written under the caller's identity but not attributed
	// to their session, so every open view receives them
	bg := caller
	bg.SessionID = ""

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.poll(runCtx, run, bg)
	}()
	return snapshot, nil
}

func (s *RetrievalService) poll(ctx context.Context, run *retrievalRun, caller Caller) {
	defer close(run.done)
	defer run.cancel()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				s.finish(run, TaskTimedOut, apperrors.NewUpstreamTimeout(
					fmt.Sprintf("retrieval did not finish within %s", s.cfg.Timeout), ctx.Err()))
			} else {
				s.finish(run, TaskCancelled, nil)
			}
			return
		case <-ticker.C:
		}

		status, err := s.client.Status(ctx, run.task.JobID)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			failures++
			s.logger.Warn("Retrieval status check failed",
				zap.String("taskID", run.task.ID),
				zap.Int("failures", failures),
				zap.Error(err))
			if failures >= s.cfg.MaxStatusFailures {
				s.finish(run, TaskFailed, classifyUpstream(err, "retrieval status unavailable"))
				return
			}
			continue
		}
		failures = 0

		switch status.State {
		case ports.JobCompleted:
			itemIDs, err := s.storeResults(ctx, run.task.ProjectID, caller, status.Results)
			s.mu.Lock()
			run.task.ItemIDs = itemIDs
			run.task.Progress = 1
			s.mu.Unlock()
			if err != nil {
				s.finish(run, TaskFailed, err)
			} else {
				s.finish(run, TaskCompleted, nil)
			}
			return
		case ports.JobFailed:
			msg := status.Error
			if msg == "" {
				msg = "retrieval job failed upstream"
			}
			s.finish(run, TaskFailed, apperrors.NewInternal(msg, nil))
			return
		default:
			s.mu.Lock()
			run.task.Progress = status.Progress
			run.task.UpdatedAt = s.docs.now()
			s.mu.Unlock()
		}
	}
}

func (s *RetrievalService) storeResults(ctx context.Context, projectID string, caller Caller, results []ports.RetrievalResult) ([]string, error) {
	if len(results) == 0 {
		return nil, nil
	}

	// the run context may be about to expire; the write gets its own budget
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	items := make([]NewPoolItem, 0, len(results))
	for _, r := range results {
		items = append(items, resultToItem(r))
	}
	added, err := s.pool.AddItems(writeCtx, caller, projectID, items)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(added))
	for _, item := range added {
		ids = append(ids, item.ID)
		s.notifier.Broadcast(projectID, events.PoolItemAdded, events.PoolItemData{Item: item}, caller.origin())
	}
	return ids, nil
}

func resultToItem(r ports.RetrievalResult) NewPoolItem {
	itemType := project.ItemTypeText
	if strings.EqualFold(r.Kind, "pdf") {
		itemType = project.ItemTypePDF
	}
	name := strings.TrimSpace(r.Title)
	if name == "" {
		name = "Retrieved document"
	}
	content := r.Content
	if content == "" {
		content = r.Summary
	}
	description := r.Summary
	if r.URL != "" {
		description = strings.TrimSpace(description + "\n" + r.URL)
	}
	return NewPoolItem{
		Type:        itemType,
		Name:        name,
		Description: description,
		Content:     content,
		ContentType: "text/plain",
	}
}

func (s *RetrievalService) finish(run *retrievalRun, state TaskState, err error) {
	s.mu.Lock()
	if !run.task.State.Finished() {
		run.task.State = state
		run.err = err
		if err != nil {
			run.task.Error = apperrors.PublicMessage(err)
		}
		run.task.UpdatedAt = s.docs.now()
	}
	final := run.task.State
	s.mu.Unlock()

	s.docs.metrics.RetrievalFinished(string(final))
	s.logger.Info("Retrieval task finished",
		zap.String("taskID", run.task.ID),
		zap.String("state", string(final)),
		zap.Error(err))
}

func (s *RetrievalService) pruneLocked(now time.Time) {
	for id, run := range s.tasks {
		if run.task.State.Finished() && now.Sub(run.task.UpdatedAt) > s.cfg.TaskTTL {
			delete(s.tasks, id)
		}
	}
}

func (s *RetrievalService) lookup(projectID, taskID string) (*retrievalRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.tasks[taskID]
	if !ok || run.task.ProjectID != projectID {
		return nil, apperrors.NewNotFound("retrieval task not found")
	}
	return run, nil
}

func (s *RetrievalService) snapshot(run *retrievalRun) RetrievalTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := run.task
	t.ItemIDs = append([]string(nil), run.task.ItemIDs...)
	return t
}

// Get returns the task's current state
func (s *RetrievalService) Get(ctx context.Context, caller Caller, projectID, taskID string) (RetrievalTask, error) {
	if _, err := s.docs.Read(ctx, "RetrievalService.Get", caller, projectID); err != nil {
		return RetrievalTask{}, err
	}
	run, err := s.lookup(projectID, taskID)
	if err != nil {
		return RetrievalTask{}, err
	}
	return s.snapshot(run), nil
}

// Cancel stops a running task. Cancelling a finished task returns it
// unchanged.
func (s *RetrievalService) Cancel(ctx context.Context, caller Caller, projectID, taskID string) (RetrievalTask, error) {
	if _, err := s.docs.Load(ctx, "RetrievalService.Cancel", caller, projectID, access.Edit); err != nil {
		return RetrievalTask{}, err
	}
	run, err := s.lookup(projectID, taskID)
	if err != nil {
		return RetrievalTask{}, err
	}

	s.mu.Lock()
	if !run.task.State.Finished() {
		run.task.State = TaskCancelled
		run.task.UpdatedAt = s.docs.now()
	}
	s.mu.Unlock()
	run.cancel()

	return s.snapshot(run), nil
}

// Wait blocks until the task finishes or ctx is done. The error is the
// task's failure, UpstreamTimeout for a timed out task.
func (s *RetrievalService) Wait(ctx context.Context, taskID string) (RetrievalTask, error) {
	s.mu.Lock()
	run, ok := s.tasks[taskID]
	s.mu.Unlock()
	if !ok {
		return RetrievalTask{}, apperrors.NewNotFound("retrieval task not found")
	}

	select {
	case <-run.done:
	case <-ctx.Done():
		return s.snapshot(run), ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t := run.task
	t.ItemIDs = append([]string(nil), run.task.ItemIDs...)
	return t, run.err
}

// Close cancels every running task and waits for the pollers to exit
func (s *RetrievalService) Close() {
	s.stop()
	s.wg.Wait()
}

func classifyUpstream(err error, msg string) error {
	if apperrors.IsUpstreamTimeout(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewUpstreamTimeout(msg, err)
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return apperrors.Wrap(err, msg)
	}
	return apperrors.NewInternal(msg, err)
}
