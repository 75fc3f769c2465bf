// Package jobs runs background work on an in-memory worker pool with bounded retries.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrNotStarted is returned when enqueueing before Start or after Stop.
	ErrNotStarted = errors.New("jobs: queue not running")
	// ErrUnknownType is returned for jobs without a registered handler.
	ErrUnknownType = errors.New("jobs: no handler for job type")
)

// Job is one unit of background work.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job. Returning an error schedules a retry.
type Handler func(context.Context, Job) error

// Observer is told about every finished attempt.
type Observer interface {
	JobProcessed(jobType, outcome string, duration time.Duration)
}

// Outcomes reported to Observer.
const (
	OutcomeSuccess = "success"
	OutcomeRetry   = "retry"
	OutcomeFailed  = "failed"
)

// QueueConfig tunes the worker pool.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
	Observer   Observer
}

// Queue dispatches jobs to handlers registered per job type.
type Queue struct {
	name       string
	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.SugaredLogger
	observer   Observer

	jobs chan Job

	mu       sync.RWMutex
	handlers map[string]Handler
	ctx      context.Context
	cancel   context.CancelFunc
	running  bool
	wg       sync.WaitGroup
}

// NewQueue builds a stopped queue.
func NewQueue(name string, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 8
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue{
		name:       name,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger.Sugar().With("queue", name),
		observer:   cfg.Observer,
		jobs:       make(chan Job, cfg.BufferSize),
		handlers:   map[string]Handler{},
	}
}

// Register binds a handler to a job type. Registering twice replaces the handler.
func (q *Queue) Register(jobType string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = h
}

// Start launches the workers. Calling it on a running queue does nothing.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.running = true
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	q.logger.Infow("queue started", "workers", q.workers)
}

// Stop cancels the workers and waits for in-flight handlers to return.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Infow("queue stopped")
}

// Enqueue submits a job and returns its id. It blocks while the buffer is full.
func (q *Queue) Enqueue(jobType string, payload interface{}) (string, error) {
	job := Job{ID: uuid.NewString(), Type: jobType, Payload: payload, Enqueued: time.Now().UTC()}
	return job.ID, q.push(job)
}

func (q *Queue) push(job Job) error {
	q.mu.RLock()
	running, ctx := q.running, q.ctx
	_, known := q.handlers[job.Type]
	q.mu.RUnlock()
	if !running {
		return fmt.Errorf("%s: %w", q.name, ErrNotStarted)
	}
	if !known {
		return fmt.Errorf("%s %q: %w", q.name, job.Type, ErrUnknownType)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", q.name, ErrNotStarted)
	case q.jobs <- job:
		return nil
	}
}

func (q *Queue) work() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			q.run(job)
		}
	}
}

func (q *Queue) run(job Job) {
	q.mu.RLock()
	h := q.handlers[job.Type]
	q.mu.RUnlock()

	start := time.Now()
	err := h(q.ctx, job)
	switch {
	case err == nil:
		q.observe(job.Type, OutcomeSuccess, start)
	case job.Attempt >= q.maxRetries:
		q.observe(job.Type, OutcomeFailed, start)
		q.logger.Errorw("job failed permanently", "job_id", job.ID, "type", job.Type, "attempts", job.Attempt+1, "error", err)
	default:
		q.observe(job.Type, OutcomeRetry, start)
		job.Attempt++
		delay := q.retryDelay * time.Duration(1<<uint(job.Attempt-1))
		q.logger.Warnw("job failed, retrying", "job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "delay", delay, "error", err)
		q.retryAfter(job, delay)
	}
}

func (q *Queue) retryAfter(job Job, delay time.Duration) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
		case <-timer.C:
			if err := q.push(job); err != nil {
				q.logger.Errorw("requeue failed", "job_id", job.ID, "error", err)
			}
		}
	}()
}

func (q *Queue) observe(jobType, outcome string, start time.Time) {
	if q.observer != nil {
		q.observer.JobProcessed(jobType, outcome, time.Since(start))
	}
}
