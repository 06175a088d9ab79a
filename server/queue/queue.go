// Package queue runs asynchronous work on named in-process queues with
// bounded retry. Execution is at-least-once: a handler that fails is retried
// up to the configured attempt limit, so handlers must tolerate re-runs.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gitrag-ai/gitrag/server/metrics"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Job is the externally visible state of one unit of queued work.
type Job struct {
	ID         string `json:"id"`
	Queue      string `json:"queue"`
	Kind       string `json:"kind"`
	Status     Status `json:"status"`
	Attempts   int    `json:"attempts"`
	Error      string `json:"error,omitempty"`
	Result     any    `json:"result,omitempty"`
	EnqueuedTs int64  `json:"enqueued_ts"`
	FinishedTs int64  `json:"finished_ts,omitempty"`
}

// Handler executes one job and returns its result.
type Handler func(ctx context.Context) (any, error)

type task struct {
	job *Job
	fn  Handler
}

// Config describes one named queue.
type Config struct {
	Name        string
	Workers     int
	JobTimeout  time.Duration
	MaxAttempts int
}

type namedQueue struct {
	config Config
	tasks  chan *task
}

// Manager owns the named queues and the job registry.
type Manager struct {
	mu      sync.RWMutex
	queues  map[string]*namedQueue
	jobs    map[string]*Job
	started bool
}

// NewManager creates a manager with the given queues.
func NewManager(configs ...Config) *Manager {
	m := &Manager{
		queues: make(map[string]*namedQueue),
		jobs:   make(map[string]*Job),
	}
	for _, cfg := range configs {
		if cfg.Workers <= 0 {
			cfg.Workers = 1
		}
		if cfg.JobTimeout <= 0 {
			cfg.JobTimeout = 5 * time.Minute
		}
		if cfg.MaxAttempts <= 0 {
			cfg.MaxAttempts = 3
		}
		m.queues[cfg.Name] = &namedQueue{
			config: cfg,
			tasks:  make(chan *task, 256),
		}
	}
	return m
}

// Enqueue registers a job on the named queue and returns it immediately.
func (m *Manager) Enqueue(queueName, kind string, fn Handler) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[queueName]
	if !ok {
		return nil, fmt.Errorf("unknown queue %q", queueName)
	}

	job := &Job{
		ID:         uuid.NewString(),
		Queue:      queueName,
		Kind:       kind,
		Status:     StatusPending,
		EnqueuedTs: time.Now().Unix(),
	}
	m.jobs[job.ID] = job

	select {
	case q.tasks <- &task{job: job, fn: fn}:
	default:
		delete(m.jobs, job.ID)
		return nil, fmt.Errorf("queue %q is full", queueName)
	}

	metrics.JobsEnqueued.WithLabelValues(queueName, kind).Inc()
	slog.Info("job enqueued", "job", job.ID, "queue", queueName, "kind", kind)
	return m.snapshot(job), nil
}

// GetJob returns a copy of the job state.
func (m *Manager) GetJob(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	return m.snapshot(job), true
}

// PendingJobs counts jobs that have not reached a terminal status.
func (m *Manager) PendingJobs() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, job := range m.jobs {
		if job.Status == StatusPending || job.Status == StatusRunning {
			count++
		}
	}
	return count
}

// snapshot copies a job under the manager lock.
func (m *Manager) snapshot(job *Job) *Job {
	copied := *job
	return &copied
}

// Start launches the workers and blocks until ctx is cancelled and all
// workers have drained.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("queue manager already started")
	}
	m.started = true
	m.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, q := range m.queues {
		q := q
		for i := 0; i < q.config.Workers; i++ {
			g.Go(func() error {
				m.worker(ctx, q)
				return nil
			})
		}
	}
	return g.Wait()
}

func (m *Manager) worker(ctx context.Context, q *namedQueue) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-q.tasks:
			m.execute(ctx, q, t)
		}
	}
}

func (m *Manager) execute(ctx context.Context, q *namedQueue, t *task) {
	m.setStatus(t.job, StatusRunning, "", nil)
	start := time.Now()

	var result any
	var err error
	for attempt := 1; attempt <= q.config.MaxAttempts; attempt++ {
		m.mu.Lock()
		t.job.Attempts = attempt
		m.mu.Unlock()

		jobCtx, cancel := context.WithTimeout(ctx, q.config.JobTimeout)
		result, err = t.fn(jobCtx)
		cancel()
		if err == nil {
			break
		}

		slog.Warn("job attempt failed",
			"job", t.job.ID,
			"queue", q.config.Name,
			"kind", t.job.Kind,
			"attempt", attempt,
			"error", err)
		if attempt < q.config.MaxAttempts {
			wait := time.Duration(1<<(attempt-1)) * time.Second
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				m.setStatus(t.job, StatusFailed, ctx.Err().Error(), nil)
				return
			}
		}
	}

	metrics.JobDuration.WithLabelValues(q.config.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		m.setStatus(t.job, StatusFailed, err.Error(), nil)
		metrics.JobsCompleted.WithLabelValues(q.config.Name, string(StatusFailed)).Inc()
		return
	}
	m.setStatus(t.job, StatusSucceeded, "", result)
	metrics.JobsCompleted.WithLabelValues(q.config.Name, string(StatusSucceeded)).Inc()
	slog.Info("job finished",
		"job", t.job.ID,
		"queue", q.config.Name,
		"kind", t.job.Kind,
		"duration_ms", time.Since(start).Milliseconds())
}

func (m *Manager) setStatus(job *Job, status Status, errMsg string, result any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.Status = status
	job.Error = errMsg
	job.Result = result
	if status == StatusSucceeded || status == StatusFailed {
		job.FinishedTs = time.Now().Unix()
	}
}
