package tasks

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/coverx/internal/shared"
)

// JobState is the lifecycle state of a queued job.
type JobState string

const (
	JobAccepted  JobState = "accepted"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// maxTrackedJobs bounds the in-memory job status history.
const maxTrackedJobs = 256

// Job is a unit of background work.
type Job struct {
	ID    string
	Name  string
	Owner string // local user the job runs for; empty for system jobs
	Run   func(ctx context.Context) error
	// OnDone, when set, is called with the final status once it has been recorded.
	OnDone func(JobStatus)
}

// JobStatus is the last known state of a job.
type JobStatus struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	State    JobState  `json:"state"`
	Error    string    `json:"error,omitempty"`
	Started  time.Time `json:"started_at,omitzero"`
	Finished time.Time `json:"finished_at,omitzero"`
	Owner    string    `json:"-"`
}

// Queue runs jobs on a fixed pool of worker goroutines, detached from the submitting request.
//
// Each job gets a fresh background context bounded by the queue's job timeout. Failures and
// panics are reported to the queue's logger; submitters only learn that a job was accepted.
type Queue struct {
	jobs    chan Job
	wg      sync.WaitGroup
	timeout time.Duration
	logger  *log.Logger

	mu       sync.RWMutex
	closed   bool
	statuses map[string]*JobStatus
	order    []string
}

// NewQueue starts workers goroutines reading from a buffer of size jobs.
// A non-positive timeout leaves jobs unbounded.
func NewQueue(workers, size int, timeout time.Duration, logger *log.Logger) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if size < 0 {
		size = 0
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	q := &Queue{
		jobs:     make(chan Job, size),
		timeout:  timeout,
		logger:   shared.WithLogger(logger, "component", "queue"),
		statuses: make(map[string]*JobStatus),
	}

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	return q
}

// Submit enqueues job without blocking.
//
// Returns [shared.ErrQueueFull] when the buffer is full and [shared.ErrServiceUnavailable]
// after [Queue.Shutdown].
func (q *Queue) Submit(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return fmt.Errorf("%w: queue is shut down", shared.ErrServiceUnavailable)
	}
	if job.ID == "" {
		job.ID = shared.GenerateID()
	}

	select {
	case q.jobs <- job:
	default:
		return fmt.Errorf("%w: %d jobs pending", shared.ErrQueueFull, len(q.jobs))
	}

	q.track(&JobStatus{ID: job.ID, Name: job.Name, State: JobAccepted, Owner: job.Owner})
	return nil
}

// Status returns a copy of the last known status of job id.
func (q *Queue) Status(id string) (JobStatus, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	s, ok := q.statuses[id]
	if !ok {
		return JobStatus{}, false
	}
	return *s, true
}

// Shutdown stops accepting jobs and waits for queued and running jobs to finish or ctx to end.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue shutdown: %w", ctx.Err())
	}
}

func (q *Queue) worker(n int) {
	defer q.wg.Done()
	for job := range q.jobs {
		q.run(n, job)
	}
}

func (q *Queue) run(worker int, job Job) {
	logger := q.logger.With("job", job.ID, "name", job.Name, "worker", worker)

	ctx, cancel := context.Background(), context.CancelFunc(func() {})
	if q.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
	}
	defer cancel()

	q.update(job.ID, func(s *JobStatus) {
		s.State = JobRunning
		s.Started = shared.SystemClock()
	})
	logger.Debug("job started")

	err := q.safeRun(ctx, job)

	q.update(job.ID, func(s *JobStatus) {
		s.Finished = shared.SystemClock()
		if err != nil {
			s.State = JobFailed
			s.Error = err.Error()
			return
		}
		s.State = JobSucceeded
	})
	if job.OnDone != nil {
		status, _ := q.Status(job.ID)
		job.OnDone(status)
	}

	if err != nil {
		logger.Error("job failed", "err", err)
		return
	}
	logger.Info("job finished")
}

func (q *Queue) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Run(ctx)
}

// track records s, evicting the oldest status past maxTrackedJobs. Callers hold q.mu.
func (q *Queue) track(s *JobStatus) {
	q.statuses[s.ID] = s
	q.order = append(q.order, s.ID)
	if len(q.order) > maxTrackedJobs {
		delete(q.statuses, q.order[0])
		q.order = q.order[1:]
	}
}

func (q *Queue) update(id string, fn func(*JobStatus)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if s, ok := q.statuses[id]; ok {
		fn(s)
	}
}
