package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrCodeEU/facekiosk/pkg/metrics"
)

// ErrBusy is returned when a question is submitted while another is pending.
var ErrBusy = errors.New("a query is already in progress")

// maxJobs bounds the finished jobs kept for retrieval.
const maxJobs = 32

// JobStatus is the lifecycle state of a query.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job is one submitted question. For failed jobs Answer holds the error text
// shown to the user.
type Job struct {
	ID          string    `json:"id"`
	Question    string    `json:"question"`
	Status      JobStatus `json:"status"`
	Answer      string    `json:"answer,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
}

// Asker answers one question.
type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Queue runs questions one at a time on a single worker.
type Queue struct {
	asker Asker
	work  chan string

	mu      sync.Mutex
	jobs    map[string]*Job
	order   []string
	pending string
}

// NewQueue creates a queue. Call Run to start the worker.
func NewQueue(asker Asker) *Queue {
	return &Queue{
		asker: asker,
		work:  make(chan string, 1),
		jobs:  make(map[string]*Job),
	}
}

// Submit enqueues question and returns its job. It fails with ErrBusy while
// another question is pending.
func (q *Queue) Submit(question string) (Job, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Job{}, ErrEmptyQuestion
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending != "" {
		metrics.AssistantQueries.WithLabelValues("busy").Inc()
		return Job{}, ErrBusy
	}

	job := &Job{
		ID:          uuid.NewString(),
		Question:    question,
		Status:      JobPending,
		SubmittedAt: time.Now(),
	}
	q.jobs[job.ID] = job
	q.order = append(q.order, job.ID)
	q.evict()
	q.pending = job.ID
	q.work <- job.ID
	return *job, nil
}

// evict drops the oldest finished jobs beyond maxJobs. Must be called with mu
// held.
func (q *Queue) evict() {
	for len(q.order) > maxJobs {
		id := q.order[0]
		if id == q.pending {
			return
		}
		delete(q.jobs, id)
		q.order = q.order[1:]
	}
}

// Get returns a snapshot of the job with id.
func (q *Queue) Get(id string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Busy reports whether a question is pending.
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending != ""
}

// Run processes submitted questions until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-q.work:
			q.process(ctx, id)
		}
	}
}

func (q *Queue) process(ctx context.Context, id string) {
	q.mu.Lock()
	question := q.jobs[id].Question
	q.mu.Unlock()

	answer, err := q.asker.Ask(ctx, question)

	q.mu.Lock()
	defer q.mu.Unlock()
	job := q.jobs[id]
	job.FinishedAt = time.Now()
	if err != nil {
		job.Status = JobFailed
		job.Answer = "query failed: " + err.Error()
	} else {
		job.Status = JobDone
		job.Answer = answer
	}
	q.pending = ""
}
