package queuesvc

import (
	"context"
	"sync"

	"github.com/trezcool/madrasa/core"
)

// Memory records enqueued jobs; nothing runs until Drain is called.
type Memory struct {
	mu   sync.Mutex
	jobs []core.Job
}

var _ core.JobQueue = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{}
}

func (q *Memory) Enqueue(_ context.Context, job core.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, prepare(job))
	return nil
}

// Jobs returns the pending jobs, oldest first.
func (q *Memory) Jobs() []core.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]core.Job(nil), q.jobs...)
}

func (q *Memory) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *Memory) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = nil
}

func (q *Memory) pop() (core.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return core.Job{}, false
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, true
}

// Drain runs pending jobs in order, including the ones they enqueue, until none is left.
// It returns the number of jobs run.
func (q *Memory) Drain(ctx context.Context, runner JobRunner) int {
	n := 0
	for ctx.Err() == nil {
		job, ok := q.pop()
		if !ok {
			break
		}
		_ = runner.Run(ctx, job)
		n++
	}
	return n
}
