package queuesvc

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/madrasa/core"
)

// Queue drivers
const (
	DriverLocal    = "local"
	DriverRabbitMQ = "rabbitmq"
)

var ErrQueueClosed = errors.New("queue is closed")

// Local is an in-process queue: a buffered channel drained by a fixed pool of workers.
// Jobs still buffered when the pool stops are lost.
type Local struct {
	jobs    chan core.Job
	workers int
	logger  core.Logger

	mu     sync.RWMutex
	closed bool
}

var _ core.JobQueue = (*Local)(nil)

func NewLocal(workers, buffer int, logger core.Logger) *Local {
	if workers < 1 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	return &Local{jobs: make(chan core.Job, buffer), workers: workers, logger: logger}
}

func (q *Local) Enqueue(ctx context.Context, job core.Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- prepare(job):
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "enqueuing job")
	}
}

// Run starts the workers and blocks until ctx is done and every running job has returned.
func (q *Local) Run(ctx context.Context, runner JobRunner) {
	var wg sync.WaitGroup
	wg.Add(q.workers)
	for i := 0; i < q.workers; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-q.jobs:
					_ = runner.Run(ctx, job) // failures are logged and stored by the runner
				}
			}
		}()
	}
	wg.Wait()

	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	if n := len(q.jobs); n > 0 {
		q.logger.Warn("local queue stopped with pending jobs", map[string]interface{}{"pending": n})
	}
}
