package queuesvc

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/metrics"
)

var (
	ErrUnknownHandler = errors.New("unknown job handler")
	ErrJobTimeout     = errors.New("job timed out")
)

var tracer = otel.Tracer("github.com/trezcool/madrasa/services/queue")

// JobRunner executes a single job to completion or failure.
type JobRunner interface {
	Run(ctx context.Context, job core.Job) error
}

// Runner runs jobs with the attempt count and timeout they carry.
// A job that exhausts its attempts, or fails permanently, is logged and stored as a failed job.
type Runner struct {
	handlers map[string]core.JobHandler
	failed   core.FailedJobRepository
	delay    time.Duration
	logger   core.Logger
}

var _ JobRunner = (*Runner)(nil)

func NewRunner(handlers map[string]core.JobHandler, failed core.FailedJobRepository, retryDelay time.Duration, logger core.Logger) *Runner {
	return &Runner{handlers: handlers, failed: failed, delay: retryDelay, logger: logger}
}

func (r *Runner) Run(ctx context.Context, job core.Job) error {
	ctx, span := tracer.Start(ctx, "queue.Run", trace.WithAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("job.handler", job.Handler),
	))
	defer span.End()

	handler, ok := r.handlers[job.Handler]
	if !ok {
		err := errors.Wrap(ErrUnknownHandler, job.Handler)
		r.fail(ctx, job, 0, err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	maxAttempts := job.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = core.NotificationJobTimeout
	}

	start := time.Now()
	attempts := 0
	err := retry.Do(
		func() error {
			attempts++
			metrics.JobAttempts.WithLabelValues(job.Handler).Inc()
			return r.attempt(ctx, handler, job.Payload, timeout)
		},
		retry.Attempts(uint(maxAttempts)),
		retry.Delay(r.delay),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return !core.IsPermanent(err) }),
		retry.OnRetry(func(n uint, err error) {
			r.logger.Warn(fmt.Sprintf("job %s (%s) attempt %d/%d failed: %v", job.ID, job.Handler, n+1, maxAttempts, err))
		}),
	)
	metrics.JobDuration.WithLabelValues(job.Handler).Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("job.attempts", attempts))

	if err != nil && ctx.Err() != nil {
		metrics.JobsProcessed.WithLabelValues(job.Handler, "interrupted").Inc()
		r.logger.Warn(fmt.Sprintf("job %s (%s) interrupted after %d attempt(s): %v", job.ID, job.Handler, attempts, err))
		return err
	}
	if err != nil {
		r.fail(ctx, job, attempts, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	metrics.JobsProcessed.WithLabelValues(job.Handler, "succeeded").Inc()
	return nil
}

// attempt bounds one handler call by timeout. The handler gets a context with the same deadline;
// a handler that ignores it is abandoned once the deadline passes.
func (r *Runner) attempt(ctx context.Context, handler core.JobHandler, payload []byte, timeout time.Duration) error {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- errors.Errorf("panic: %v", p)
			}
		}()
		done <- handler(actx, payload)
	}()

	select {
	case err := <-done:
		if err != nil && ctx.Err() == nil && actx.Err() == context.DeadlineExceeded {
			return errors.Wrapf(ErrJobTimeout, "after %s", timeout)
		}
		return err
	case <-actx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrapf(ErrJobTimeout, "after %s", timeout)
	}
}

func (r *Runner) fail(ctx context.Context, job core.Job, attempts int, err error) {
	metrics.JobsProcessed.WithLabelValues(job.Handler, "failed").Inc()
	r.logger.Error(fmt.Sprintf("job %s (%s) failed after %d attempt(s): %v", job.ID, job.Handler, attempts, err), err)

	if r.failed == nil {
		return
	}
	_, ferr := r.failed.CreateFailedJob(context.WithoutCancel(ctx), core.FailedJob{
		ID:       uuid.NewString(),
		JobID:    job.ID,
		Handler:  job.Handler,
		Payload:  job.Payload,
		Attempts: attempts,
		Error:    err.Error(),
		FailedAt: time.Now().UTC(),
	})
	if ferr != nil {
		r.logger.Error(fmt.Sprintf("storing failed job %s: %v", job.ID, ferr), ferr)
	}
}

// prepare gives a job about to be enqueued its id and enqueue time.
func prepare(job core.Job) core.Job {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	return job
}
