package core

import (
	"context"
	"encoding/json"
	"time"
)

// Preset job classes.
const (
	NotificationJobAttempts = 3
	NotificationJobTimeout  = 60 * time.Second

	// derived re-evaluations and other heavier work
	HeavyJobAttempts = 2
	HeavyJobTimeout  = 120 * time.Second
)

type (
	// Job is a unit of asynchronous work. It carries its own attempt count and timeout.
	Job struct {
		ID          string          `json:"id"`
		Handler     string          `json:"handler"`
		Payload     json.RawMessage `json:"payload"`
		MaxAttempts int             `json:"max_attempts"`
		Timeout     time.Duration   `json:"timeout"`
		EnqueuedAt  time.Time       `json:"enqueued_at"`
	}

	// JobHandler executes a job payload. It must honour ctx cancellation.
	JobHandler func(ctx context.Context, payload []byte) error

	JobQueue interface {
		Enqueue(ctx context.Context, job Job) error
	}

	// FailedJob is a job that exhausted its attempts.
	FailedJob struct {
		ID       string          `json:"id" db:"id"`
		JobID    string          `json:"job_id" db:"job_id"`
		Handler  string          `json:"handler" db:"handler"`
		Payload  json.RawMessage `json:"payload" db:"payload"`
		Attempts int             `json:"attempts" db:"attempts"`
		Error    string          `json:"error" db:"error"`
		FailedAt time.Time       `json:"failed_at" db:"failed_at"`
	}

	FailedJobRepository interface {
		CreateFailedJob(ctx context.Context, fj FailedJob) (FailedJob, error)
		QueryFailedJobs(ctx context.Context, limit int) ([]FailedJob, error)
	}
)

// NotificationJob returns a job with the notification preset (3 attempts, 60s).
func NotificationJob(handler string, payload []byte) Job {
	return Job{Handler: handler, Payload: payload, MaxAttempts: NotificationJobAttempts, Timeout: NotificationJobTimeout}
}
