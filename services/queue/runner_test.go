package queuesvc

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/madrasa/core"
	logsvc "github.com/trezcool/madrasa/services/logger"
	"github.com/trezcool/madrasa/storage/database/inmem"
)

var errFlaky = errors.New("flaky")

func newTestRunner(handlers map[string]core.JobHandler) (*Runner, core.FailedJobRepository, *logsvc.RecordingLogger) {
	failed := inmemdb.NewFailedJobRepository(inmemdb.Open())
	logger := logsvc.NewNopLogger()
	return NewRunner(handlers, failed, time.Millisecond, logger), failed, logger
}

// failing returns a handler failing its first n calls, and its call counter.
func failing(n int32) (core.JobHandler, *int32) {
	var calls int32
	return func(context.Context, []byte) error {
		if atomic.AddInt32(&calls, 1) <= n {
			return errFlaky
		}
		return nil
	}, &calls
}

func TestRunner_Run(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		failures    int32
		maxAttempts int
		wantErr     error
		wantCalls   int32
		wantFailed  int
	}{
		{name: "succeeds first time", maxAttempts: 3, wantCalls: 1},
		{name: "succeeds on retry", failures: 2, maxAttempts: 3, wantCalls: 3},
		{name: "exhausts attempts", failures: 3, maxAttempts: 3, wantErr: errFlaky, wantCalls: 3, wantFailed: 1},
		{name: "no attempt count means one", failures: 1, wantErr: errFlaky, wantCalls: 1, wantFailed: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, calls := failing(tt.failures)
			runner, failed, _ := newTestRunner(map[string]core.JobHandler{"mail": handler})

			err := runner.Run(ctx, core.Job{ID: "j1", Handler: "mail", Payload: []byte(`{}`), MaxAttempts: tt.maxAttempts})
			assert.Equal(t, tt.wantErr, errors.Cause(err))
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(calls))

			fjs, err := failed.QueryFailedJobs(ctx, 0)
			require.NoError(t, err)
			if assert.Len(t, fjs, tt.wantFailed) && tt.wantFailed > 0 {
				assert.Equal(t, "j1", fjs[0].JobID)
				assert.Equal(t, "mail", fjs[0].Handler)
				assert.Equal(t, int(tt.wantCalls), fjs[0].Attempts)
				assert.Equal(t, errFlaky.Error(), fjs[0].Error)
				assert.JSONEq(t, `{}`, string(fjs[0].Payload))
			}
		})
	}
}

func TestRunner_Run_permanentFailure(t *testing.T) {
	var calls int32
	errBad := errors.New("bad payload")
	runner, failed, _ := newTestRunner(map[string]core.JobHandler{
		"mail": func(context.Context, []byte) error {
			atomic.AddInt32(&calls, 1)
			return errors.Wrap(core.Permanent(errBad), "decoding")
		},
	})

	err := runner.Run(context.Background(), core.Job{ID: "j1", Handler: "mail", MaxAttempts: 3})
	assert.Equal(t, errBad, errors.Cause(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "not retried")

	fjs, err := failed.QueryFailedJobs(context.Background(), 0)
	require.NoError(t, err)
	if assert.Len(t, fjs, 1) {
		assert.Equal(t, 1, fjs[0].Attempts)
		assert.Equal(t, "decoding: bad payload", fjs[0].Error)
	}
}

func TestRunner_Run_unknownHandler(t *testing.T) {
	runner, failed, logger := newTestRunner(map[string]core.JobHandler{})

	err := runner.Run(context.Background(), core.Job{ID: "j1", Handler: "lol"})
	assert.Equal(t, ErrUnknownHandler, errors.Cause(err))

	fjs, err := failed.QueryFailedJobs(context.Background(), 0)
	require.NoError(t, err)
	if assert.Len(t, fjs, 1) {
		assert.Equal(t, 0, fjs[0].Attempts)
	}
	assert.Len(t, logger.Entries("error"), 1)
}

func TestRunner_Run_timeout(t *testing.T) {
	var calls int32
	runner, failed, _ := newTestRunner(map[string]core.JobHandler{
		"slow": func(ctx context.Context, _ []byte) error {
			atomic.AddInt32(&calls, 1)
			<-ctx.Done()
			return ctx.Err()
		},
		"stuck": func(context.Context, []byte) error {
			time.Sleep(time.Second) // ignores its context
			return nil
		},
	})

	for _, handler := range []string{"slow", "stuck"} {
		t.Run(handler, func(t *testing.T) {
			start := time.Now()
			err := runner.Run(context.Background(), core.Job{Handler: handler, MaxAttempts: 2, Timeout: 20 * time.Millisecond})
			assert.Equal(t, ErrJobTimeout, errors.Cause(err))
			assert.Less(t, time.Since(start), 500*time.Millisecond)
		})
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "a timed out attempt is retried")

	fjs, err := failed.QueryFailedJobs(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, fjs, 2)
}

func TestRunner_Run_panic(t *testing.T) {
	runner, failed, _ := newTestRunner(map[string]core.JobHandler{
		"boom": func(context.Context, []byte) error { panic("oops") },
	})

	err := runner.Run(context.Background(), core.Job{Handler: "boom", MaxAttempts: 2})
	if assert.Error(t, err) {
		assert.Equal(t, "panic: oops", err.Error())
	}
	fjs, err := failed.QueryFailedJobs(context.Background(), 0)
	require.NoError(t, err)
	if assert.Len(t, fjs, 1) {
		assert.Equal(t, 2, fjs[0].Attempts)
	}
}

func TestRunner_Run_shutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner, failed, logger := newTestRunner(map[string]core.JobHandler{
		"mail": func(ctx context.Context, _ []byte) error {
			cancel()
			<-ctx.Done()
			return ctx.Err()
		},
	})

	err := runner.Run(ctx, core.Job{Handler: "mail", MaxAttempts: 3, Timeout: time.Minute})
	assert.Error(t, err)

	fjs, err := failed.QueryFailedJobs(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, fjs, "an interrupted job is not a failed job")
	assert.NotEmpty(t, logger.Entries("warn"))
}

func TestMemory_Drain(t *testing.T) {
	ctx := context.Background()
	q := NewMemory()

	var order []string
	runner, _, _ := newTestRunner(map[string]core.JobHandler{
		"parent": func(ctx context.Context, _ []byte) error {
			order = append(order, "parent")
			return q.Enqueue(ctx, core.Job{Handler: "child"})
		},
		"child": func(context.Context, []byte) error {
			order = append(order, "child")
			return nil
		},
	})

	require.NoError(t, q.Enqueue(ctx, core.Job{Handler: "parent"}))
	require.NoError(t, q.Enqueue(ctx, core.Job{Handler: "child"}))
	jobs := q.Jobs()
	require.Len(t, jobs, 2)
	assert.NotEmpty(t, jobs[0].ID)
	assert.False(t, jobs[0].EnqueuedAt.IsZero())

	assert.Equal(t, 3, q.Drain(ctx, runner))
	assert.Equal(t, []string{"parent", "child", "child"}, order)
	assert.Equal(t, 0, q.Len())
}

func TestLocal_Run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := NewLocal(3, 10, logsvc.NewNopLogger())

	var done int32
	runner, _, _ := newTestRunner(map[string]core.JobHandler{
		"mail": func(context.Context, []byte) error {
			atomic.AddInt32(&done, 1)
			return nil
		},
	})

	stopped := make(chan struct{})
	go func() {
		q.Run(ctx, runner)
		close(stopped)
	}()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(ctx, core.Job{Handler: "mail"}))
	}
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&done) == 5 }, time.Second, 5*time.Millisecond)

	cancel()
	<-stopped
	assert.Equal(t, ErrQueueClosed, q.Enqueue(context.Background(), core.Job{Handler: "mail"}))
}
