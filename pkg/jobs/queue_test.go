package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	done := make(chan string, 3)
	q := NewQueue("render", func(_ context.Context, job Job[string]) error {
		done <- job.Payload
		return nil
	}, QueueConfig{Workers: 2})

	require.Error(t, q.Enqueue(Job[string]{ID: "early"}))

	q.Start(context.Background())
	defer q.Stop()

	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(Job[string]{ID: p, Payload: p}))
	}

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		select {
		case p := <-done:
			seen[p] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}
	require.Len(t, seen, 3)
}

func TestQueueRetriesThenReportsFailure(t *testing.T) {
	var calls atomic.Int32
	failed := make(chan Job[int], 1)
	q := NewQueue("render", func(context.Context, Job[int]) error {
		calls.Add(1)
		return errors.New("boom")
	}, QueueConfig{MaxRetries: 2, RetryDelay: time.Millisecond})
	q.OnFailure(func(job Job[int], err error) {
		failed <- job
	})

	q.Start(context.Background())
	defer q.Stop()
	require.NoError(t, q.Enqueue(Job[int]{ID: "x", Payload: 7}))

	select {
	case job := <-failed:
		require.Equal(t, 3, job.Attempt)
		require.Equal(t, 7, job.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("failure hook not called")
	}
	require.Equal(t, int32(3), calls.Load())
}

func TestQueueDoesNotRetryPermanentErrors(t *testing.T) {
	var calls atomic.Int32
	failed := make(chan error, 1)
	cause := errors.New("bad input")
	q := NewQueue("render", func(context.Context, Job[int]) error {
		calls.Add(1)
		return Permanent(cause)
	}, QueueConfig{MaxRetries: 3, RetryDelay: time.Millisecond})
	q.OnFailure(func(_ Job[int], err error) { failed <- err })

	q.Start(context.Background())
	defer q.Stop()
	require.NoError(t, q.Enqueue(Job[int]{ID: "x"}))

	select {
	case err := <-failed:
		require.ErrorIs(t, err, cause)
		require.True(t, IsPermanent(err))
		require.Equal(t, "bad input", err.Error())
	case <-time.After(2 * time.Second):
		t.Fatal("failure hook not called")
	}
	require.Equal(t, int32(1), calls.Load())
	require.Nil(t, Permanent(nil))
}

func TestQueueWithoutRetries(t *testing.T) {
	failed := make(chan struct{}, 1)
	q := NewQueue("render", func(context.Context, Job[int]) error {
		return errors.New("boom")
	}, QueueConfig{})
	q.OnFailure(func(Job[int], error) { failed <- struct{}{} })
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job[int]{ID: "x"}))
	select {
	case <-failed:
	case <-time.After(2 * time.Second):
		t.Fatal("failure hook not called")
	}
}

func TestQueueStopRejectsNewJobs(t *testing.T) {
	q := NewQueue("render", func(context.Context, Job[int]) error { return nil }, QueueConfig{})
	q.Start(context.Background())
	q.Stop()
	q.Stop()
	require.Error(t, q.Enqueue(Job[int]{ID: "late"}))
}
