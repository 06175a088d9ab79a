package queue

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startManager(t *testing.T, configs ...Config) *Manager {
	t.Helper()
	m := NewManager(configs...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = m.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return m
}

func waitForStatus(t *testing.T, m *Manager, id string, want Status) *Job {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		job, ok := m.GetJob(id)
		require.True(t, ok)
		if job.Status == want {
			return job
		}
		select {
		case <-deadline:
			t.Fatalf("job %s never reached %s, last status %s", id, want, job.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestEnqueueAndComplete(t *testing.T) {
	m := startManager(t, Config{Name: "ingest", Workers: 2})

	job, err := m.Enqueue("ingest", "pull_repository", func(context.Context) (any, error) {
		return map[string]int{"documents": 7}, nil
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, job.Status)

	done := waitForStatus(t, m, job.ID, StatusSucceeded)
	require.Equal(t, map[string]int{"documents": 7}, done.Result)
	require.Equal(t, 1, done.Attempts)
}

func TestUnknownQueue(t *testing.T) {
	m := NewManager(Config{Name: "ingest"})
	_, err := m.Enqueue("nope", "x", func(context.Context) (any, error) { return nil, nil })
	require.Error(t, err)
}

func TestRetriesUntilSuccess(t *testing.T) {
	m := startManager(t, Config{Name: "reports", MaxAttempts: 3})

	var calls atomic.Int32
	job, err := m.Enqueue("reports", "generate", func(context.Context) (any, error) {
		if calls.Add(1) < 3 {
			return nil, fmt.Errorf("transient")
		}
		return "ok", nil
	})
	require.NoError(t, err)

	done := waitForStatus(t, m, job.ID, StatusSucceeded)
	require.Equal(t, 3, done.Attempts)
	require.EqualValues(t, 3, calls.Load())
}

func TestFailureAfterAttemptsExhausted(t *testing.T) {
	m := startManager(t, Config{Name: "reports", MaxAttempts: 2})

	job, err := m.Enqueue("reports", "generate", func(context.Context) (any, error) {
		return nil, fmt.Errorf("smtp relay unreachable")
	})
	require.NoError(t, err)

	done := waitForStatus(t, m, job.ID, StatusFailed)
	require.Equal(t, 2, done.Attempts)
	require.Contains(t, done.Error, "smtp relay unreachable")
}

func TestJobTimeout(t *testing.T) {
	m := startManager(t, Config{Name: "ingest", JobTimeout: 50 * time.Millisecond, MaxAttempts: 1})

	job, err := m.Enqueue("ingest", "pull_repository", func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.NoError(t, err)

	done := waitForStatus(t, m, job.ID, StatusFailed)
	require.Contains(t, done.Error, "context deadline exceeded")
}

func TestGetJobUnknownID(t *testing.T) {
	m := NewManager(Config{Name: "ingest"})
	_, ok := m.GetJob("missing")
	require.False(t, ok)
}

func TestQueuesRunIndependently(t *testing.T) {
	m := startManager(t,
		Config{Name: "ingest", Workers: 1},
		Config{Name: "reports", Workers: 1},
	)

	blocker := make(chan struct{})
	slow, err := m.Enqueue("ingest", "pull_repository", func(context.Context) (any, error) {
		<-blocker
		return nil, nil
	})
	require.NoError(t, err)

	fast, err := m.Enqueue("reports", "generate", func(context.Context) (any, error) {
		return "done", nil
	})
	require.NoError(t, err)

	// The report queue makes progress while ingest is busy.
	waitForStatus(t, m, fast.ID, StatusSucceeded)
	close(blocker)
	waitForStatus(t, m, slow.ID, StatusSucceeded)
}
