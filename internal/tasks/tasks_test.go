package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForResult(t *testing.T, m *Manager, name string) TaskStatus {
	t.Helper()
	var status TaskStatus
	require.Eventually(t, func() bool {
		for _, s := range m.ListStatus() {
			if s.Name == name && s.LastResult != "" && !s.Running {
				status = s
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
	return status
}

func TestTrigger(t *testing.T) {
	m := NewManager(time.Second)
	defer m.Close()

	m.Register("ok", 0, func(_ context.Context, logger zerolog.Logger) error {
		logger.Warn().Msg("hello from task")
		return nil
	})
	m.Register("fails", 0, func(context.Context, zerolog.Logger) error {
		return errors.New("boom")
	})

	require.NoError(t, m.Trigger("ok"))
	require.NoError(t, m.Trigger("fails"))

	assert.Equal(t, ResultSuccess, waitForResult(t, m, "ok").LastResult)
	assert.Equal(t, "failed: boom", waitForResult(t, m, "fails").LastResult)

	logs, err := m.GetLogs("ok")
	require.NoError(t, err)
	var messages []string
	for _, l := range logs {
		messages = append(messages, l.Message)
	}
	assert.Contains(t, messages, "hello from task")

	var notFound TaskNotFoundError
	assert.ErrorAs(t, m.Trigger("missing"), &notFound)
	_, err = m.GetLogs("missing")
	assert.ErrorAs(t, err, &notFound)
}

func TestListStatusSorted(t *testing.T) {
	m := NewManager(0)
	defer m.Close()

	noop := func(context.Context, zerolog.Logger) error { return nil }
	m.Register("b", 0, noop)
	m.Register("a", time.Hour, noop)

	list := m.ListStatus()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
	assert.Equal(t, "1h0m0s", list[0].Interval)
	assert.False(t, list[0].NextRun.IsZero())
	assert.True(t, list[1].NextRun.IsZero(), "manual tasks have no next run")
}

func TestScheduledRunsAndClose(t *testing.T) {
	m := NewManager(time.Second)

	var runs atomic.Int32
	m.Register("tick", 10*time.Millisecond, func(context.Context, zerolog.Logger) error {
		runs.Add(1)
		return nil
	})

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	m.Close()

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no runs after Close")
}

func TestRunIsExclusiveAndTimesOut(t *testing.T) {
	task := &RunnableTask{
		Name: "slow",
		Handler: func(ctx context.Context, _ zerolog.Logger) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}

	started := make(chan struct{})
	done := make(chan bool)
	go func() {
		close(started)
		done <- task.Run(context.Background(), 50*time.Millisecond)
	}()
	<-started
	require.Eventually(t, func() bool { return task.Status().Running }, time.Second, time.Millisecond)
	assert.False(t, task.Run(context.Background(), time.Second), "second run is skipped")

	assert.True(t, <-done)
	assert.Equal(t, "failed: "+context.DeadlineExceeded.Error(), task.Status().LastResult)
}

func TestPanicIsReported(t *testing.T) {
	task := &RunnableTask{
		Name: "panics",
		Handler: func(context.Context, zerolog.Logger) error {
			panic("oops")
		},
	}
	assert.True(t, task.Run(context.Background(), time.Second))
	assert.Equal(t, "failed: panic: oops", task.Status().LastResult)
}

type fakeOwner struct{ err error }

func (f fakeOwner) GetOwnerToken(context.Context) (string, error) { return "owner", f.err }

type fakeOrg struct{ err error }

func (f fakeOrg) ResolveOrgIdentity(context.Context) (string, error) { return "iss-1", f.err }

type fakeFlusher struct{ n int }

func (f *fakeFlusher) Flush() int {
	n := f.n
	f.n = 0
	return n
}

func TestJobs(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()

	assert.NoError(t, BackendCheck(fakeOwner{}, fakeOrg{})(ctx, logger))
	assert.ErrorContains(t, BackendCheck(fakeOwner{err: errors.New("vault down")}, fakeOrg{})(ctx, logger), "owner token")
	assert.ErrorContains(t, BackendCheck(fakeOwner{}, fakeOrg{err: errors.New("no issuer")})(ctx, logger), "resolving issuer")

	fl := &fakeFlusher{n: 3}
	assert.NoError(t, RosterFlush(fl)(ctx, logger))
	assert.Equal(t, 0, fl.n)
}
