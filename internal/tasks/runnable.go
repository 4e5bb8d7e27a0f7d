package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const ResultSuccess = "success"

type RunnableTask struct {
	Name     string
	Interval time.Duration
	Handler  TaskFunc

	registeredAt time.Time

	mu         sync.RWMutex
	running    bool
	lastRun    time.Time
	lastResult string
	logs       []LogEntry
}

// storeHook copies every log message of a run into the task.
type storeHook struct {
	task *RunnableTask
}

func (h storeHook) Run(_ *zerolog.Event, level zerolog.Level, msg string) {
	h.task.AppendLog(level.String(), msg)
}

// Run executes the task once with the given timeout. It returns false if the task was already running.
func (t *RunnableTask) Run(ctx context.Context, timeout time.Duration) bool {
	t.mu.Lock()

	l := log.With().Str("task", t.Name).Logger()

	if t.running {
		t.mu.Unlock()
		l.Warn().Msg("task is already running, skipping execution")
		return false
	}
	t.running = true
	t.logs = make([]LogEntry, 0)
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.running = false
		t.lastRun = time.Now()
		t.mu.Unlock()
	}()

	taskLogger := l.Hook(storeHook{task: t})
	taskLogger.Info().Msg("starting task execution")

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := t.run(ctx, taskLogger)
	duration := time.Since(start)

	t.mu.Lock()
	if err != nil {
		t.lastResult = fmt.Sprintf("failed: %v", err)
	} else {
		t.lastResult = ResultSuccess
	}
	t.mu.Unlock()

	if err != nil {
		taskLogger.Error().Err(err).Msgf("task failed after %s", duration)
	} else {
		taskLogger.Info().Msgf("task completed successfully in %s", duration)
	}
	return true
}

func (t *RunnableTask) run(ctx context.Context, logger zerolog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.Handler(ctx, logger)
}

func (t *RunnableTask) Status() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := TaskStatus{
		Name:       t.Name,
		Running:    t.running,
		LastRun:    t.lastRun,
		LastResult: t.lastResult,
	}
	if t.Interval > 0 {
		s.Interval = t.Interval.String()
		if !t.lastRun.IsZero() {
			s.NextRun = t.lastRun.Add(t.Interval)
		} else {
			s.NextRun = t.registeredAt.Add(t.Interval)
		}
	}
	return s
}

// GetLogs returns the log of the latest run.
func (t *RunnableTask) GetLogs() []LogEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cpy := make([]LogEntry, len(t.logs))
	copy(cpy, t.logs)
	return cpy
}

func (t *RunnableTask) AppendLog(level, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.logs = append(t.logs, LogEntry{
		Time:    time.Now(),
		Level:   level,
		Message: msg,
	})

	if len(t.logs) > MaxLogsPerTask {
		t.logs = t.logs[1:]
	}
}
