package tasks

import (
	"context"
	"sort"
	"sync"
	"time"
)

const (
	MaxLogsPerTask = 1000

	DefaultTimeout = 5 * time.Minute
)

// Manager runs named background tasks, periodically or on demand.
type Manager struct {
	tasks   sync.Map
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager returns a Manager whose task runs are limited to timeout.
func NewManager(timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register adds a task. With a positive interval it is run every interval until Close,
// otherwise only when triggered.
func (m *Manager) Register(name string, interval time.Duration, fn TaskFunc) {
	task := &RunnableTask{
		Name:         name,
		Interval:     interval,
		Handler:      fn,
		registeredAt: time.Now(),
		logs:         make([]LogEntry, 0),
	}
	m.tasks.Store(name, task)

	if interval > 0 {
		m.wg.Add(1)
		go m.scheduler(task)
	}
}

// Trigger starts a run of the task in the background.
func (m *Manager) Trigger(name string) error {
	task, err := m.get(name)
	if err != nil {
		return err
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		task.Run(m.ctx, m.timeout)
	}()
	return nil
}

// ListStatus returns the status of all tasks, ordered by name.
func (m *Manager) ListStatus() []TaskStatus {
	list := make([]TaskStatus, 0)
	m.tasks.Range(func(_, value any) bool {
		list = append(list, value.(*RunnableTask).Status())
		return true
	})
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}

func (m *Manager) GetLogs(name string) ([]LogEntry, error) {
	task, err := m.get(name)
	if err != nil {
		return nil, err
	}
	return task.GetLogs(), nil
}

// Close stops the schedulers, cancels running tasks and waits for them to return.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) get(name string) (*RunnableTask, error) {
	t, ok := m.tasks.Load(name)
	if !ok {
		return nil, TaskNotFoundError{Name: name}
	}
	return t.(*RunnableTask), nil
}

func (m *Manager) scheduler(task *RunnableTask) {
	defer m.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			task.Run(m.ctx, m.timeout)
		}
	}
}
