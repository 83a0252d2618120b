package task

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// waitPollInterval is how often Wait re-checks a task's status.
const waitPollInterval = 10 * time.Millisecond

// Manager tracks tasks and runs each started task on its own goroutine.
// Construct one per process (or per test) and pass it by reference.
type Manager struct {
	mu      sync.Mutex
	tasks   map[string]*Task
	running map[string]struct{}
	log     *slog.Logger
}

// NewManager creates an empty Manager.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		tasks:   make(map[string]*Task),
		running: make(map[string]struct{}),
		log:     log,
	}
}

// Create registers a new pending task and returns its ID.
func (m *Manager) Create(taskType string, job Job) string {
	t := &Task{
		id:       uuid.NewString(),
		taskType: taskType,
		status:   StatusPending,
		job:      job,
		ctl:      &Control{},
	}
	m.mu.Lock()
	m.tasks[t.id] = t
	m.mu.Unlock()
	return t.id
}

// Start launches a task on its own goroutine. It returns false when the
// task is unknown or already running; a completed or failed task may be
// started again with a fresh stop flag and progress.
func (m *Manager) Start(id string) bool {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return false
	}
	if _, isRunning := m.running[id]; isRunning {
		m.mu.Unlock()
		return false
	}
	m.running[id] = struct{}{}
	m.mu.Unlock()

	t.mu.Lock()
	t.status = StatusRunning
	t.startTime = time.Now()
	t.endTime = time.Time{}
	t.result = nil
	t.err = ""
	t.ctl = &Control{}
	t.mu.Unlock()

	go m.execute(t)
	return true
}

// Stop requests cooperative cancellation of a running task. The body must
// observe the flag; Stop only raises it.
func (m *Manager) Stop(id string) bool {
	m.mu.Lock()
	t, ok := m.tasks[id]
	_, isRunning := m.running[id]
	m.mu.Unlock()
	if !ok || !isRunning {
		return false
	}
	t.mu.Lock()
	ctl := t.ctl
	t.mu.Unlock()
	ctl.stop.Store(true)
	return true
}

// Delete removes a task that is not running.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, isRunning := m.running[id]; isRunning {
		return false
	}
	if _, ok := m.tasks[id]; !ok {
		return false
	}
	delete(m.tasks, id)
	return true
}

// Status returns a snapshot of a task.
func (m *Manager) Status(id string) (Info, error) {
	m.mu.Lock()
	t, ok := m.tasks[id]
	m.mu.Unlock()
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return t.snapshot(), nil
}

// List returns snapshots of all tasks, optionally filtered by status,
// ordered by task ID for stable output.
func (m *Manager) List(status Status) []Info {
	m.mu.Lock()
	tasks := make([]*Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t)
	}
	m.mu.Unlock()

	out := make([]Info, 0, len(tasks))
	for _, t := range tasks {
		info := t.snapshot()
		if status == "" || info.Status == status {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Wait blocks until the task reaches a terminal state or the timeout
// elapses. A zero timeout waits forever. It returns false on timeout or
// unknown task.
func (m *Manager) Wait(id string, timeout time.Duration) bool {
	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		info, err := m.Status(id)
		if err != nil {
			return false
		}
		if info.Status == StatusCompleted || info.Status == StatusFailed {
			return true
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return false
		}
		time.Sleep(waitPollInterval)
	}
}

// CreateAndStart registers a task and immediately launches it.
func (m *Manager) CreateAndStart(taskType string, job Job) string {
	id := m.Create(taskType, job)
	m.Start(id)
	return id
}

// execute runs the job body, converting panics and errors into the failed
// state so a crashing job never takes the process down.
func (m *Manager) execute(t *Task) {
	defer func() {
		if r := recover(); r != nil {
			m.finish(t, nil, fmt.Errorf("panic: %v", r))
		}
	}()

	t.mu.Lock()
	job, ctl := t.job, t.ctl
	t.mu.Unlock()

	result, err := job(ctl)
	m.finish(t, result, err)
}

func (m *Manager) finish(t *Task, result any, err error) {
	t.mu.Lock()
	t.endTime = time.Now()
	if err != nil {
		t.status = StatusFailed
		t.err = err.Error()
	} else {
		t.status = StatusCompleted
		t.result = result
		t.ctl.SetProgress(100)
	}
	id, taskType, status := t.id, t.taskType, t.status
	t.mu.Unlock()

	m.mu.Lock()
	delete(m.running, id)
	m.mu.Unlock()

	if err != nil {
		m.log.Error("task finished", "task_id", id, "task_type", taskType, "status", status, "error", err)
	} else {
		m.log.Info("task finished", "task_id", id, "task_type", taskType, "status", status)
	}
}
