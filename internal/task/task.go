// Package task runs background units of work: it owns task identity, status
// transitions, progress reporting, and cooperative cancellation. Both "run a
// backtest" and "scan a universe of symbols" are jobs under this harness.
package task

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ErrStopped is returned by a job body that observed the stop flag and
// unwound early. The task finishes as failed with this error recorded.
var ErrStopped = errors.New("task stopped")

var ErrTaskNotFound = errors.New("task not found")

// Control is the job's view of its task: progress reporting and the
// cooperative stop flag. Long-running jobs must poll Stopped at natural
// checkpoints, at least once per processed symbol.
type Control struct {
	progress atomic.Uint64 // progress ×100, 0..10000
	stop     atomic.Bool
}

// SetProgress records completion in percent, clamped to [0, 100].
func (c *Control) SetProgress(pct float64) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	c.progress.Store(uint64(pct * 100))
}

// Progress returns the last reported completion percentage.
func (c *Control) Progress() float64 {
	return float64(c.progress.Load()) / 100
}

// Stopped reports whether a stop was requested.
func (c *Control) Stopped() bool {
	return c.stop.Load()
}

// Job is the body of a task. It reports progress through ctl and returns
// either a result or an error; returning ErrStopped acknowledges a stop
// request.
type Job func(ctl *Control) (any, error)

// Task is one unit of background work.
type Task struct {
	mu sync.Mutex

	id        string
	taskType  string
	status    Status
	startTime time.Time
	endTime   time.Time
	result    any
	err       string

	job Job
	ctl *Control
}

// Info is a point-in-time snapshot of a task.
type Info struct {
	ID        string    `json:"task_id"`
	Type      string    `json:"task_type"`
	Status    Status    `json:"status"`
	Progress  float64   `json:"progress"`
	StartTime time.Time `json:"start_time,omitzero"`
	EndTime   time.Time `json:"end_time,omitzero"`
	Result    any       `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func (t *Task) snapshot() Info {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Info{
		ID:        t.id,
		Type:      t.taskType,
		Status:    t.status,
		Progress:  t.ctl.Progress(),
		StartTime: t.startTime,
		EndTime:   t.endTime,
		Result:    t.result,
		Error:     t.err,
	}
}
