package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Task is a handle to a scheduled callback. Cancel reports whether the
// callback was stopped before it fired.
type Task interface {
	Cancel() bool
}

// Scheduler arms one-shot callbacks and hands back cancellation handles,
// so "cancel previous, arm new" is a single auditable operation for the
// caller instead of scattered timer bookkeeping.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) Task
	Now() time.Time
}

// New creates a Scheduler backed by the wall clock
func New() Scheduler {
	return &realScheduler{}
}

type realScheduler struct{}

func (s *realScheduler) Schedule(d time.Duration, fn func()) Task {
	return &realTask{timer: time.AfterFunc(d, fn)}
}

func (s *realScheduler) Now() time.Time {
	return time.Now()
}

type realTask struct {
	timer *time.Timer
}

func (t *realTask) Cancel() bool {
	return t.timer.Stop()
}

// Manual is a Scheduler driven by an explicit clock, for tests.
// Advance fires due callbacks in deadline order on the calling goroutine.
type Manual struct {
	mu    sync.Mutex
	now   time.Time
	seq   int
	tasks []*manualTask
}

// NewManual creates a manual scheduler starting at the given time
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Schedule arms a callback to fire when the manual clock reaches now+d
func (m *Manual) Schedule(d time.Duration, fn func()) Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	task := &manualTask{
		owner: m,
		at:    m.now.Add(d),
		seq:   m.seq,
		fn:    fn,
	}
	m.tasks = append(m.tasks, task)
	return task
}

// Now returns the manual clock's current time
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward and fires every due task, earliest
// deadline first. Ties fire in scheduling order.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	deadline := m.now

	due := make([]*manualTask, 0)
	remaining := m.tasks[:0]
	for _, task := range m.tasks {
		if !task.cancelled && !task.at.After(deadline) {
			task.fired = true
			due = append(due, task)
		} else if !task.cancelled {
			remaining = append(remaining, task)
		}
	}
	m.tasks = remaining
	m.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].seq < due[j].seq
		}
		return due[i].at.Before(due[j].at)
	})

	for _, task := range due {
		task.fn()
	}
}

// Pending returns the number of armed, uncancelled tasks
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, task := range m.tasks {
		if !task.cancelled {
			count++
		}
	}
	return count
}

type manualTask struct {
	owner     *Manual
	at        time.Time
	seq       int
	fn        func()
	cancelled bool
	fired     bool
}

func (t *manualTask) Cancel() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()

	if t.fired || t.cancelled {
		return false
	}
	t.cancelled = true
	return true
}
