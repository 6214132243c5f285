package timer

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Func is the work a task performs. ctx is cancelled when the manager stops.
type Func func(ctx context.Context)

// Task is a unit of work scheduled for future execution
type Task struct {
	ID       string
	ExpiryAt time.Time
	Run      Func
	index    int // index in the heap
}

// taskHeap is a min-heap of tasks ordered by ExpiryAt
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	return h[i].ExpiryAt.Before(h[j].ExpiryAt)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	task := x.(*Task)
	task.index = len(*h)
	*h = append(*h, task)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	task.index = -1
	*h = old[0 : n-1]
	return task
}

// ErrManagerStopped is returned when scheduling on a stopped manager
var ErrManagerStopped = errors.New("timer manager is stopped")

// ErrInvalidInterval is returned by Every for a non-positive interval
var ErrInvalidInterval = errors.New("timer interval must be positive")

// Manager runs tasks at their expiry time. A single goroutine sleeps until
// the earliest task is due; each due task runs on its own goroutine.
type Manager struct {
	heap   taskHeap
	mu     sync.Mutex
	wakeup chan struct{}
	tasks  map[string]*Task

	// repeating holds the generation of each live Repeat registration
	repeating map[string]uint64
	gen       uint64

	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	running sync.WaitGroup
	stopped bool
	stopCh  chan struct{}
}

// NewManager creates an idle manager
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	tm := &Manager{
		heap:      make(taskHeap, 0),
		wakeup:    make(chan struct{}, 1),
		tasks:     make(map[string]*Task),
		repeating: make(map[string]uint64),
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
	heap.Init(&tm.heap)
	return tm
}

// Start launches the scheduler loop. Tasks receive a context derived from ctx.
func (tm *Manager) Start(ctx context.Context) {
	tm.mu.Lock()
	tm.ctx, tm.cancel = context.WithCancel(ctx)
	tm.mu.Unlock()

	go tm.run()
}

// Stop halts scheduling, cancels running tasks and waits for them to return
func (tm *Manager) Stop() {
	tm.mu.Lock()
	if tm.stopped {
		tm.mu.Unlock()
		return
	}
	tm.stopped = true
	close(tm.stopCh)
	if tm.cancel != nil {
		tm.cancel()
	}
	tm.mu.Unlock()

	tm.running.Wait()
}

// Schedule adds a one-shot task, replacing any task with the same id
func (tm *Manager) Schedule(id string, expiryAt time.Time, fn Func) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	delete(tm.repeating, id)
	return tm.scheduleLocked(id, expiryAt, fn)
}

// Repeat runs fn at first and then at next(completion time) after each run,
// until cancelled. Runs of one id never overlap.
func (tm *Manager) Repeat(id string, first time.Time, next func(time.Time) time.Time, fn Func) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.gen++
	gen := tm.gen
	tm.repeating[id] = gen

	var wrapped Func
	wrapped = func(ctx context.Context) {
		defer func() {
			tm.mu.Lock()
			defer tm.mu.Unlock()
			if tm.repeating[id] != gen || tm.stopped {
				return
			}
			if err := tm.scheduleLocked(id, next(time.Now()), wrapped); err != nil {
				tm.logger.Warn("failed to reschedule task", "task", id, "error", err)
			}
		}()
		fn(ctx)
	}

	return tm.scheduleLocked(id, first, wrapped)
}

// Every runs fn now and then every interval after the previous run finishes
func (tm *Manager) Every(id string, interval time.Duration, fn Func) error {
	if interval <= 0 {
		return fmt.Errorf("%w: %s got %s", ErrInvalidInterval, id, interval)
	}
	return tm.Repeat(id, time.Now(), func(t time.Time) time.Time { return t.Add(interval) }, fn)
}

func (tm *Manager) scheduleLocked(id string, expiryAt time.Time, fn Func) error {
	if tm.stopped {
		return ErrManagerStopped
	}

	if existing, ok := tm.tasks[id]; ok {
		heap.Remove(&tm.heap, existing.index)
		delete(tm.tasks, id)
	}

	task := &Task{
		ID:       id,
		ExpiryAt: expiryAt,
		Run:      fn,
	}

	heap.Push(&tm.heap, task)
	tm.tasks[id] = task

	// Wake up the loop if this is the earliest task
	if tm.heap[0] == task {
		select {
		case tm.wakeup <- struct{}{}:
		default:
		}
	}

	return nil
}

// Cancel removes a scheduled task and stops it repeating
func (tm *Manager) Cancel(id string) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	_, repeating := tm.repeating[id]
	delete(tm.repeating, id)

	task, ok := tm.tasks[id]
	if !ok {
		return repeating
	}

	heap.Remove(&tm.heap, task.index)
	delete(tm.tasks, id)
	return true
}

// Next reports when the task with id is due
func (tm *Manager) Next(id string) (time.Time, bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	task, ok := tm.tasks[id]
	if !ok {
		return time.Time{}, false
	}
	return task.ExpiryAt, true
}

func (tm *Manager) run() {
	for {
		tm.mu.Lock()

		if tm.stopped {
			tm.mu.Unlock()
			return
		}

		var waitDuration time.Duration
		if tm.heap.Len() == 0 {
			waitDuration = 24 * time.Hour
		} else {
			nextTask := tm.heap[0]
			waitDuration = time.Until(nextTask.ExpiryAt)

			if waitDuration <= 0 {
				task := heap.Pop(&tm.heap).(*Task)
				delete(tm.tasks, task.ID)

				tm.running.Add(1)
				go tm.execute(tm.ctx, task)

				tm.mu.Unlock()
				continue
			}
		}

		tm.mu.Unlock()

		timer := time.NewTimer(waitDuration)
		select {
		case <-timer.C:
		case <-tm.wakeup:
			timer.Stop()
		case <-tm.stopCh:
			timer.Stop()
			return
		}
	}
}

func (tm *Manager) execute(ctx context.Context, task *Task) {
	defer tm.running.Done()
	defer func() {
		if r := recover(); r != nil {
			tm.logger.Error("task panicked", "task", task.ID, "panic", r)
		}
	}()

	task.Run(ctx)
}

// Stats returns statistics about the manager
func (tm *Manager) Stats() Stats {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	return Stats{
		ScheduledTasks: len(tm.tasks),
		RepeatingTasks: len(tm.repeating),
	}
}

// Stats contains statistics about the manager
type Stats struct {
	ScheduledTasks int
	RepeatingTasks int
}
