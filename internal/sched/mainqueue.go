// Package sched implements the scheduling substrate (spec §4.9): a
// single-consumer main queue that graph mutations run on, a fixed worker
// pool for compute/IO work, a per-priority-level FIFO dispatcher, and a
// re-entrant dispatcher frame run loop.
package sched

import "sync"

// MainQueue is a single FIFO consumed by one goroutine — "the main
// thread" in spec terms. It satisfies internal/graph.MainQueue.
type MainQueue struct {
	mu        sync.Mutex
	cond      *sync.Cond
	tasks     []func()
	stopped   bool
	started   bool
	suspended bool
}

func NewMainQueue() *MainQueue {
	q := &MainQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Post enqueues f to run on the main goroutine. Safe to call from any
// goroutine, including from within a task currently running on the main
// queue (re-entrant posting).
func (q *MainQueue) Post(f func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	q.tasks = append(q.tasks, f)
	q.cond.Signal()
}

// Run consumes tasks until Stop is called. Exactly one goroutine should
// call Run — that goroutine is "the main thread" for the duration.
func (q *MainQueue) Run() {
	q.mu.Lock()
	q.started = true
	q.mu.Unlock()
	for {
		task, ok := q.pop()
		if !ok {
			if q.isStopped() {
				return
			}
			// suspended: wait for Resume without busy-looping.
			q.mu.Lock()
			for q.suspended && !q.stopped {
				q.cond.Wait()
			}
			q.mu.Unlock()
			continue
		}
		task()
	}
}

func (q *MainQueue) isStopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}

// RunUntilIdle drains the current backlog and returns without blocking for
// more work — useful for tests and for the single-build CLI client that
// doesn't want a standing main-thread goroutine.
func (q *MainQueue) RunUntilIdle() {
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return
		}
		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.mu.Unlock()
		task()
	}
}

// Stop causes Run to return once the current backlog drains (spec §4.9:
// "stop() causes pop to return an unbound delegate so worker loops exit").
func (q *MainQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	q.cond.Broadcast()
}

// Suspend blocks pop: Run and RunFrame stop consuming tasks until Resume
// is called (spec §4.9: "suspend() blocks pop").
func (q *MainQueue) Suspend() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.suspended = true
}

// Resume undoes Suspend.
func (q *MainQueue) Resume() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.suspended = false
	q.cond.Broadcast()
}

// pop blocks until a task is available (and the queue isn't suspended) or
// the queue stops. ok is false once stopped with an empty backlog.
func (q *MainQueue) pop() (task func(), ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for (len(q.tasks) == 0 || q.suspended) && !q.stopped {
		q.cond.Wait()
	}
	if q.stopped && len(q.tasks) == 0 {
		return nil, false
	}
	if q.suspended {
		return nil, false
	}
	task = q.tasks[0]
	q.tasks = q.tasks[1:]
	return task, true
}
