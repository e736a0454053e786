package sched

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// WorkerPool runs Self-phase work (hashing, process launch, directory
// enumeration) off the main goroutine (spec §4.9). It satisfies
// internal/graph.WorkerPool. Built on errgroup the way distri's
// cmd/zi build pipeline fans work out across a fixed set of goroutines.
type WorkerPool struct {
	tasks chan func()

	mu      sync.Mutex
	cancel  context.CancelFunc
	group   *errgroup.Group
	closed  bool
}

// NewWorkerPool starts n worker goroutines consuming a shared task queue.
// n <= 0 defaults to runtime.NumCPU().
func NewWorkerPool(n int) *WorkerPool {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	p := &WorkerPool{
		tasks:  make(chan func()),
		cancel: cancel,
		group:  group,
	}
	for i := 0; i < n; i++ {
		group.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case task, ok := <-p.tasks:
					if !ok {
						return nil
					}
					task()
				}
			}
		})
	}
	return p
}

// Submit queues f to run on a worker goroutine. Submit blocks if every
// worker is busy and the queue has no waiting consumer; callers posting
// from the main queue should not hold the main-queue lock while calling
// Submit.
func (p *WorkerPool) Submit(f func()) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return
	}
	p.tasks <- f
}

// Close stops accepting new work and waits for in-flight tasks to finish.
func (p *WorkerPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	close(p.tasks)
	return p.group.Wait()
}

// Cancel stops worker goroutines without waiting for queued tasks to
// drain — used when a build is being torn down after a cancellation.
func (p *WorkerPool) Cancel() {
	p.cancel()
}
