package sched

// Frame is a stoppable scope for a nested dispatcher run loop (spec §4.9:
// "a re-entrant run loop; run(frame) loops until frame is stopped,
// allowing nested event-processing while waiting for a specific event").
// A Self task that must synchronously wait for another node's completion
// pushes a new Frame and calls RunFrame, which keeps draining the main
// queue — including tasks posted by the very completion it's waiting
// for — until that completion callback calls Stop on the frame.
type Frame struct {
	stopped bool
}

func NewFrame() *Frame { return &Frame{} }

// Stop marks the frame as finished; the next RunFrame iteration observes
// it and returns.
func (f *Frame) Stop() { f.stopped = true }

func (f *Frame) Stopped() bool { return f.stopped }

// RunFrame drains q on the calling goroutine until frame is stopped. It
// may be called from within a task already running on q (nested), which
// is why MainQueue.pop doesn't track a single owning goroutine — re-entry
// is the norm, not a misuse.
func (q *MainQueue) RunFrame(frame *Frame) {
	for !frame.Stopped() {
		task, ok := q.pop()
		if !ok {
			if q.isStopped() {
				return
			}
			q.mu.Lock()
			for q.suspended && !q.stopped && !frame.Stopped() {
				q.cond.Wait()
			}
			q.mu.Unlock()
			continue
		}
		task()
	}
}
