package graph

import "sync"

// MainQueue serializes graph mutations and state transitions onto a single
// logical thread, per spec §5's main-thread invariant. internal/sched
// provides the concrete implementation; graph only depends on this minimal
// interface to avoid an import cycle.
type MainQueue interface {
	Post(f func())
}

// WorkerPool runs Self-phase work off the main thread. internal/sched
// provides the concrete errgroup-backed implementation.
type WorkerPool interface {
	Submit(f func())
}

// LogSink receives structured log records emitted during a build. See
// internal/logging for the record type and default implementations; graph
// only needs the ability to hand it an opaque record.
type LogSink interface {
	Logf(nodeName string, aspect string, format string, args ...interface{})
	KeepGoing() bool
}

// Stats accumulates build statistics. Updates come from the goroutines that
// run node phases and are guarded by mu.
type Stats struct {
	mu         sync.Mutex
	Executed   int
	Skipped    int
	Failed     int
	Canceled   int
}

func (s *Stats) RecordExecuted() { s.mu.Lock(); s.Executed++; s.mu.Unlock() }
func (s *Stats) RecordSkipped()  { s.mu.Lock(); s.Skipped++; s.mu.Unlock() }
func (s *Stats) RecordFailed()   { s.mu.Lock(); s.Failed++; s.mu.Unlock() }
func (s *Stats) RecordCanceled() { s.mu.Lock(); s.Canceled++; s.mu.Unlock() }

func (s *Stats) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Executed: s.Executed, Skipped: s.Skipped, Failed: s.Failed, Canceled: s.Canceled}
}

// ExecutionContext owns everything a build needs: the node table keyed by
// symbolic path, the repository registry, the file-aspect registry, the
// scheduling substrate, the log sink, and build statistics (spec §3.4).
type ExecutionContext struct {
	mu    sync.RWMutex
	nodes map[string]Node

	Repositories *Repositories

	Main    MainQueue
	Workers WorkerPool
	Log     LogSink
	Stats   *Stats
}

// NewExecutionContext constructs an empty context. main and workers may be
// nil in tests: Self work then runs on a plain goroutine and completion
// notifications run on the goroutine that completed the node.
func NewExecutionContext(main MainQueue, workers WorkerPool, log LogSink) *ExecutionContext {
	return &ExecutionContext{
		nodes:        make(map[string]Node),
		Repositories: NewRepositories(),
		Main:         main,
		Workers:      workers,
		Log:          log,
		Stats:        &Stats{},
	}
}

func (c *ExecutionContext) register(name string, n Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes[name] = n
}

// Unregister removes a node from the table, e.g. when it transitions to
// Deleted and a persistent-state commit has dropped it.
func (c *ExecutionContext) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.nodes, name)
}

// Lookup returns the node registered under name, if any.
func (c *ExecutionContext) Lookup(name string) (Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[name]
	return n, ok
}

// All returns every registered node. Callers must not mutate the result.
func (c *ExecutionContext) All() map[string]Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Node, len(c.nodes))
	for k, v := range c.nodes {
		out[k] = v
	}
	return out
}

func (c *ExecutionContext) logf(node, aspect, format string, args ...interface{}) {
	if c.Log != nil {
		c.Log.Logf(node, aspect, format, args...)
	}
}
