package sched

// Priority is a secondary-scheduling hint (spec §4.9): a small enum used
// to order otherwise-ready work, separate from the prerequisite-driven
// topological ordering the node graph itself enforces.
type Priority int

const (
	VeryHigh Priority = iota
	High
	Medium
	Low
	VeryLow
)

func (p Priority) String() string {
	switch p {
	case VeryHigh:
		return "VeryHigh"
	case High:
		return "High"
	case Medium:
		return "Medium"
	case Low:
		return "Low"
	case VeryLow:
		return "VeryLow"
	default:
		return "Unknown"
	}
}

var levels = []Priority{VeryHigh, High, Medium, Low, VeryLow}

// PriorityDispatcher holds one FIFO per priority level; Pop returns the
// oldest item from the highest non-empty level.
type PriorityDispatcher struct {
	queues map[Priority][]func()
}

func NewPriorityDispatcher() *PriorityDispatcher {
	return &PriorityDispatcher{queues: make(map[Priority][]func())}
}

// Push enqueues f at the given priority level.
func (d *PriorityDispatcher) Push(p Priority, f func()) {
	d.queues[p] = append(d.queues[p], f)
}

// Pop returns (and removes) the oldest entry from the highest non-empty
// level, or (nil, false) if every level is empty.
func (d *PriorityDispatcher) Pop() (func(), bool) {
	for _, p := range levels {
		q := d.queues[p]
		if len(q) == 0 {
			continue
		}
		f := q[0]
		d.queues[p] = q[1:]
		return f, true
	}
	return nil, false
}

// Len returns the total number of queued entries across all levels.
func (d *PriorityDispatcher) Len() int {
	n := 0
	for _, q := range d.queues {
		n += len(q)
	}
	return n
}
