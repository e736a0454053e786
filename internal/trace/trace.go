// Package trace renders node phase transitions as a Chrome Trace Event
// Format stream (SPEC_FULL.md §4.11), so a build's execution can be
// inspected in chrome://tracing. Pid 0 is the main queue; pid 1 plus a
// worker slot as tid covers Self-phase work, mirroring the main-thread /
// worker-pool split of the scheduling substrate (spec §4.9).
package trace

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var start = time.Now()

var (
	sinkMu sync.Mutex
	sink   io.Writer = io.Discard
)

// Sink writes all following Event()s as a Chrome trace event file into w.
func Sink(w io.Writer) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	sink = w
	// Start the JSON Array Format; the closing ']' is optional, so it's
	// skipped — the file stays valid even if the process is killed.
	w.Write([]byte{'['})
}

// Enable is a convenience function for creating a file in
// $TMPDIR/yam.traces/prefix.$PID.
//
// The filename assumes the OS does not frequently re-use the same pid.
func Enable(prefix string) error {
	fn := filepath.Join(os.TempDir(), "yam.traces", fmt.Sprintf("%s.%d", prefix, os.Getpid()))
	if err := os.MkdirAll(filepath.Dir(fn), 0755); err != nil {
		return err
	}
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	Sink(f)
	return nil
}

// PendingEvent is one in-flight node-phase span; Done() emits it once the
// phase completes.
type PendingEvent struct {
	Name           string      `json:"name"` // "<nodeName> <phase>"
	Categories     string      `json:"cat"`  // "phase"
	Type           string      `json:"ph"`   // event type (single character)
	ClockTimestamp uint64      `json:"ts"`   // tracing clock timestamp (microsecond granularity)
	Duration       uint64      `json:"dur"`
	Pid            uint64      `json:"pid"` // 0 = main queue, 1 = worker pool
	Tid            uint64      `json:"tid"` // worker slot, or 0 on the main queue
	Args           interface{} `json:"args"`

	start time.Time
}

func (pe *PendingEvent) Done() {
	pe.Duration = uint64(time.Since(pe.start) / time.Microsecond)
	b, err := json.Marshal(pe)
	if err != nil {
		panic(err)
	}
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if _, err := sink.Write(append(b, ',')); err != nil {
		log.Printf("[trace] %v", err)
	}
}

// NodePhase opens a span for one node's transition into the given phase,
// attributing it to the main queue (onWorker == false) or a worker slot
// (onWorker == true, tid = workerSlot).
func NodePhase(nodeName, phase string, onWorker bool, workerSlot int) *PendingEvent {
	pid := uint64(0)
	tid := uint64(0)
	if onWorker {
		pid = 1
		tid = uint64(workerSlot)
	}
	return &PendingEvent{
		Name:           nodeName + " " + phase,
		Categories:     "phase",
		Type:           "X",
		ClockTimestamp: uint64(time.Since(start) / time.Microsecond),
		Pid:            pid,
		Tid:            tid,
		start:          time.Now(),
	}
}
