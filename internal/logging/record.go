// Package logging provides the build's structured LogRecord type and the
// Sink interface receivers implement (spec §4.10, §7). The core itself
// never formats or colors output — that's explicitly out of scope (spec
// §1) — it only produces records and hands them to whatever Sink the
// embedding program configured.
package logging

import "time"

// Aspect classifies one log record, matching the three record kinds the
// build emits during a run (spec §7, §9 Open Question 2's "Progress"
// resolution for zero-match foreach rules).
type Aspect string

const (
	Info     Aspect = "info"
	Progress Aspect = "progress"
	Error    Aspect = "error"
)

// Record is one structured log entry, attributable to the node that
// produced it.
type Record struct {
	Time   time.Time
	Aspect Aspect
	Node   string
	Message string
	Fields map[string]interface{}
}

// Sink receives log records as a build progresses.
type Sink interface {
	Log(Record)
}
