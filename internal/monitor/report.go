// Package monitor implements the access-monitored command executor
// contract (spec §4.5): launch a process, observe every file it (or a
// descendant) touches, and classify each access as a read and/or write
// and/or delete.
package monitor

import "time"

// Access classifies one observed filesystem touch.
type Access struct {
	Path          string
	Read          bool
	Write         bool
	Delete        bool
	LastWriteTime time.Time
}

// Report is everything the executor observed about one monitored run.
type Report struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte

	// Reads and Writes are the filtered, canonicalized absolute paths
	// accessed for read/write respectively; ReadOnly = Reads \ Writes.
	Reads    []string
	Writes   []string
	ReadOnly []string

	// LastWriteTimes maps every accessed path to the last-write-time
	// observed at the moment of access.
	LastWriteTimes map[string]time.Time
}

// Request describes a process to launch under monitoring.
type Request struct {
	Program string
	Args    []string
	Dir     string
	Env     []string
	// Timeout, if non-zero, bounds how long the executor waits for the
	// process and all of its descendants to exit before it is killed and
	// the wait is treated as a cancellation.
	Timeout time.Duration
	// TempDir paths are excluded from the reported access sets, per
	// spec §4.5's filtering rule.
	TempDir string
}
