// Package service implements the client/service orchestration contract
// (spec §4.10): message types and a Transport interface. The TCP
// transport, wire framing, and serialization format are explicitly out of
// scope (spec §1) — only the message contract matters to the core, so
// these are plain Go structs with no generated wire stubs.
package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/yam-build/yam/internal/logging"
)

// BuildRequest asks the service to build one scope root (spec §4.10).
type BuildRequest struct {
	ID         uuid.UUID
	Targets    []string // symbolic node names to build; empty means the default scope root
	KeepGoing  bool
	MaxWorkers int
}

// StopBuildRequest aborts the build identified by ID — sent explicitly by
// a client, or synthesized server-side on an unexpected disconnect (spec
// §4.10: "A TCP disconnect while a build is in flight triggers a
// StopBuildRequest server-side").
type StopBuildRequest struct {
	ID uuid.UUID
}

// ShutdownRequest asks the service to exit after acknowledging.
type ShutdownRequest struct{}

// LogRecord is one record streamed from service to client while a build
// progresses (spec §4.10). It wraps internal/logging.Record with the
// correlation ID of the build that produced it.
type LogRecord struct {
	BuildID uuid.UUID
	Record  logging.Record
}

// BuildResult is the terminal message for one build.
type BuildResult struct {
	BuildID  uuid.UUID
	Success  bool
	Error    string
	Executed int
	Skipped  int
	Failed   int
	Canceled int
	Duration time.Duration
}

// ShutdownAck acknowledges a ShutdownRequest before the service exits.
type ShutdownAck struct{}
