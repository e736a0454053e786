package logging

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ZapSink renders records as structured zap fields. cmd/yamd does not use
// it: the runner hands each record to the service's emit callback.
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &ZapSink{logger: logger}
}

func (s *ZapSink) Log(r Record) {
	fields := make([]zap.Field, 0, len(r.Fields)+2)
	fields = append(fields, zap.String("node", r.Node), zap.Time("time", r.Time))
	for k, v := range r.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	switch r.Aspect {
	case Error:
		s.logger.Error(r.Message, fields...)
	case Progress:
		s.logger.Info(r.Message, append(fields, zap.String("aspect", "progress"))...)
	default:
		s.logger.Info(r.Message, fields...)
	}
}

// GraphSink adapts a Sink to internal/graph.LogSink's narrower
// (nodeName, aspect, format, args) shape and owns the build's
// continue-on-error policy ("keep going") consulted when a prerequisite
// fails (spec §4.1 step 1).
type GraphSink struct {
	sink      Sink
	keepGoing bool
}

func NewGraphSink(sink Sink, keepGoing bool) *GraphSink {
	return &GraphSink{sink: sink, keepGoing: keepGoing}
}

func (g *GraphSink) Logf(nodeName, aspect, format string, args ...interface{}) {
	g.sink.Log(Record{
		Time:    time.Now(),
		Aspect:  Aspect(aspect),
		Node:    nodeName,
		Message: fmt.Sprintf(format, args...),
	})
}

func (g *GraphSink) KeepGoing() bool { return g.keepGoing }
