// Package sinks contains progress.Sink implementations.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/openrecords/caseharvester/internal/progress"
)

// LogSink emits structured logs for each case outcome. It is the default
// reporting surface for interactive runs.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs the event using structured fields.
func (s *LogSink) Consume(_ context.Context, evt progress.Event) error {
	s.logger.Info("case outcome",
		zap.String("run_id", evt.RunID),
		zap.String("identifier", evt.Identifier),
		zap.String("case_number", evt.CaseNumber),
		zap.String("outcome", string(evt.Outcome)),
		zap.String("reason", evt.Reason),
		zap.Int("attempts", evt.Attempts),
		zap.Int("documents", evt.Documents),
		zap.Duration("dur", evt.Dur),
	)
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
