package session

import (
	"github.com/a2y-d5l/gtpbridge/gtp"
)

// Event is a marker interface for session events.
// All session event types implement this interface.
//
// Event types:
//   - AnalysisEvent: A new analysis batch replaced the previous one
//   - LogEvent: A non-analysis line from the engine
//   - WarningEvent: The engine reported that the game is over
//   - ExitEvent: The engine process exited
//
// Events are produced by Run and consumed by a renderer.
type Event interface{ isEvent() }

// AnalysisEvent carries the batch decoded from one analysis line.
// Batch is shared with Session.Analysis and must not be modified.
type AnalysisEvent struct {
	Batch []gtp.Analysis
}

func (AnalysisEvent) isEvent() {}

// LogEvent carries one engine line that is not analysis output.
type LogEvent struct {
	Line string
	Kind gtp.LineKind
}

func (LogEvent) isEvent() {}

// WarningEvent is emitted when the engine reports a finished board. The
// session has already asked the engine to stop analysing.
type WarningEvent struct {
	Line string
}

func (WarningEvent) isEvent() {}

// ExitEvent signals that an engine process has exited.
type ExitEvent struct {
	// Err is the exit status; nil for a clean exit.
	Err error

	// Engine is the display name of the engine that exited.
	Engine string
}

func (ExitEvent) isEvent() {}
